package snapshot

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/joshuapare/procstate/mem/query"
)

// Scope selects the modules whose writable pages are captured. The zero Scope
// means MainModule.
type Scope struct {
	name   string
	none   bool
	filter func(mods []query.Module) []query.Module
}

var (
	// MainModule captures the executable image only.
	MainModule = Scope{name: "main", filter: func(mods []query.Module) []query.Module {
		return lo.Filter(mods, func(m query.Module, _ int) bool { return m.Main })
	}}

	// NoModules captures and restores the arena only; modules are not
	// enumerated and archived regions are skipped on restore.
	NoModules = Scope{name: "none", none: true}

	// AllModules captures every loaded image.
	AllModules = Scope{name: "all", filter: func(mods []query.Module) []query.Module { return mods }}
)

// ModulesByPath captures modules whose path or base name matches one of paths.
func ModulesByPath(paths ...string) Scope {
	return Scope{
		name: strings.Join(paths, ","),
		filter: func(mods []query.Module) []query.Module {
			return lo.Filter(mods, func(m query.Module, _ int) bool {
				return lo.ContainsBy(paths, func(p string) bool {
					return p == m.Path || strings.EqualFold(p, filepath.Base(m.Path))
				})
			})
		},
	}
}

// ParseScope accepts "main", "none", "all" or a comma-separated list of module paths.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "main":
		return MainModule, nil
	case "none":
		return NoModules, nil
	case "all":
		return AllModules, nil
	}
	paths := lo.Compact(lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.TrimSpace(p)
	}))
	if len(paths) == 0 {
		return Scope{}, fmt.Errorf("snapshot: empty scope %q", s)
	}
	return ModulesByPath(paths...), nil
}

func (s Scope) String() string {
	if s.isZero() {
		return MainModule.name
	}
	return s.name
}

// IsNone reports whether the scope captures no modules.
func (s Scope) IsNone() bool { return s.none }

// Select returns the modules in scope.
func (s Scope) Select(mods []query.Module) []query.Module {
	switch {
	case s.none:
		return nil
	case s.filter == nil:
		return MainModule.filter(mods)
	}
	return s.filter(mods)
}

func (s Scope) isZero() bool { return !s.none && s.filter == nil }
