package snapshot

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/samber/lo"

	"github.com/joshuapare/procstate/internal/logger"
	"github.com/joshuapare/procstate/mem/archive"
	"github.com/joshuapare/procstate/mem/arena"
	"github.com/joshuapare/procstate/mem/query"
)

// Region is one captured (address, size) range.
type Region struct {
	Addr uintptr
	Size uint64
}

// End returns the first address past the region.
func (r Region) End() uintptr { return r.Addr + uintptr(r.Size) }

// ModuleSource enumerates loaded modules.
type ModuleSource interface {
	Modules() ([]query.Module, error)
}

// ModuleSourceFunc adapts a function to ModuleSource.
type ModuleSourceFunc func() ([]query.Module, error)

// Modules calls f.
func (f ModuleSourceFunc) Modules() ([]query.Module, error) { return f() }

// SystemModules enumerates the modules of the calling process.
var SystemModules ModuleSource = ModuleSourceFunc(query.Modules)

// Options configures an Engine.
type Options struct {
	Modules ModuleSource  // Default: SystemModules
	Querier query.Querier // Default: a fresh query.Load per call
	Scope   Scope         // Default: MainModule
	Logger  *slog.Logger  // Default: logger.L
}

// Engine serializes an arena and the writable pages of scoped modules.
type Engine struct {
	arena   *arena.Arena
	modules ModuleSource
	query   query.Querier
	scope   Scope
	log     *slog.Logger
}

// New returns an engine over a. a may be nil for an engine used only for
// Regions; Serialize then fails with ErrNoArena.
func New(a *arena.Arena, opts Options) *Engine {
	e := &Engine{
		arena:   a,
		modules: opts.Modules,
		query:   opts.Querier,
		scope:   opts.Scope,
		log:     logger.Or(opts.Logger),
	}
	if e.modules == nil {
		e.modules = SystemModules
	}
	if e.scope.isZero() {
		e.scope = MainModule
	}
	return e
}

// Report summarizes one Serialize call.
type Report struct {
	Mode             archive.Mode
	ArchivedCapacity uint64 // capacity field of the archive
	Capacity         uint64 // capacity of this arena
	HighWaterMark    uint64 // as written or read
	ArenaBytes       uint64 // arena bytes transferred
	CapacityMismatch bool

	Regions      int // regions transferred
	RegionBytes  uint64
	Skipped      int // regions skipped on restore
	SkippedBytes uint64

	// ModulesUnavailable is set when a save could not enumerate or query
	// module regions and wrote the arena alone.
	ModulesUnavailable bool
}

// Serialize writes or restores the snapshot, depending on ar.Mode().
func (e *Engine) Serialize(ar archive.Archive) (Report, error) {
	if e.arena == nil {
		return Report{Mode: ar.Mode()}, ErrNoArena
	}
	rep := Report{Mode: ar.Mode(), Capacity: e.arena.Capacity()}

	err := e.arena.Locked(func(st *arena.State) error {
		return e.arenaFields(ar, st, &rep)
	})
	if err != nil {
		return rep, fmt.Errorf("snapshot: arena: %w", err)
	}
	if err := e.regionFields(ar, &rep); err != nil {
		return rep, fmt.Errorf("snapshot: regions: %w", err)
	}
	e.log.Info("snapshot serialized",
		"mode", rep.Mode,
		"hwm", rep.HighWaterMark,
		"regions", rep.Regions,
		"region_bytes", rep.RegionBytes,
		"skipped", rep.Skipped)
	return rep, nil
}

func (e *Engine) arenaFields(ar archive.Archive, st *arena.State, rep *Report) error {
	capacity, hwm := st.Capacity(), st.HighWaterMark()
	if err := ar.Size(&capacity); err != nil {
		return err
	}
	if err := ar.Size(&hwm); err != nil {
		return err
	}
	rep.ArchivedCapacity, rep.HighWaterMark = capacity, hwm

	if capacity != st.Capacity() {
		rep.CapacityMismatch = true
		e.log.Warn("arena capacity differs from archive",
			"archived", capacity, "current", st.Capacity())
	}

	n := min(hwm, st.Capacity())
	if err := ar.Bytes(st.Memory()[:n]); err != nil {
		return err
	}
	rep.ArenaBytes = n
	if ar.Mode() == archive.ModeReader {
		if err := ar.Skip(hwm - n); err != nil {
			return err
		}
		st.SetHighWaterMark(n)
	}
	return nil
}

func (e *Engine) regionFields(ar archive.Archive, rep *Report) error {
	var regions []Region
	if ar.Mode() == archive.ModeWriter {
		var err error
		if regions, err = e.Regions(); err != nil {
			// Introspection is advisory: finish the archive without regions.
			e.log.Warn("module regions unavailable, saving arena only", "err", err)
			regions = nil
			rep.ModulesUnavailable = true
		}
	}

	count := uint64(len(regions))
	if err := ar.Size(&count); err != nil {
		return err
	}
	// NoModules restores skip every region; q stays nil.
	var q query.Querier
	if ar.Mode() == archive.ModeReader && count > 0 && !e.scope.IsNone() {
		var err error
		if q, err = e.querier(); err != nil {
			e.log.Warn("address space query failed, skipping all regions", "err", err)
		}
	}
	for i := uint64(0); i < count; i++ {
		var r Region
		if ar.Mode() == archive.ModeWriter {
			r = regions[i]
		}
		if err := ar.Pointer(&r.Addr); err != nil {
			return err
		}
		if err := ar.Size(&r.Size); err != nil {
			return err
		}

		if ar.Mode() == archive.ModeReader && !restorable(q, r) {
			e.log.Debug("region not writable, skipping", "addr", fmt.Sprintf("%#x", r.Addr), "size", r.Size)
			if err := ar.Skip(r.Size); err != nil {
				return err
			}
			rep.Skipped++
			rep.SkippedBytes += r.Size
			continue
		}
		if err := ar.Bytes(query.Bytes(r.Addr, uintptr(r.Size))); err != nil {
			return err
		}
		rep.Regions++
		rep.RegionBytes += r.Size
	}
	return nil
}

func restorable(q query.Querier, r Region) bool {
	if q == nil || r.Size > math.MaxInt || uint64(uintptr(r.Size)) != r.Size {
		return false
	}
	return query.WritableSpan(q, r.Addr, uintptr(r.Size))
}

func (e *Engine) querier() (query.Querier, error) {
	if e.query != nil {
		return e.query, nil
	}
	m, err := query.Load()
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Regions lists the writable module regions a save would capture now.
func (e *Engine) Regions() ([]Region, error) {
	if e.scope.IsNone() {
		return nil, nil
	}
	q, err := e.querier()
	if err != nil {
		return nil, err
	}
	return e.collect(q)
}

// collect walks each scoped module region by region and keeps the writable parts.
func (e *Engine) collect(q query.Querier) ([]Region, error) {
	mods, err := e.modules.Modules()
	if err != nil {
		return nil, err
	}

	var out []Region
	for _, m := range e.scope.Select(mods) {
		for addr := m.Base; addr < m.End(); {
			r, ok := q.Query(addr)
			if !ok || r.End() <= addr {
				break
			}
			end := min(r.End(), m.End())
			if r.Writable() {
				out = append(out, Region{Addr: addr, Size: uint64(end - addr)})
			}
			addr = end
		}
	}
	e.log.Debug("collected module regions",
		"modules", len(mods),
		"regions", len(out),
		"bytes", lo.SumBy(out, func(r Region) uint64 { return r.Size }))
	return out, nil
}
