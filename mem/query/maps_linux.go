//go:build linux

package query

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const selfMaps = "/proc/self/maps"

var mapsLine = regexp.MustCompile(`^([0-9a-f]+)-([0-9a-f]+)\s+([rwxps-]{4})\s+([0-9a-f]+)\s+([0-9a-f]+:[0-9a-f]+)\s+(\d+)(?:\s+(.*))?$`)

// Load reads /proc/self/maps once and returns an immutable view of it.
func Load() (*Map, error) {
	f, err := os.Open(selfMaps)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	regions, err := parseMaps(f)
	if err != nil {
		return nil, fmt.Errorf("query: parse %s: %w", selfMaps, err)
	}
	return NewMap(regions), nil
}

func queryAddr(addr uintptr) (Region, bool) {
	m, err := Load()
	if err != nil {
		return Region{}, false
	}
	return m.Query(addr)
}

// parseMaps decodes the /proc/<pid>/maps format. Lines that do not match are skipped.
func parseMaps(r io.Reader) ([]Region, error) {
	var regions []Region
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		match := mapsLine.FindStringSubmatch(scanner.Text())
		if match == nil {
			continue
		}
		start, err := strconv.ParseUint(match[1], 16, 64)
		if err != nil {
			continue
		}
		end, err := strconv.ParseUint(match[2], 16, 64)
		if err != nil || end <= start {
			continue
		}

		prot := parsePerms(match[3])
		state := StateCommitted
		if prot&(ProtRead|ProtWrite|ProtExec) == 0 {
			// PROT_NONE mappings are guard pages or reservations.
			state = StateReserved
		}

		regions = append(regions, Region{
			Base:  uintptr(start),
			Size:  uintptr(end - start),
			State: state,
			Prot:  prot,
			Path:  strings.TrimSpace(match[7]),
		})
	}
	return regions, scanner.Err()
}

func parsePerms(perms string) Prot {
	var p Prot
	if perms[0] == 'r' {
		p |= ProtRead
	}
	if perms[1] == 'w' {
		p |= ProtWrite
	}
	if perms[2] == 'x' {
		p |= ProtExec
	}
	if perms[3] == 's' {
		p |= ProtShared
	}
	return p
}

// Modules lists the file-backed images mapped into this process.
func Modules() ([]Module, error) {
	m, err := Load()
	if err != nil {
		return nil, err
	}
	exe, err := os.Readlink("/proc/self/exe")
	if err != nil {
		exe = ""
	}
	return groupModules(m.regions, exe), nil
}

// groupModules folds mappings into modules keyed by backing file. A module
// also absorbs an anonymous writable mapping that starts exactly at its end.
func groupModules(regions []Region, exe string) []Module {
	exe = strings.TrimSuffix(exe, " (deleted)")
	byPath := make(map[string]int)
	var mods []Module

	for i, r := range regions {
		if !strings.HasPrefix(r.Path, "/") {
			continue
		}
		path := strings.TrimSuffix(r.Path, " (deleted)")
		end := r.End()
		if i+1 < len(regions) {
			next := regions[i+1]
			if next.Path == "" && next.Base == end && next.Writable() {
				end = next.End()
			}
		}

		idx, ok := byPath[path]
		if !ok {
			byPath[path] = len(mods)
			mods = append(mods, Module{
				Path: path,
				Base: r.Base,
				Size: end - r.Base,
				Main: exe != "" && path == exe,
			})
			continue
		}
		mod := &mods[idx]
		if r.Base < mod.Base {
			mod.Size += mod.Base - r.Base
			mod.Base = r.Base
		}
		if end > mod.End() {
			mod.Size = end - mod.Base
		}
	}

	sort.Slice(mods, func(i, j int) bool { return mods[i].Base < mods[j].Base })
	return mods
}
