//go:build !linux && !windows

package query

// Load returns an empty map; this platform offers no cheap self-query.
func Load() (*Map, error) { return NewMap(nil), nil }

func queryAddr(uintptr) (Region, bool) { return Region{}, false }

// Modules returns no modules on this platform.
func Modules() ([]Module, error) { return nil, nil }
