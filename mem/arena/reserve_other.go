//go:build !unix && !windows

package arena

import "math"

// SystemReserver falls back to Go-managed memory where no mapping API is available.
// Such an arena still works as a heap but its address is not stable across runs.
var SystemReserver Reserver = ReserverFunc(sliceReserve)

func sliceReserve(hint uintptr, size uint64) ([]byte, error) {
	if hint != 0 {
		return nil, ErrHintUnsupported
	}
	if size > math.MaxInt {
		return nil, ErrTooLarge
	}
	return make([]byte, size), nil
}
