//go:build unix

package arena

import (
	"math"

	"golang.org/x/sys/unix"
)

// SystemReserver maps anonymous private read-write-execute memory.
var SystemReserver Reserver = ReserverFunc(mmapReserve)

func mmapReserve(hint uintptr, size uint64) ([]byte, error) {
	if hint != 0 {
		return nil, ErrHintUnsupported
	}
	if size > math.MaxInt {
		return nil, ErrTooLarge
	}
	return unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON|mmapExtraFlags)
}
