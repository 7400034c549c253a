package arena

import (
	"log/slog"
	"os"
)

const (
	// DefaultSize is the requested capacity: 1 GiB on 32-bit targets, 4 GiB on 64-bit.
	DefaultSize = uint64(1) << (30 + 2*(^uintptr(0)>>63))

	// DefaultMinSize is the smallest capacity New accepts after halving.
	DefaultMinSize = 64 << 10

	// DefaultMaxAttempts bounds the number of reservations New tries.
	DefaultMaxAttempts = 64

	// minFloor keeps room for the control block and a few blocks.
	minFloor = 4096
)

// Runtime debug flag for allocation logging - controlled by PROCSTATE_LOG_ALLOC env var.
var logAlloc = os.Getenv("PROCSTATE_LOG_ALLOC") != ""

// Reserver obtains the arena's backing memory. hint is the requested start
// address; the arena always passes 0 so the operating system picks one.
type Reserver interface {
	Reserve(hint uintptr, size uint64) ([]byte, error)
}

// ReserverFunc adapts a function to Reserver.
type ReserverFunc func(hint uintptr, size uint64) ([]byte, error)

// Reserve calls f.
func (f ReserverFunc) Reserve(hint uintptr, size uint64) ([]byte, error) { return f(hint, size) }

// Options configures New.
type Options struct {
	Size        uint64       // Requested capacity. Default: DefaultSize
	MinSize     uint64       // Smallest acceptable capacity. Default: DefaultMinSize
	MaxAttempts int          // Reservation attempts before giving up. Default: DefaultMaxAttempts
	Reserver    Reserver     // Source of memory. Default: SystemReserver
	Logger      *slog.Logger // Default: logger.L
}

func (o Options) withDefaults() Options {
	if o.Size == 0 {
		o.Size = DefaultSize
	}
	if o.MinSize == 0 {
		o.MinSize = DefaultMinSize
	}
	if o.MinSize < minFloor {
		o.MinSize = minFloor
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Reserver == nil {
		o.Reserver = SystemReserver
	}
	return o
}
