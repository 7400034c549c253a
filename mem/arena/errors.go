package arena

import "errors"

var (
	// ErrReserveFailed indicates no reservation succeeded above the configured floor.
	ErrReserveFailed = errors.New("arena: reservation failed")

	// ErrTooLarge indicates a reservation size that does not fit the address space.
	ErrTooLarge = errors.New("arena: size exceeds address space")

	// ErrHintUnsupported indicates a non-null address hint on a platform that ignores hints.
	ErrHintUnsupported = errors.New("arena: address hints are not supported")

	// ErrCorrupt indicates inconsistent heap bookkeeping.
	ErrCorrupt = errors.New("arena: heap corrupt")
)
