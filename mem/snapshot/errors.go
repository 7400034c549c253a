package snapshot

import "errors"

var (
	// ErrWrongMode indicates an archive of the wrong direction.
	ErrWrongMode = errors.New("snapshot: wrong archive mode")

	// ErrNoArena indicates Serialize on an engine built without an arena.
	ErrNoArena = errors.New("snapshot: engine has no arena")
)
