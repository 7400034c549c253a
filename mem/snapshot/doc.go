// Package snapshot saves and restores the process memory that matters for
// resuming execution: the arena and the writable pages of selected modules.
//
// # Archive Layout
//
// One traversal serves both directions; the archive's mode decides whether
// fields are written or read. All fixed-size fields are 8 bytes.
//
//	capacity            arena capacity at save time
//	hwm                 arena high-water mark
//	arena[0:hwm]        raw arena bytes
//	count               number of module regions
//	count x {
//	    addr            region start
//	    size            region length
//	    bytes[size]     region contents
//	}
//
// # Restore
//
// The arena is rewritten under its lock. Module regions are written back only
// when the whole region is still writable; otherwise the engine skips exactly
// size bytes so the following descriptors stay aligned. With the NoModules
// scope every region is skipped. Module memory is not
// locked: other threads must be quiesced by the caller.
//
// The capacity field is informational. An archive taken from a larger arena
// restores the first Capacity bytes and skips the rest.
package snapshot
