//go:build linux

package arena

import "golang.org/x/sys/unix"

// Large arenas are mostly untouched; do not charge them against commit limits.
const mmapExtraFlags = unix.MAP_NORESERVE
