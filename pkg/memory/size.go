package memory

import (
	"fmt"
	"strconv"
	"strings"
)

var sizeUnits = []struct {
	suffix string
	shift  uint
}{
	{"kib", 10}, {"mib", 20}, {"gib", 30}, {"tib", 40},
	{"kb", 10}, {"mb", 20}, {"gb", 30}, {"tb", 40},
	{"k", 10}, {"m", 20}, {"g", 30}, {"t", 40},
	{"b", 0},
}

// ParseSize parses a byte count such as "4096", "0x1000", "64KiB", "512M" or "4G".
// Units are binary.
func ParseSize(s string) (uint64, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	var shift uint
	// Hex literals keep their digits; "0x1b" is not 1 byte.
	if !strings.HasPrefix(t, "0x") {
		for _, u := range sizeUnits {
			if strings.HasSuffix(t, u.suffix) {
				t, shift = strings.TrimSpace(strings.TrimSuffix(t, u.suffix)), u.shift
				break
			}
		}
	}
	n, err := strconv.ParseUint(t, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadSize, s)
	}
	if n > ^uint64(0)>>shift {
		return 0, fmt.Errorf("%w: %q overflows", ErrBadSize, s)
	}
	return n << shift, nil
}

// FormatSize renders n with the largest binary unit that divides it.
func FormatSize(n uint64) string {
	for _, u := range []struct {
		name  string
		shift uint
	}{{"TiB", 40}, {"GiB", 30}, {"MiB", 20}, {"KiB", 10}} {
		if n >= 1<<u.shift && n&(1<<u.shift-1) == 0 {
			return strconv.FormatUint(n>>u.shift, 10) + u.name
		}
	}
	return strconv.FormatUint(n, 10) + "B"
}
