package utils

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// byteUnits are the binary multiples understood by ParseBytes and used
// by HumanBytes, smallest first.
var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// sizePattern matches "<number><unit>" where unit is one of k, m, g, t
// optionally followed by "i", "b" or "/s": 500K, 1.5MiB, 2mb/s.
var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(?:([kmgt])(?:i?b)?|b)?(?:/s)?$`)

// ParseBytes parses a size or rate limit such as "512", "500KB",
// "1.5MiB" or "2M/s". Units are binary; an empty string is zero.
func ParseBytes(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.Errorf("invalid size %q", s)
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", s)
	}
	var shift uint
	if m[2] != "" {
		shift = uint(strings.Index("kmgt", m[2])+1) * 10
	}
	return int64(val * float64(int64(1)<<shift)), nil
}

// HumanBytes formats n with the largest binary unit that keeps the value
// at or above one.
func HumanBytes(n int64) string {
	val := float64(n)
	i := 0
	for ; val >= 1024 && i < len(byteUnits)-1; i++ {
		val /= 1024
	}
	return strconv.FormatFloat(val, 'f', 2, 64) + byteUnits[i]
}

// HumanRate formats a transfer speed given in bytes per second.
func HumanRate(bytesPerSecond int64) string {
	return HumanBytes(bytesPerSecond) + "/s"
}

// IsMagnet reports whether src is a magnet link.
func IsMagnet(src string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(src)), "magnet:")
}
