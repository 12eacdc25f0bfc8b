package client

import "unicode/utf8"

// TruncationMarker prefixes a log that was cut down to its tail
const TruncationMarker = "[truncated] "

// Truncate keeps the last bytes of s so that the result, marker included,
// is at most maxBytes long. The cut is moved forward to a rune boundary.
// Inputs that already fit are returned unchanged, so Truncate is idempotent.
func Truncate(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}

	keep := maxBytes - len(TruncationMarker)
	if keep <= 0 {
		return TruncationMarker[:maxBytes]
	}

	start := len(s) - keep
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return TruncationMarker + s[start:]
}
