package trace

import "unicode/utf8"

// MaxNameLength is the longest span name kept, in characters.
const MaxNameLength = 50

// ShortenName truncates name to MaxNameLength characters, keeping the prefix.
func ShortenName(name string) string {
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}

	n := 0
	for i := range name {
		if n == MaxNameLength {
			return name[:i]
		}
		n++
	}
	return name
}
