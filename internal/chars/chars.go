// Package chars provides the rune- and grapheme-aware helpers the diff
// engine and wire protocol need to keep the distinction between "character
// offset" (a Unicode code point, what the protocol specifies) and "grapheme
// cluster" (what a user thinks of as one visible character) explicit, the
// same distinction keystorm's terminal layer draws for column widths.
package chars

import (
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// Len returns the number of Unicode code points (runes) in s. StringDiff
// offsets are specified in this unit, not bytes and not grapheme clusters.
func Len(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}

// RuneSlice returns the substring spanning code points [from, to) of s.
// Offsets are in runes, matching Len.
func RuneSlice(s string, from, to int) string {
	if from >= to {
		return ""
	}
	r := []rune(s)
	if from < 0 {
		from = 0
	}
	if to > len(r) {
		to = len(r)
	}
	if from >= to {
		return ""
	}
	return string(r[from:to])
}

// GraphemeLen returns the number of user-perceived characters in s. It is
// provided so tests and callers can assert that rune counting and grapheme
// counting diverge on combining sequences, emoji, etc; StringDiff never uses
// this for wire offsets.
func GraphemeLen(s string) int {
	return uniseg.GraphemeClusterCount(s)
}

// IsBinary reports whether the first block of data looks like non-text
// content: the presence of a NUL byte, or a decode failure as UTF-8.
func IsBinary(probe []byte) bool {
	for _, b := range probe {
		if b == 0 {
			return true
		}
	}
	return !validUTF8(probe)
}

// validUTF8 treats a truncated multi-byte sequence at the very end of the
// probe as valid, since a text file read in fixed-size blocks can legally
// split a rune across a block boundary.
func validUTF8(p []byte) bool {
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		if r == utf8.RuneError && size <= 1 {
			if size == 0 {
				return true
			}
			// A short sequence at the tail may just be a truncated probe.
			if len(p) < utf8.UTFMax && utf8.RuneStart(p[0]) {
				return true
			}
			return false
		}
		p = p[size:]
	}
	return true
}
