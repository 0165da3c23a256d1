package lexlang

import "strings"

// FindStringClose scans tail (the text immediately after a string/template
// opener) for the closing delimiter, honoring escape and newline-policy
// rules. It returns the byte offset in tail where the closer begins and the
// byte length of the closer, or ok=false if the closer is not found in tail.
//
// This is a hand-written scanner rather than a single regexp: RE2 (the
// engine backing regexp) has no lookahead, and the "permit partial
// delimiters inside the string" rule (`''` inside a Python triple-quoted
// string must not close it) needs one token of lookahead to tell a partial
// delimiter from the real one. The opener-detection stage upstream still
// uses one combined compiled regexp as specified; only this closer search
// is scanned by hand.
func FindStringClose(tail, delim, escape string, newline NewlinePolicy, doubledDelimEscapes bool) (pos, length int, ok bool) {
	i := 0
	for i < len(tail) {
		if doubledDelimEscapes && strings.HasPrefix(tail[i:], delim+delim) {
			i += 2 * len(delim)
			continue
		}
		if strings.HasPrefix(tail[i:], delim) {
			return i, len(delim), true
		}
		if escape != "" && strings.HasPrefix(tail[i:], escape) {
			if i+len(escape) < len(tail) && tail[i+len(escape)] == '\n' {
				switch newline {
				case NewlineEscaped:
					// An escaped newline is permitted; skip escape+newline.
					i += len(escape) + 1
					continue
				case NewlineNone:
					// Newline always terminates regardless of escaping.
					return i + len(escape), 0, false
				case NewlineUnescaped:
					// Newline never terminates; skip escape+newline.
					i += len(escape) + 1
					continue
				}
			}
			// Escape followed by any other character: skip both as one
			// unit so an escaped delimiter character is never mistaken
			// for the closer.
			if i+len(escape) < len(tail) {
				_, size := decodeRuneAt(tail, i+len(escape))
				i += len(escape) + size
				continue
			}
			i += len(escape)
			continue
		}
		if tail[i] == '\n' && (newline == NewlineNone || newline == NewlineEscaped) {
			return i, 0, false
		}
		_, size := decodeRuneAt(tail, i)
		i += size
	}
	return -1, 0, false
}

// FindBlockCommentClose scans tail for the closer of a (possibly nestable)
// block comment, tracking nesting depth when nestable is true. When
// standaloneLine is set (MATLAB's %{ / %}), the closer only counts when it
// is alone on its line with nothing but surrounding whitespace, matching
// how the opener itself is anchored.
func FindBlockCommentClose(tail, opener, closer string, nestable, standaloneLine bool) (pos, length int, ok bool) {
	if !nestable {
		if standaloneLine {
			return findStandaloneLineClose(tail, closer)
		}
		idx := strings.Index(tail, closer)
		if idx < 0 {
			return -1, 0, false
		}
		return idx, len(closer), true
	}
	depth := 1
	i := 0
	for i < len(tail) {
		switch {
		case strings.HasPrefix(tail[i:], opener):
			depth++
			i += len(opener)
		case strings.HasPrefix(tail[i:], closer):
			depth--
			if depth == 0 {
				return i, len(closer), true
			}
			i += len(closer)
		default:
			_, size := decodeRuneAt(tail, i)
			i += size
		}
	}
	return -1, 0, false
}

// findStandaloneLineClose scans tail line by line for one whose only
// non-whitespace content is closer.
func findStandaloneLineClose(tail, closer string) (pos, length int, ok bool) {
	offset := 0
	for {
		nl := strings.IndexByte(tail[offset:], '\n')
		var line string
		if nl < 0 {
			line = tail[offset:]
		} else {
			line = tail[offset : offset+nl]
		}
		if strings.TrimSpace(line) == closer {
			leading := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			return offset + len(leading), len(closer), true
		}
		if nl < 0 {
			return -1, 0, false
		}
		offset += nl + 1
	}
}

// FindHeredocClose scans tail line by line for the first line matching
// stopPrefix + identifier + stopSuffix (allowing the conventional leading
// whitespace stripped heredoc forms, i.e. the match may be preceded only by
// whitespace on its line).
func FindHeredocClose(tail, stopPrefix, identifier, stopSuffix string) (pos, length int, ok bool) {
	want := stopPrefix + identifier + stopSuffix
	offset := 0
	for {
		nl := strings.IndexByte(tail[offset:], '\n')
		var line string
		if nl < 0 {
			line = tail[offset:]
		} else {
			line = tail[offset : offset+nl]
		}
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == want {
			start := offset + (len(line) - len(trimmed))
			return start, len(want), true
		}
		if nl < 0 {
			return -1, 0, false
		}
		offset += nl + 1
	}
}

func decodeRuneAt(s string, i int) (rune, int) {
	for _, r := range s[i:] {
		size := len(string(r))
		return r, size
	}
	return 0, 1
}
