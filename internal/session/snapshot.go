package session

import (
	"github.com/dshills/editorsrv/internal/lexlang"
	"github.com/dshills/editorsrv/internal/mdtransform"
)

// FileSnapshot is the Server's authoritative mirror of one file's state,
// used to compute diffs and to decide whether a full or diff update is due.
type FileSnapshot struct {
	SourceText string
	EOL        string // "\n" or "\r\n"; detected from the first terminator.
	Lang       *lexlang.CompiledLanguage
	ClientDoc  *mdtransform.ClientDocument
	Version    float64
	SentFull   bool
}

// eolOf detects the line-ending kind from the first terminator found in s.
func eolOf(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > 0 && s[i-1] == '\r' {
				return "\r\n"
			}
			return "\n"
		}
	}
	return "\n"
}

// toIDEEol rewrites internal LF-normalized text back to eol for the IDE
// side, so offsets in diffs sent to the IDE reference IDE-native bytes.
func toIDEEol(s, eol string) string {
	if eol == "\n" {
		return s
	}
	out := make([]byte, 0, len(s)+len(s)/8)
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, eol...)
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
