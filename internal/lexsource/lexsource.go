// Package lexsource implements the source lexer: splitting a source file
// into an alternating sequence of code blocks and doc blocks using a
// compiled language from internal/lexlang.
//
// The algorithm is grounded on the two-index scanning idiom keystorm's
// internal/lsp/transport.go readLoop uses to walk a byte stream looking for
// the next framing boundary (here, the next lexical token) and act on
// everything accumulated since the last boundary.
package lexsource

import (
	"regexp"
	"strings"

	"github.com/dshills/editorsrv/internal/lexlang"
)

// BlockKind distinguishes the two SourceBlock variants.
type BlockKind int

const (
	Code BlockKind = iota
	Doc
)

// SourceBlock is either a CodeBlock (Kind == Code, only Text set) or a
// DocBlock (Kind == Doc).
type SourceBlock struct {
	Kind      BlockKind
	Text      string // Code blocks only.
	Indent    string // Doc blocks only.
	Delimiter string // Doc blocks only: the opening comment marker.
	Contents  string // Doc blocks only: comment body with delimiters stripped.
	Lines     int    // Doc blocks only: source lines spanned.
}

var eolNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeEOL rewrites \r\n and bare \r to \n, the normalization every
// lexer pass performs before scanning.
func NormalizeEOL(s string) string {
	return eolNormalizer.Replace(s)
}

var wsOnly = regexp.MustCompile(`^[ \t]*$`)

// Lex splits normalized source text into SourceBlocks for a compiled
// language. Callers must pass already EOL-normalized text (NormalizeEOL);
// Lex does not normalize internally so repeated calls on an already
// normalized string are idempotent and cheap to test against.
func Lex(src string, lang *lexlang.CompiledLanguage) []SourceBlock {
	if lang == nil || lang.TokenRe == nil {
		if src == "" {
			return nil
		}
		return []SourceBlock{{Kind: Code, Text: src}}
	}

	var out []SourceBlock
	unlexedStart := 0
	currentBlockStart := 0

	appendCode := func(text string) {
		if text == "" {
			return
		}
		out = append(out, SourceBlock{Kind: Code, Text: text})
	}

	appendDoc := func(indent, delim, contents string, lines int) {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.Kind == Doc && last.Indent == indent && last.Delimiter == delim {
				last.Contents += contents
				last.Lines += lines
				return
			}
		}
		if contents == "" && lines == 0 {
			return
		}
		out = append(out, SourceBlock{Kind: Doc, Indent: indent, Delimiter: delim, Contents: contents, Lines: lines})
	}

	for unlexedStart <= len(src) {
		tail := src[unlexedStart:]
		loc := lang.TokenRe.FindStringSubmatchIndex(tail)
		if loc == nil {
			break
		}
		matchStart := unlexedStart + loc[0]
		matchEnd := unlexedStart + loc[1]

		grp, heredocIdent := matchedGroup(lang, tail, loc)

		switch grp.Type {
		case lexlang.DelimString, lexlang.DelimTemplateLiteral:
			closeTail := src[matchEnd:]
			pos, length, ok := lexlang.FindStringClose(closeTail, grp.Delim, grp.Escape, grp.Newline, grp.DoubledDelim)
			if !ok {
				// Unterminated string: rest of file is code.
				unlexedStart = len(src)
				continue
			}
			unlexedStart = matchEnd + pos + length
			continue

		case lexlang.DelimHeredoc:
			closeTail := src[matchEnd:]
			pos, length, ok := lexlang.FindHeredocClose(closeTail, grp.HeredocStopPrefix, heredocIdent, grp.HeredocStopSuffix)
			if !ok {
				unlexedStart = len(src)
				continue
			}
			unlexedStart = matchEnd + pos + length
			continue

		case lexlang.DelimBlockComment:
			closeTail := src[matchEnd:]
			pos, length, ok := lexlang.FindBlockCommentClose(closeTail, grp.Opener, grp.Closing, grp.Nested, grp.StandaloneLine)
			if !ok {
				// Unterminated block comment: rest of file is code, never
				// promoted to a doc block.
				appendCode(src[currentBlockStart:])
				currentBlockStart = len(src)
				unlexedStart = len(src)
				continue
			}
			closerStart := matchEnd + pos
			closerEnd := closerStart + length

			codeBefore := src[currentBlockStart:matchStart]
			commentBody := src[matchEnd:closerStart]
			lineStart := strings.LastIndexByte(codeBefore, '\n') + 1
			commentLinePrefix := codeBefore[lineStart:]

			nlAfterCloser := strings.IndexByte(src[closerEnd:], '\n')
			var postCloseLine string
			if nlAfterCloser < 0 {
				postCloseLine = src[closerEnd:]
			} else {
				postCloseLine = src[closerEnd : closerEnd+nlAfterCloser]
			}

			isDoc := (strings.HasPrefix(commentBody, " ") || strings.HasPrefix(commentBody, "\n")) &&
				wsOnly.MatchString(commentLinePrefix) &&
				wsOnly.MatchString(postCloseLine)

			if isDoc {
				appendCode(codeBefore[:lineStart])
				contents := stripOneLeading(commentBody)
				contents = stripOneTrailingSpace(contents)
				contents += postCloseLine
				lines := strings.Count(src[matchStart:closerEnd+len(postCloseLine)], "\n")
				if lines == 0 {
					lines = 1
				}
				appendDoc(commentLinePrefix, grp.Opener, contents, lines)
				newStart := closerEnd + len(postCloseLine)
				currentBlockStart = newStart
				unlexedStart = newStart
			} else {
				unlexedStart = closerEnd
			}
			continue

		case lexlang.DelimInlineComment:
			codeBefore := src[currentBlockStart:matchStart]
			lineStart := strings.LastIndexByte(codeBefore, '\n') + 1
			commentLinePrefix := codeBefore[lineStart:]

			nl := strings.IndexByte(src[matchEnd:], '\n')
			var fullComment string
			var afterComment int
			if nl < 0 {
				fullComment = src[matchEnd:]
				afterComment = len(src)
			} else {
				fullComment = src[matchEnd : matchEnd+nl]
				afterComment = matchEnd + nl
			}

			isDoc := wsOnly.MatchString(commentLinePrefix) &&
				(strings.HasPrefix(fullComment, " ") || fullComment == "" || fullComment == "\n")

			if isDoc {
				appendCode(codeBefore[:lineStart])
				contents := strings.TrimPrefix(fullComment, " ")
				if nl >= 0 {
					contents += "\n"
					afterComment++ // consume the newline itself
				}
				appendDoc(commentLinePrefix, grp.Opener, contents, 1)
				currentBlockStart = afterComment
				unlexedStart = afterComment
			} else {
				unlexedStart = afterComment
			}
			continue
		}
	}

	appendCode(src[currentBlockStart:])
	return out
}

func stripOneLeading(s string) string {
	if strings.HasPrefix(s, " ") || strings.HasPrefix(s, "\n") {
		return s[1:]
	}
	return s
}

func stripOneTrailingSpace(s string) string {
	if strings.HasSuffix(s, " ") {
		return s[:len(s)-1]
	}
	return s
}

// matchedGroup finds which alternative matched given submatch index pairs
// from FindStringSubmatchIndex (relative to tail), and if it was a heredoc,
// the captured identifier text.
func matchedGroup(lang *lexlang.CompiledLanguage, tail string, loc []int) (lexlang.CompiledGroup, string) {
	for _, g := range lang.Groups {
		base := g.GroupIndex * 2
		if base+1 < len(loc) && loc[base] >= 0 {
			ident := ""
			if g.Type == lexlang.DelimHeredoc {
				ib := g.IdentGroup * 2
				if ib+1 < len(loc) && loc[ib] >= 0 {
					ident = tail[loc[ib]:loc[ib+1]]
				}
			}
			return g, ident
		}
	}
	return lexlang.CompiledGroup{}, ""
}
