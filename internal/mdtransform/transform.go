package mdtransform

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/dshills/editorsrv/internal/lexlang"
	"github.com/dshills/editorsrv/internal/lexsource"
)

// ErrUnknownLexer is returned when a file's directive or extension does not
// resolve to a known language; the caller serves the file raw in that case.
var ErrUnknownLexer = errors.New("mdtransform: unknown lexer")

// ErrUnknownCommentOpener is returned by SourceFromClient when a doc block's
// stored delimiter is not one the target language declares.
var ErrUnknownCommentOpener = errors.New("mdtransform: unknown comment opener")

var lexerDirective = regexp.MustCompile(`CodeChat Editor lexer:\s*(\S+)`)

// DetectLanguage resolves a file to a compiled language, preferring an
// in-file directive over the extension.
func DetectLanguage(langs map[string]*lexlang.CompiledLanguage, filePath, contents string) (*lexlang.CompiledLanguage, error) {
	if m := lexerDirective.FindStringSubmatch(contents); m != nil {
		if cl, ok := langs[m[1]]; ok {
			return cl, nil
		}
		return nil, fmt.Errorf("%w: directive tag %q", ErrUnknownLexer, m[1])
	}
	ext := path.Ext(filePath)
	if cl, ok := lexlang.DetectByExtension(langs, ext); ok {
		return cl, nil
	}
	return nil, fmt.Errorf("%w: extension %q", ErrUnknownLexer, ext)
}

// SourceToClient implements §4.3.1: it lexes source into SourceBlocks, then
// renders every doc block's contents as one Markdown document so link
// reference definitions in one doc block resolve against links defined in
// another, then reassembles Doc and the overlay vector.
func SourceToClient(src string, lang *lexlang.CompiledLanguage) (*ClientDocument, error) {
	if lang.Def.Tag == lexlang.MarkdownTag {
		return &ClientDocument{Doc: RenderDocumentationOnly(lexsource.NormalizeEOL(src)), DocBlocks: nil}, nil
	}

	normalized := lexsource.NormalizeEOL(src)
	blocks := lexsource.Lex(normalized, lang)

	var docContents []string
	for _, b := range blocks {
		if b.Kind == lexsource.Doc {
			docContents = append(docContents, b.Contents)
		}
	}
	htmlPieces := renderDocBlockSet(docContents)

	var doc strings.Builder
	var overlays []OverlayBlock
	docIdx := 0
	for _, b := range blocks {
		switch b.Kind {
		case lexsource.Code:
			doc.WriteString(b.Text)
		case lexsource.Doc:
			n := b.Lines
			placeholderLen := max(n, 1) - 1
			from := doc.Len()
			doc.WriteString(strings.Repeat("\n", n))
			to := from + placeholderLen
			overlays = append(overlays, OverlayBlock{
				From:         from,
				To:           to,
				Indent:       b.Indent,
				Delimiter:    b.Delimiter,
				ContentsHTML: htmlPieces[docIdx],
			})
			docIdx++
		}
	}

	return &ClientDocument{Doc: doc.String(), DocBlocks: overlays}, nil
}

// SourceFromClient implements §4.3.2: replaying a ClientDocument back into
// source text for the target language, given the doc blocks' contents as
// Markdown (not HTML).
//
// docBlockMarkdown must hold, in overlay order, the Markdown contents the
// Client currently associates with each overlay (the Client converts HTML
// back to Markdown itself; this function never sees HTML on the way back).
func SourceFromClient(doc *ClientDocument, docBlockMarkdown []string, lang *lexlang.CompiledLanguage) (string, error) {
	var out strings.Builder
	codeIndex := 0
	for i, ov := range doc.DocBlocks {
		if ov.From > codeIndex {
			out.WriteString(doc.Doc[codeIndex:ov.From])
		}
		content := ""
		if i < len(docBlockMarkdown) {
			content = docBlockMarkdown[i]
		}
		rendered, err := reserializeDocBlock(ov, content, lang)
		if err != nil {
			return "", err
		}
		out.WriteString(rendered)
		codeIndex = ov.To + 1
	}
	if codeIndex < len(doc.Doc) {
		out.WriteString(doc.Doc[codeIndex:])
	}
	return out.String(), nil
}

func reserializeDocBlock(ov OverlayBlock, contents string, lang *lexlang.CompiledLanguage) (string, error) {
	if isInlineDelimiter(lang, ov.Delimiter) {
		return reserializeInline(ov.Indent, ov.Delimiter, contents), nil
	}
	closer, ok := blockCloserFor(lang, ov.Delimiter)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommentOpener, ov.Delimiter)
	}
	return reserializeBlock(ov.Indent, ov.Delimiter, closer, contents), nil
}

func isInlineDelimiter(lang *lexlang.CompiledLanguage, delim string) bool {
	for _, d := range lang.Def.InlineComments {
		if d == delim {
			return true
		}
	}
	return false
}

func blockCloserFor(lang *lexlang.CompiledLanguage, opener string) (string, bool) {
	for _, bc := range lang.Def.BlockComments {
		if bc.Opening == opener {
			return bc.Closing, true
		}
	}
	if lang.Def.Special == lexlang.SpecialCaseMatlab && opener == "%{" {
		return "%}", true
	}
	return "", false
}

func reserializeInline(indent, delim, contents string) string {
	lines := strings.Split(contents, "\n")
	// A trailing "\n" in contents produces a trailing empty element from
	// Split; drop it so it does not become a spurious extra comment line.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return indent + delim + "\n"
	}
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(indent)
		b.WriteString(delim)
		if line != "" {
			b.WriteByte(' ')
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func reserializeBlock(indent, openDelim, closeDelim, contents string) string {
	lines := strings.Split(contents, "\n")
	pad := strings.Repeat(" ", len(openDelim))
	var b strings.Builder
	for i, line := range lines {
		last := i == len(lines)-1
		switch {
		case i == 0:
			b.WriteString(indent)
			b.WriteString(openDelim)
			b.WriteByte(' ')
			b.WriteString(line)
		case line == "":
			b.WriteByte('\n')
			continue
		default:
			b.WriteString(indent)
			b.WriteString(pad)
			b.WriteString(line)
		}
		if last {
			b.WriteByte(' ')
			b.WriteString(closeDelim)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
