package mdtransform

import (
	stdhtml "html"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// separatorMarker joins concatenated doc-block contents before rendering
// them as one Markdown document, so link reference definitions in one doc
// block resolve against links in another. It is a raw HTML comment rather
// than plain text: CommonMark passes HTML blocks through the renderer
// verbatim, so unlike a plain-text token it actually survives rendering and
// can be found again in the output HTML.
const separatorMarker = "<!--CODECHAT-DOC-BLOCK-SEP-->"

const separatorSentinel = "\n\n" + separatorMarker + "\n\n"

// escapedSeparatorMarker is how separatorMarker reads if an unterminated
// fence swallows it as code text instead of letting it stand as its own
// HTML block: the renderer HTML-escapes code content, turning the literal
// "<!--...-->" into "&lt;!--...--&gt;". mendFences looks for this form to
// detect the corruption.
var escapedSeparatorMarker = stdhtml.EscapeString(separatorMarker)

// splitOnSeparator finds separatorMarker in rendered HTML, consuming
// whatever blank-line whitespace CommonMark left immediately around it as
// an HTML block so neighboring pieces come back clean.
var splitOnSeparator = regexp.MustCompile(`\n*` + regexp.QuoteMeta(separatorMarker) + `\n*`)

func markdownExtensions() parser.Extensions {
	// CommonMark plus the enabled feature set from the transform spec.
	// Smart punctuation and math are deliberately left out: they do not
	// round-trip through the Client's HTML -> Markdown converter.
	return (parser.CommonExtensions &^ parser.MathJax) |
		parser.AutoHeadingIDs |
		parser.Attributes |
		parser.Footnotes
}

func renderMarkdown(src string) string {
	p := parser.NewWithExtensions(markdownExtensions())
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags &^ html.Smartypants &^
			html.SmartypantsFractions &^ html.SmartypantsDashes &^
			html.SmartypantsLatexDashes &^ html.SmartypantsAngledQuotes &^
			html.SmartypantsQuotesNBSP,
	})
	out := markdown.ToHTML([]byte(src), p, renderer)
	out = []byte(mendFences(string(out)))
	out = []byte(renderTaskListItems(string(out)))
	return string(out)
}

// mendFences repairs the case where a separator marker lands immediately
// after an unterminated ``` or ~~~ fence: CommonMark treats the rest of the
// document as one open code block, so the marker (and everything after it)
// is swallowed into <pre><code> as escaped text instead of standing as its
// own HTML block. This finds that escaped form inside such a block and
// replaces it with the canonical fence closer followed by the marker in its
// normal (unescaped) form, so downstream splitting still sees the right
// number of pieces.
func mendFences(htmlOut string) string {
	corrupted := regexp.MustCompile(regexp.QuoteMeta(escapedSeparatorMarker))
	return corrupted.ReplaceAllStringFunc(htmlOut, func(string) string {
		return "</code></pre>\n" + separatorMarker + "\n"
	})
}

var taskListItem = regexp.MustCompile(`<li>\[([ xX])\]\s`)

// renderTaskListItems turns GFM-style "- [ ] foo" / "- [x] foo" list items,
// which gomarkdown parses as plain text rather than emitting a <input>
// checkbox the way GFM renderers do, into the expected checkbox markup.
func renderTaskListItems(htmlOut string) string {
	return taskListItem.ReplaceAllStringFunc(htmlOut, func(m string) string {
		checked := ""
		if strings.ToLower(m) != m || strings.Contains(m, "x") || strings.Contains(m, "X") {
			checked = " checked"
		}
		return `<li class="task-list-item"><input type="checkbox" disabled` + checked + "> "
	})
}

// removeTerminatedFenceClosers collapses a run of two or more back-to-back
// "</code></pre>\n" fence closers into a single one, so a closer inserted
// by mendFences does not stand beside a duplicate. A lone closer, and a
// closer separated from another by any content, is left as it is.
func removeTerminatedFenceClosers(htmlOut string) string {
	dup := regexp.MustCompile(`(?s)</code></pre>\n(</code></pre>\n)+`)
	return dup.ReplaceAllString(htmlOut, "</code></pre>\n")
}

// renderDocBlockSet renders the contents of every doc block as one Markdown
// document (joined by the separator sentinel) and splits the result back
// into one HTML fragment per input block.
func renderDocBlockSet(contents []string) []string {
	if len(contents) == 0 {
		return nil
	}
	joined := strings.Join(contents, separatorSentinel)
	out := renderMarkdown(joined)
	out = removeTerminatedFenceClosers(out)
	pieces := splitOnSeparator.Split(out, -1)
	if len(pieces) != len(contents) {
		// Splitting drifted (an edge case in fence mending); fall back to
		// rendering each block independently so the overlay/doc-block
		// counts stay consistent, which the wire format requires.
		pieces = make([]string, len(contents))
		for i, c := range contents {
			pieces[i] = renderMarkdown(c)
		}
	}
	return pieces
}

// RenderDocumentationOnly renders a whole file as Markdown, used for the
// documentation-only lexer tag.
func RenderDocumentationOnly(src string) string {
	return renderMarkdown(src)
}
