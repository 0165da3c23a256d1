// Package diffengine computes and applies the two diff forms the wire
// protocol uses: character-offset StringEdit sequences between two strings,
// and structural OverlayEdit splices between two overlay-block vectors.
//
// StringEdit is grounded on google-licenseclassifier/stringclassifier's use
// of github.com/sergi/go-diff/diffmatchpatch for nearest-match string
// comparison: this package reaches for the same library's line-mode diffing
// idiom (DiffLinesToChars -> DiffMain -> DiffCharsToLines), which is exactly
// the "line-based minimal edit, then recover character offsets" algorithm
// the synchronization engine specifies.
package diffengine

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dshills/editorsrv/internal/chars"
)

// StringEdit is one character-offset edit into the "before" string. To is
// nil for a pure insertion; an empty Insert denotes a pure deletion.
type StringEdit struct {
	From   int
	To     *int
	Insert string
}

// ComputeStringDiff returns the edits that transform before into after,
// expressed in rune offsets of before.
func ComputeStringDiff(before, after string) []StringEdit {
	if before == after {
		return nil
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var edits []StringEdit
	offset := 0
	i := 0
	for i < len(diffs) {
		d := diffs[i]
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			offset += chars.Len(d.Text)
			i++
		case diffmatchpatch.DiffDelete:
			delLen := chars.Len(d.Text)
			insert := ""
			j := i + 1
			if j < len(diffs) && diffs[j].Type == diffmatchpatch.DiffInsert {
				insert = diffs[j].Text
				j++
			}
			to := offset + delLen
			edits = append(edits, StringEdit{From: offset, To: &to, Insert: insert})
			offset = to
			i = j
		case diffmatchpatch.DiffInsert:
			edits = append(edits, StringEdit{From: offset, Insert: d.Text})
			i++
		}
	}
	return edits
}

// ApplyStringDiff applies edits (in ascending, non-overlapping From order)
// to before, returning the resulting string.
func ApplyStringDiff(before string, edits []StringEdit) string {
	if len(edits) == 0 {
		return before
	}
	runes := []rune(before)
	var out []rune
	cursor := 0
	for _, e := range edits {
		if e.From > cursor {
			out = append(out, runes[cursor:e.From]...)
		}
		out = append(out, []rune(e.Insert)...)
		if e.To != nil {
			cursor = *e.To
		} else {
			cursor = e.From
		}
	}
	if cursor < len(runes) {
		out = append(out, runes[cursor:]...)
	}
	return string(out)
}
