package session

import (
	"github.com/dshills/editorsrv/internal/diffengine"
	"github.com/dshills/editorsrv/internal/mdtransform"
	"github.com/dshills/editorsrv/internal/protocol"
)

func toWireOverlayBlock(b mdtransform.OverlayBlock) protocol.OverlayBlockWire {
	return protocol.OverlayBlockWire{From: b.From, To: b.To, Indent: b.Indent, Delimiter: b.Delimiter, Contents: b.ContentsHTML}
}

func fromWireOverlayBlock(w protocol.OverlayBlockWire) mdtransform.OverlayBlock {
	return mdtransform.OverlayBlock{From: w.From, To: w.To, Indent: w.Indent, Delimiter: w.Delimiter, ContentsHTML: w.Contents}
}

func toWireStringEdit(e diffengine.StringEdit) protocol.StringEditWire {
	return protocol.StringEditWire{From: e.From, To: e.To, Insert: e.Insert}
}

func fromWireStringEdit(w protocol.StringEditWire) diffengine.StringEdit {
	return diffengine.StringEdit{From: w.From, To: w.To, Insert: w.Insert}
}

func toWireStringEdits(es []diffengine.StringEdit) []protocol.StringEditWire {
	out := make([]protocol.StringEditWire, len(es))
	for i, e := range es {
		out[i] = toWireStringEdit(e)
	}
	return out
}

func fromWireStringEdits(ws []protocol.StringEditWire) []diffengine.StringEdit {
	out := make([]diffengine.StringEdit, len(ws))
	for i, w := range ws {
		out[i] = fromWireStringEdit(w)
	}
	return out
}

func toWireOverlayEdits(es []diffengine.OverlayEdit) []protocol.OverlayEditWire {
	out := make([]protocol.OverlayEditWire, len(es))
	for i, e := range es {
		items := make([]protocol.OverlayDiffWire, len(e.Insert))
		for j, it := range e.Insert {
			indent := it.Indent
			items[j] = protocol.OverlayDiffWire{
				From: it.From, To: it.To, Indent: &indent, Delimiter: it.Delimiter,
				Contents: toWireStringEdits(it.Contents),
			}
		}
		out[i] = protocol.OverlayEditWire{From: e.From, To: e.To, Insert: items}
	}
	return out
}

// toWireFullDocument builds a Plain ClientDocumentWire for a full update.
func toWireFullDocument(cd *mdtransform.ClientDocument, version float64) *protocol.ClientDocumentWire {
	blocks := make([]protocol.OverlayBlockWire, len(cd.DocBlocks))
	for i, b := range cd.DocBlocks {
		blocks[i] = toWireOverlayBlock(b)
	}
	return &protocol.ClientDocumentWire{IsDiff: false, Doc: cd.Doc, DocBlocks: blocks, Version: version}
}

// toWireDiffDocument builds a Diff ClientDocumentWire from a before/after pair.
func toWireDiffDocument(before, after *mdtransform.ClientDocument, preVersion, newVersion float64) *protocol.ClientDocumentWire {
	docDiff := diffengine.ComputeStringDiff(before.Doc, after.Doc)
	blocksDiff := diffengine.ComputeOverlayDiff(before.DocBlocks, after.DocBlocks)
	return &protocol.ClientDocumentWire{
		IsDiff:        true,
		DocDiff:       toWireStringEdits(docDiff),
		DocBlocksDiff: toWireOverlayEdits(blocksDiff),
		PreVersion:    preVersion,
		NewVersion:    newVersion,
	}
}

// resolveClientDocument turns an incoming ClientDocumentWire into a concrete
// ClientDocument, applying it against mirror (the session's last-known
// state for this file) when the wire form is a diff. It returns an OutOfSync
// error when a diff arrives with no mirror document or with a pre-version
// that does not match mirror.
func resolveClientDocument(w *protocol.ClientDocumentWire, mirror *FileSnapshot) (*mdtransform.ClientDocument, float64, *protocol.ProtocolError) {
	if !w.IsDiff {
		blocks := make([]mdtransform.OverlayBlock, len(w.DocBlocks))
		for i, b := range w.DocBlocks {
			blocks[i] = fromWireOverlayBlock(b)
		}
		return &mdtransform.ClientDocument{Doc: w.Doc, DocBlocks: blocks}, w.Version, nil
	}

	if mirror == nil || mirror.ClientDoc == nil || mirror.Version != w.PreVersion {
		return nil, 0, protocol.NewError(protocol.KindOutOfSync, protocol.ReservedID, "", nil)
	}
	docDiff := fromWireStringEdits(w.DocDiff)
	doc := diffengine.ApplyStringDiff(mirror.ClientDoc.Doc, docDiff)

	var blocksEdits []diffengine.OverlayEdit
	for _, e := range w.DocBlocksDiff {
		items := make([]diffengine.OverlayItem, len(e.Insert))
		for i, it := range e.Insert {
			indent := ""
			if it.Indent != nil {
				indent = *it.Indent
			}
			items[i] = diffengine.OverlayItem{From: it.From, To: it.To, Indent: indent, Delimiter: it.Delimiter, Contents: fromWireStringEdits(it.Contents)}
		}
		blocksEdits = append(blocksEdits, diffengine.OverlayEdit{From: e.From, To: e.To, Insert: items})
	}
	blocks := diffengine.ApplyOverlayDiff(mirror.ClientDoc.DocBlocks, blocksEdits)
	return &mdtransform.ClientDocument{Doc: doc, DocBlocks: blocks}, w.NewVersion, nil
}

// sameClientDocument implements §9's re-translation equality: strict on
// every overlay field except Contents, which falls back to a whitespace-
// normalized comparison to absorb a rich-text editor's paragraph reflow.
func sameClientDocument(a, b *mdtransform.ClientDocument) bool {
	if a.Doc != b.Doc || len(a.DocBlocks) != len(b.DocBlocks) {
		return false
	}
	for i := range a.DocBlocks {
		x, y := a.DocBlocks[i], b.DocBlocks[i]
		if x.From != y.From || x.To != y.To || x.Indent != y.Indent || x.Delimiter != y.Delimiter {
			return false
		}
		if x.ContentsHTML == y.ContentsHTML {
			continue
		}
		if normalizeWhitespace(x.ContentsHTML) != normalizeWhitespace(y.ContentsHTML) {
			return false
		}
	}
	return true
}

func normalizeWhitespace(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\n' || c == '\r' || c == '\t' {
			c = ' '
		}
		out = append(out, c)
	}
	start, end := 0, len(out)
	for start < end && out[start] == ' ' {
		start++
	}
	for end > start && out[end-1] == ' ' {
		end--
	}
	return string(out[start:end])
}
