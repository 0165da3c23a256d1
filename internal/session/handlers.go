package session

import (
	"context"
	"fmt"

	"github.com/dshills/editorsrv/internal/chars"
	"github.com/dshills/editorsrv/internal/diffengine"
	"github.com/dshills/editorsrv/internal/lexlang"
	"github.com/dshills/editorsrv/internal/mdtransform"
	"github.com/dshills/editorsrv/internal/pathcodec"
	"github.com/dshills/editorsrv/internal/protocol"
)

// handleFromIDE implements the "IDE ->" rows of the handled-events table.
func (s *Session) handleFromIDE(ctx context.Context, msg protocol.Message) {
	if protocol.PeerOf(msg.ID) == protocol.PeerServer {
		// A reply to a request the Server sent the IDE.
		if s.awaitingSelfHostedAck && msg.ID == s.selfHostedAckID {
			s.awaitingSelfHostedAck = false
			if msg.Body.Result != nil && !msg.Body.Result.IsErr {
				s.state = Ready
			} else {
				s.log.Error("self-hosted ClientHtml handshake rejected by IDE")
			}
			return
		}
		if body, isLoadFile := s.pendingLoads[msg.ID]; isLoadFile {
			s.handleLoadFileReply(ctx, msg, body)
			return
		}
		s.pending.Resolve(msg.ID, msg)
		return
	}

	switch msg.Body.Kind {
	case protocol.BodyOpened:
		s.handleOpened(ctx, msg)
	case protocol.BodyCurrentFile:
		s.handleIDECurrentFile(msg)
	case protocol.BodyUpdate:
		s.handleIDEUpdate(msg)
	case protocol.BodyResult:
		s.handleIDEResult(msg)
	case protocol.BodyClosed, protocol.BodyRequestClose:
		s.state = Closing
		s.sendToClient(msg)
	case protocol.BodyOpenUrl, protocol.BodyLoadFile, protocol.BodyClientHtml:
		s.replyResult(s.sendToIDE, msg.ID, protocol.NewError(protocol.KindIllegalMessage, msg.ID, string(msg.Body.Kind)+" from IDE", nil))
	default:
		s.replyResult(s.sendToIDE, msg.ID, protocol.NewError(protocol.KindIllegalMessage, msg.ID, string(msg.Body.Kind)+" from IDE", nil))
	}
}

func (s *Session) handleOpened(ctx context.Context, msg protocol.Message) {
	if s.openedOnce {
		s.replyResult(s.sendToIDE, msg.ID, protocol.NewError(protocol.KindIllegalMessage, msg.ID, "Opened after first contact", nil))
		return
	}
	s.openedOnce = true
	if msg.Body.Opened == nil {
		s.replyResult(s.sendToIDE, msg.ID, protocol.NewError(protocol.KindIllegalMessage, msg.ID, "Opened missing ide_type", nil))
		return
	}
	s.selfHosted = msg.Body.Opened.IDEType.SelfHosted
	s.replyResult(s.sendToIDE, msg.ID, nil)

	if s.selfHosted {
		// Send ClientHtml and wait for its ack on a later turn of Run's
		// select loop (handleFromIDE resolves it via selfHostedAckID); blocking here
		// would starve the very loop that must deliver the reply.
		iframeURL := pathcodec.ToURL(s.urlPrefix, s.connectionID, "")
		html := iframeURL
		if s.renderClientHTML != nil {
			html = s.renderClientHTML(iframeURL)
		}
		htmlID := s.serverIDs.Next()
		s.awaitingSelfHostedAck = true
		s.selfHostedAckID = htmlID
		s.sendToIDE(protocol.Message{ID: htmlID, Body: protocol.MessageBody{Kind: protocol.BodyClientHtml, ClientHtml: html}})
		return
	}

	if s.browser != nil {
		url := pathcodec.ToURL(s.urlPrefix, s.connectionID, "")
		if err := s.browser.OpenURL(ctx, url); err != nil {
			s.log.Warn("failed to open external browser", "err", err)
		}
	}
	s.state = Ready
}

func (s *Session) handleIDECurrentFile(msg protocol.Message) {
	cf := msg.Body.CurrentFile
	if cf == nil {
		return
	}
	canon, perr := s.canonicalize(cf.PathOrURL)
	if perr != nil {
		s.replyResult(s.sendToIDE, msg.ID, perr)
		return
	}
	url := pathcodec.ToURL(s.urlPrefix, s.connectionID, canon)
	s.currentFile = canon
	if fs, ok := s.files[canon]; ok {
		fs.SentFull = false
	}
	out := msg
	out.Body.CurrentFile = &protocol.CurrentFilePayload{PathOrURL: url, IsText: cf.IsText}
	s.sendToClient(out)
}

func (s *Session) handleIDEUpdate(msg protocol.Message) {
	up := msg.Body.Update
	if up == nil {
		return
	}
	canon, perr := s.canonicalize(up.FilePath)
	if perr != nil {
		s.replyResult(s.sendToIDE, msg.ID, perr)
		return
	}

	if up.Contents == nil {
		out := msg
		out.Body.Update = &protocol.UpdatePayload{FilePath: canon, CursorPosition: up.CursorPosition, ScrollPosition: up.ScrollPosition}
		s.sendToClient(out)
		return
	}

	snap, perr := s.resolveIDEContents(canon, *up.Contents)
	if perr != nil {
		if perr.Kind == protocol.KindOutOfSync {
			if fs, ok := s.files[canon]; ok {
				fs.SentFull = false
			}
		}
		s.replyResult(s.sendToIDE, msg.ID, perr)
		return
	}

	lang, err := mdtransform.DetectLanguage(s.langs, canon, snap.SourceText)
	if err != nil {
		s.replyResult(s.sendToIDE, msg.ID, protocol.NewError(protocol.KindUnknownLexer, msg.ID, err.Error(), err))
		return
	}
	clientDoc, err := mdtransform.SourceToClient(snap.SourceText, lang)
	if err != nil {
		s.replyResult(s.sendToIDE, msg.ID, protocol.NewError(protocol.KindCannotTranslateSource, msg.ID, err.Error(), err))
		return
	}
	snap.Lang = lang

	out := protocol.Message{ID: msg.ID, Body: protocol.MessageBody{Kind: protocol.BodyUpdate, Update: &protocol.UpdatePayload{
		FilePath: canon, CursorPosition: up.CursorPosition, ScrollPosition: up.ScrollPosition,
	}}}
	if snap.SentFull {
		preVersion := snap.Version
		newVersion := preVersion + 1
		out.Body.Update.Contents = toWireDiffDocument(snap.ClientDoc, clientDoc, preVersion, newVersion)
		snap.Version = newVersion
	} else {
		snap.Version = randomVersion()
		out.Body.Update.Contents = toWireFullDocument(clientDoc, snap.Version)
		snap.SentFull = true
	}
	snap.ClientDoc = clientDoc
	s.files[canon] = snap
	s.sendToClient(out)
}

// resolveIDEContents decodes the IDE's ClientDocumentWire, whose Doc (Plain)
// or DocDiff (Diff) carries raw source text: a Plain update replaces the
// snapshot's source, and a Diff is applied to it only when its pre-version
// matches the snapshot's version (otherwise OutOfSync is returned).
func (s *Session) resolveIDEContents(path string, w protocol.ClientDocumentWire) (*FileSnapshot, *protocol.ProtocolError) {
	snap := s.files[path]
	if snap == nil {
		snap = &FileSnapshot{SentFull: false}
	}

	if !w.IsDiff {
		snap.EOL = eolOf(w.Doc)
		snap.SourceText = lfNormalize(w.Doc)
		return snap, nil
	}

	if snap.Version != w.PreVersion {
		return nil, protocol.NewError(protocol.KindOutOfSync, protocol.ReservedID, path, nil)
	}
	eol := snap.EOL
	if eol == "" {
		eol = "\n"
	}
	ideSrc := toIDEEol(snap.SourceText, eol)
	updated := diffengine.ApplyStringDiff(ideSrc, fromWireStringEdits(w.DocDiff))
	snap.EOL = eolOf(updated)
	snap.SourceText = lfNormalize(updated)
	snap.Version = w.NewVersion
	return snap, nil
}

func lfNormalize(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\r' {
			if i+1 < len(s) && s[i+1] == '\n' {
				continue
			}
			out = append(out, '\n')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func (s *Session) handleIDEResult(msg protocol.Message) {
	if msg.Body.Result != nil && msg.Body.Result.IsErr && msg.Body.Result.ErrKind == protocol.KindOutOfSync {
		if fs, ok := s.files[s.currentFile]; ok {
			fs.SentFull = false
		}
	}
	s.sendToClient(msg)
}

// handleFromClient implements the "Client ->" rows.
func (s *Session) handleFromClient(ctx context.Context, msg protocol.Message) {
	if protocol.PeerOf(msg.ID) == protocol.PeerServer {
		s.pending.Resolve(msg.ID, msg)
		return
	}

	switch msg.Body.Kind {
	case protocol.BodyCurrentFile:
		s.handleClientCurrentFile(msg)
	case protocol.BodyUpdate:
		s.handleClientUpdate(msg)
	case protocol.BodyOpenUrl:
		s.handleClientOpenURL(ctx, msg)
	case protocol.BodyResult:
		s.handleClientResult(msg)
	case protocol.BodyClosed:
		s.state = Closing
		s.sendToIDE(msg)
	case protocol.BodyOpened, protocol.BodyLoadFile, protocol.BodyRequestClose, protocol.BodyClientHtml:
		s.replyResult(s.sendToClient, msg.ID, protocol.NewError(protocol.KindIllegalMessage, msg.ID, string(msg.Body.Kind)+" from Client", nil))
	default:
		s.replyResult(s.sendToClient, msg.ID, protocol.NewError(protocol.KindIllegalMessage, msg.ID, string(msg.Body.Kind)+" from Client", nil))
	}
}

func (s *Session) handleClientCurrentFile(msg protocol.Message) {
	cf := msg.Body.CurrentFile
	if cf == nil {
		return
	}
	_, path, err := pathcodec.FromURL(s.urlPrefix, cf.PathOrURL)
	if err != nil {
		s.replyResult(s.sendToClient, msg.ID, protocol.NewError(protocol.KindUrlToPath, msg.ID, err.Error(), err))
		return
	}
	isText := true
	if fs, ok := s.files[path]; ok {
		isText = !chars.IsBinary([]byte(fs.SourceText[:min(len(fs.SourceText), 8192)]))
	}
	out := msg
	out.Body.CurrentFile = &protocol.CurrentFilePayload{PathOrURL: path, IsText: &isText}
	s.sendToIDE(out)
}

func (s *Session) handleClientUpdate(msg protocol.Message) {
	up := msg.Body.Update
	if up == nil {
		return
	}
	canon, perr := s.canonicalize(up.FilePath)
	if perr != nil {
		s.replyResult(s.sendToClient, msg.ID, perr)
		return
	}

	if up.Contents == nil {
		out := msg
		out.Body.Update = &protocol.UpdatePayload{FilePath: canon, CursorPosition: up.CursorPosition, ScrollPosition: up.ScrollPosition}
		s.sendToIDE(out)
		return
	}

	snap := s.files[canon]
	clientDoc, version, perr := resolveClientDocument(up.Contents, snap)
	if perr != nil {
		if perr.Kind == protocol.KindOutOfSync && snap != nil {
			snap.SentFull = false
		}
		s.replyResult(s.sendToClient, msg.ID, perr)
		return
	}

	var lang *lexlang.CompiledLanguage
	if snap != nil && snap.Lang != nil {
		lang = snap.Lang
	} else if l, err := mdtransform.DetectLanguage(s.langs, canon, ""); err == nil {
		lang = l
	} else {
		s.replyResult(s.sendToClient, msg.ID, protocol.NewError(protocol.KindUnknownLexer, msg.ID, canon, err))
		return
	}

	if snap == nil {
		snap = &FileSnapshot{EOL: "\n"}
		s.files[canon] = snap
	}
	snap.Lang = lang
	snap.Version = version

	// The Client round-trips its own HTML edits back to Markdown before
	// sending an Update; ContentsHTML on this inbound path is misnamed but
	// holds that Markdown, matching SourceFromClient's contract.
	var markdownPieces []string
	for _, b := range clientDoc.DocBlocks {
		markdownPieces = append(markdownPieces, b.ContentsHTML)
	}
	source, err := mdtransform.SourceFromClient(clientDoc, markdownPieces, lang)
	if err != nil {
		s.replyResult(s.sendToClient, msg.ID, protocol.NewError(protocol.KindCannotTranslateClient, msg.ID, err.Error(), err))
		return
	}

	if lang.Def.Tag != lexlang.MarkdownTag {
		reDoc, rerr := mdtransform.SourceToClient(source, lang)
		if rerr == nil && !sameClientDocument(reDoc, clientDoc) {
			newVersion := version + 1
			diffOut := protocol.Message{ID: s.serverIDs.Next(), Body: protocol.MessageBody{Kind: protocol.BodyUpdate, Update: &protocol.UpdatePayload{
				FilePath: canon,
				Contents: toWireDiffDocument(clientDoc, reDoc, version, newVersion),
			}}}
			snap.Version = newVersion
			snap.ClientDoc = reDoc
			s.sendToClient(diffOut)
		} else {
			snap.ClientDoc = clientDoc
		}
	}

	eol := snap.EOL
	if eol == "" {
		eol = "\n"
	}
	previousIDESource := toIDEEol(snap.SourceText, eol)
	ideSrc := toIDEEol(source, eol)
	snap.SourceText = source

	ideBody := protocol.MessageBody{Kind: protocol.BodyUpdate, Update: &protocol.UpdatePayload{
		FilePath: canon, CursorPosition: up.CursorPosition, ScrollPosition: up.ScrollPosition,
	}}
	if snap.SentFull {
		preVersion, newVersion := snap.Version, snap.Version+1
		ideBody.Update.Contents = &protocol.ClientDocumentWire{
			IsDiff:     true,
			DocDiff:    toWireStringEdits(diffengine.ComputeStringDiff(previousIDESource, ideSrc)),
			PreVersion: preVersion, NewVersion: newVersion,
		}
		snap.Version = newVersion
	} else {
		snap.Version = randomVersion()
		ideBody.Update.Contents = &protocol.ClientDocumentWire{IsDiff: false, Doc: ideSrc, Version: snap.Version}
		snap.SentFull = true
	}
	s.sendToIDE(protocol.Message{ID: msg.ID, Body: ideBody})
}

func (s *Session) handleClientOpenURL(ctx context.Context, msg protocol.Message) {
	if s.browser == nil {
		s.replyResult(s.sendToClient, msg.ID, protocol.NewError(protocol.KindWebBrowserOpenFailed, msg.ID, "no browser opener configured", nil))
		return
	}
	if err := s.browser.OpenURL(ctx, msg.Body.OpenUrl); err != nil {
		s.replyResult(s.sendToClient, msg.ID, protocol.NewError(protocol.KindWebBrowserOpenFailed, msg.ID, err.Error(), err))
		return
	}
	s.replyResult(s.sendToClient, msg.ID, nil)
}

func (s *Session) handleClientResult(msg protocol.Message) {
	if msg.Body.Result != nil && msg.Body.Result.IsErr && msg.Body.Result.ErrKind == protocol.KindOutOfSync {
		if fs, ok := s.files[s.currentFile]; ok {
			fs.SentFull = false
		}
	}
	s.sendToIDE(msg)
}

// handleHTTPRequest implements the "HTTP request for a file" row: it emits
// a LoadFile to the IDE and records the request for pairing with the
// eventual Result.
func (s *Session) handleHTTPRequest(ctx context.Context, req *HTTPLoadRequest) {
	id := s.serverIDs.Next()
	s.pendingLoads[id] = req
	s.sendToIDE(protocol.Message{ID: id, Body: protocol.MessageBody{Kind: protocol.BodyLoadFile, LoadFile: &protocol.LoadFilePayload{
		Path: req.Path, IsCurrentEditable: req.IsCurrentEditable,
	}}})
}

// handleLoadFileReply implements the two "IDE -> Result(LoadFile(...))" rows.
func (s *Session) handleLoadFileReply(ctx context.Context, msg protocol.Message, req *HTTPLoadRequest) {
	delete(s.pendingLoads, msg.ID)
	res := msg.Body.Result
	if res == nil || res.IsErr {
		req.Reply <- HTTPLoadResult{Err: fmt.Errorf("load failed")}
		return
	}

	var text string
	var version float64
	if res.LoadFile == nil {
		// Fall back to the filesystem.
		if s.fs == nil {
			req.Reply <- HTTPLoadResult{Err: fmt.Errorf("no filesystem fallback configured")}
			return
		}
		data, err := s.fs.ReadFile(ctx, req.Path)
		if err != nil {
			req.Reply <- HTTPLoadResult{Err: protocol.NewError(protocol.KindIo, protocol.ReservedID, req.Path, err)}
			return
		}
		if chars.IsBinary(data) {
			req.Reply <- HTTPLoadResult{IsBinary: true}
			return
		}
		text = string(data)
		version = randomVersion()
	} else {
		text = res.LoadFile.Text
		version = res.LoadFile.Version
	}

	req.Reply <- HTTPLoadResult{Text: text, IsBinary: false}

	if !req.IsCurrentEditable {
		return
	}
	canon, perr := s.canonicalize(req.Path)
	if perr != nil {
		s.log.Warn("cannot canonicalize current editable path after load", "err", perr)
		return
	}
	eol := eolOf(text)
	snap := &FileSnapshot{SourceText: lfNormalize(text), EOL: eol, Version: version}
	s.files[canon] = snap

	lang, err := mdtransform.DetectLanguage(s.langs, canon, snap.SourceText)
	if err != nil {
		s.log.Warn("cannot detect language for loaded file", "path", canon, "err", err)
		return
	}
	clientDoc, err := mdtransform.SourceToClient(snap.SourceText, lang)
	if err != nil {
		s.log.Warn("cannot translate loaded file", "path", canon, "err", err)
		return
	}
	snap.ClientDoc = clientDoc
	snap.SentFull = true
	s.sendToClient(protocol.Message{ID: s.serverIDs.Next(), Body: protocol.MessageBody{Kind: protocol.BodyUpdate, Update: &protocol.UpdatePayload{
		FilePath: canon,
		Contents: toWireFullDocument(clientDoc, snap.Version),
	}}})
}
