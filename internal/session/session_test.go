package session

import (
	"context"
	"testing"
	"time"

	"github.com/dshills/editorsrv/internal/lexlang"
	"github.com/dshills/editorsrv/internal/protocol"
)

func testLangs(t *testing.T) map[string]*lexlang.CompiledLanguage {
	t.Helper()
	langs, err := lexlang.Compile(lexlang.BuiltinTable())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return langs
}

// harness wires up a Session with buffered channels and runs it on its own
// goroutine, matching how wsserver.Server drives a Session in production.
type harness struct {
	t          *testing.T
	sess       *Session
	fromIDE    chan protocol.Message
	toIDE      chan protocol.Message
	fromClient chan protocol.Message
	toClient   chan protocol.Message
	fromHTTP   chan *HTTPLoadRequest
	cancel     context.CancelFunc
	done       chan error
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		fromIDE:    make(chan protocol.Message, 8),
		toIDE:      make(chan protocol.Message, 8),
		fromClient: make(chan protocol.Message, 8),
		toClient:   make(chan protocol.Message, 8),
		fromHTTP:   make(chan *HTTPLoadRequest, 8),
		t:          t,
	}
	h.sess = New("conn1", h.fromIDE, h.toIDE, h.fromClient, h.toClient, h.fromHTTP, testLangs(t), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.sess.Run(ctx) }()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(time.Second):
		h.t.Fatal("session did not stop after cancel")
	}
}

func (h *harness) recvToIDE() protocol.Message {
	h.t.Helper()
	select {
	case m := <-h.toIDE:
		return m
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for a message to the IDE")
		return protocol.Message{}
	}
}

func (h *harness) recvToClient() protocol.Message {
	h.t.Helper()
	select {
	case m := <-h.toClient:
		return m
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for a message to the Client")
		return protocol.Message{}
	}
}

func (h *harness) waitState(want State) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.sess.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("session state = %v, want %v", h.sess.State(), want)
}

func okResult(id float64) protocol.Message {
	return protocol.Message{ID: id, Body: protocol.MessageBody{Kind: protocol.BodyResult, Result: &protocol.ResultPayload{IsErr: false}}}
}

func TestSelfHostedHandshakeReachesReady(t *testing.T) {
	h := newHarness(t)

	openedID := float64(2) // PeerOf(2) == PeerIDE
	h.fromIDE <- protocol.Message{ID: openedID, Body: protocol.MessageBody{
		Kind:   protocol.BodyOpened,
		Opened: &protocol.OpenedPayload{IDEType: protocol.IDEType{Kind: "VSCode", SelfHosted: true}},
	}}

	ack := h.recvToIDE()
	if ack.ID != openedID || ack.Body.Kind != protocol.BodyResult || ack.Body.Result == nil || ack.Body.Result.IsErr {
		t.Fatalf("expected an Ok reply to Opened, got %+v", ack)
	}

	clientHTML := h.recvToIDE()
	if clientHTML.Body.Kind != protocol.BodyClientHtml {
		t.Fatalf("expected a ClientHtml push, got %+v", clientHTML)
	}
	if h.sess.State() == Ready {
		t.Fatal("session reached Ready before the ClientHtml handshake was acked")
	}

	h.fromIDE <- okResult(clientHTML.ID)
	h.waitState(Ready)
}

func TestNonSelfHostedOpenedReachesReadyImmediately(t *testing.T) {
	h := newHarness(t)

	openedID := float64(2)
	h.fromIDE <- protocol.Message{ID: openedID, Body: protocol.MessageBody{
		Kind:   protocol.BodyOpened,
		Opened: &protocol.OpenedPayload{IDEType: protocol.IDEType{Kind: "VSCode", SelfHosted: false}},
	}}

	ack := h.recvToIDE()
	if ack.Body.Kind != protocol.BodyResult || ack.Body.Result.IsErr {
		t.Fatalf("expected an Ok reply to Opened, got %+v", ack)
	}
	h.waitState(Ready)
}

func openNonSelfHosted(t *testing.T, h *harness) {
	t.Helper()
	h.fromIDE <- protocol.Message{ID: 2, Body: protocol.MessageBody{
		Kind:   protocol.BodyOpened,
		Opened: &protocol.OpenedPayload{IDEType: protocol.IDEType{Kind: "VSCode", SelfHosted: false}},
	}}
	h.recvToIDE() // Ok reply to Opened
	h.waitState(Ready)
}

func TestIDEUpdatePlainFlowsToClientAsFullDocument(t *testing.T) {
	h := newHarness(t)
	openNonSelfHosted(t, h)

	src := "# hello\nprint(1)\n"
	h.fromIDE <- protocol.Message{ID: 5, Body: protocol.MessageBody{Kind: protocol.BodyUpdate, Update: &protocol.UpdatePayload{
		FilePath: "/tmp/foo.py",
		Contents: &protocol.ClientDocumentWire{IsDiff: false, Doc: src},
	}}}

	out := h.recvToClient()
	if out.ID != 5 || out.Body.Kind != protocol.BodyUpdate || out.Body.Update == nil {
		t.Fatalf("got %+v", out)
	}
	if out.Body.Update.FilePath != "/tmp/foo.py" {
		t.Errorf("FilePath = %q", out.Body.Update.FilePath)
	}
	c := out.Body.Update.Contents
	if c == nil || c.IsDiff {
		t.Fatalf("expected a Plain ClientDocumentWire, got %+v", c)
	}
	if len(c.DocBlocks) != 1 {
		t.Errorf("got %d doc blocks, want 1: %+v", len(c.DocBlocks), c.DocBlocks)
	}
}

func TestClientUpdateDiffOutOfSyncIsRejected(t *testing.T) {
	h := newHarness(t)
	openNonSelfHosted(t, h)

	// Establish a file snapshot via the IDE first.
	h.fromIDE <- protocol.Message{ID: 5, Body: protocol.MessageBody{Kind: protocol.BodyUpdate, Update: &protocol.UpdatePayload{
		FilePath: "/tmp/foo.py",
		Contents: &protocol.ClientDocumentWire{IsDiff: false, Doc: "# hello\nprint(1)\n"},
	}}}
	h.recvToClient()

	// The Client replies with a diff whose PreVersion cannot possibly match
	// the server-chosen version just assigned above.
	to := 0
	clientID := float64(1) // PeerOf(1) == PeerClient
	h.fromClient <- protocol.Message{ID: clientID, Body: protocol.MessageBody{Kind: protocol.BodyUpdate, Update: &protocol.UpdatePayload{
		FilePath: "/tmp/foo.py",
		Contents: &protocol.ClientDocumentWire{
			IsDiff:     true,
			DocDiff:    []protocol.StringEditWire{{From: 0, To: &to, Insert: "x"}},
			PreVersion: -999999,
			NewVersion: -999998,
		},
	}}}

	reply := h.recvToClient()
	if reply.Body.Kind != protocol.BodyResult || reply.Body.Result == nil || !reply.Body.Result.IsErr {
		t.Fatalf("expected an error Result, got %+v", reply)
	}
	if reply.Body.Result.ErrKind != protocol.KindOutOfSync {
		t.Errorf("ErrKind = %v, want %v", reply.Body.Result.ErrKind, protocol.KindOutOfSync)
	}

	// Rejecting the stale diff must clear sent_full, so the next
	// Server-to-Client update for this file is a full document, not a diff.
	h.fromIDE <- protocol.Message{ID: 6, Body: protocol.MessageBody{Kind: protocol.BodyUpdate, Update: &protocol.UpdatePayload{
		FilePath: "/tmp/foo.py",
		Contents: &protocol.ClientDocumentWire{IsDiff: false, Doc: "# hello\nprint(2)\n"},
	}}}
	next := h.recvToClient()
	if next.Body.Kind != protocol.BodyUpdate || next.Body.Update == nil || next.Body.Update.Contents == nil {
		t.Fatalf("got %+v", next)
	}
	if next.Body.Update.Contents.IsDiff {
		t.Error("expected a full document after the OutOfSync rejection cleared sent_full, got a diff")
	}
}

func TestIDESecondOpenedIsIllegal(t *testing.T) {
	h := newHarness(t)
	openNonSelfHosted(t, h)

	h.fromIDE <- protocol.Message{ID: 8, Body: protocol.MessageBody{
		Kind:   protocol.BodyOpened,
		Opened: &protocol.OpenedPayload{IDEType: protocol.IDEType{Kind: "VSCode"}},
	}}
	reply := h.recvToIDE()
	if reply.Body.Kind != protocol.BodyResult || reply.Body.Result == nil || !reply.Body.Result.IsErr {
		t.Fatalf("expected an error Result rejecting the second Opened, got %+v", reply)
	}
	if reply.Body.Result.ErrKind != protocol.KindIllegalMessage {
		t.Errorf("ErrKind = %v, want %v", reply.Body.Result.ErrKind, protocol.KindIllegalMessage)
	}
}

func TestClientLoadFileIsIllegal(t *testing.T) {
	h := newHarness(t)
	openNonSelfHosted(t, h)

	h.fromClient <- protocol.Message{ID: 1, Body: protocol.MessageBody{
		Kind:     protocol.BodyLoadFile,
		LoadFile: &protocol.LoadFilePayload{Path: "foo.py"},
	}}
	reply := h.recvToClient()
	if reply.Body.Kind != protocol.BodyResult || reply.Body.Result == nil || !reply.Body.Result.IsErr {
		t.Fatalf("expected an error Result rejecting LoadFile from the Client, got %+v", reply)
	}
	if reply.Body.Result.ErrKind != protocol.KindIllegalMessage {
		t.Errorf("ErrKind = %v, want %v", reply.Body.Result.ErrKind, protocol.KindIllegalMessage)
	}
}

func TestHTTPLoadRequestPairsWithLoadFileReply(t *testing.T) {
	h := newHarness(t)
	openNonSelfHosted(t, h)

	reply := make(chan HTTPLoadResult, 1)
	h.fromHTTP <- &HTTPLoadRequest{Path: "/tmp/foo.py", IsCurrentEditable: false, Reply: reply}

	loadMsg := h.recvToIDE()
	if loadMsg.Body.Kind != protocol.BodyLoadFile || loadMsg.Body.LoadFile == nil {
		t.Fatalf("expected a LoadFile push to the IDE, got %+v", loadMsg)
	}
	if loadMsg.Body.LoadFile.Path != "/tmp/foo.py" {
		t.Errorf("Path = %q", loadMsg.Body.LoadFile.Path)
	}

	h.fromIDE <- protocol.Message{ID: loadMsg.ID, Body: protocol.MessageBody{Kind: protocol.BodyResult, Result: &protocol.ResultPayload{
		IsErr:    false,
		LoadFile: &protocol.LoadFileResult{Text: "print(1)\n", Version: 1},
	}}}

	select {
	case res := <-reply:
		if res.Err != nil || res.IsBinary || res.Text != "print(1)\n" {
			t.Errorf("got %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the HTTP reply")
	}
}

func TestHTTPLoadRequestCurrentEditablePushesClientUpdate(t *testing.T) {
	h := newHarness(t)
	openNonSelfHosted(t, h)

	reply := make(chan HTTPLoadResult, 1)
	h.fromHTTP <- &HTTPLoadRequest{Path: "/tmp/bar.py", IsCurrentEditable: true, Reply: reply}

	loadMsg := h.recvToIDE()
	h.fromIDE <- protocol.Message{ID: loadMsg.ID, Body: protocol.MessageBody{Kind: protocol.BodyResult, Result: &protocol.ResultPayload{
		IsErr:    false,
		LoadFile: &protocol.LoadFileResult{Text: "# doc\nprint(2)\n", Version: 7},
	}}}

	<-reply

	update := h.recvToClient()
	if update.Body.Kind != protocol.BodyUpdate || update.Body.Update == nil || update.Body.Update.Contents == nil {
		t.Fatalf("expected a full Update pushed to the Client, got %+v", update)
	}
	if update.Body.Update.FilePath != "/tmp/bar.py" {
		t.Errorf("FilePath = %q", update.Body.Update.FilePath)
	}
}
