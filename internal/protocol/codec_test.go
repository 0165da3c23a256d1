package protocol

import (
	"encoding/json"
	"testing"
)

func roundTrip(t *testing.T, msg Message) Message {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal(%s): %v", data, err)
	}
	return got
}

func TestMessageRoundTripOpened(t *testing.T) {
	msg := Message{
		ID: 0,
		Body: MessageBody{
			Kind:   BodyOpened,
			Opened: &OpenedPayload{IDEType: IDEType{Kind: "VSCode", SelfHosted: true}},
		},
	}
	got := roundTrip(t, msg)
	if got.Body.Kind != BodyOpened || got.Body.Opened == nil {
		t.Fatalf("got %+v", got)
	}
	if got.Body.Opened.IDEType.Kind != "VSCode" || !got.Body.Opened.IDEType.SelfHosted {
		t.Errorf("got %+v", got.Body.Opened)
	}
}

func TestMessageRoundTripClientHtml(t *testing.T) {
	msg := Message{ID: 3, Body: MessageBody{Kind: BodyClientHtml, ClientHtml: "<iframe src=\"/codechat/abc/\"></iframe>"}}
	got := roundTrip(t, msg)
	if got.Body.Kind != BodyClientHtml || got.Body.ClientHtml != msg.Body.ClientHtml {
		t.Errorf("got %+v, want %+v", got, msg)
	}
}

func TestMessageRoundTripResultOk(t *testing.T) {
	msg := Message{ID: 1, Body: MessageBody{Kind: BodyResult, Result: &ResultPayload{IsErr: false}}}
	got := roundTrip(t, msg)
	if got.Body.Result == nil || got.Body.Result.IsErr {
		t.Errorf("got %+v", got.Body.Result)
	}
}

func TestMessageRoundTripResultErr(t *testing.T) {
	msg := Message{ID: 4, Body: MessageBody{Kind: BodyResult, Result: &ResultPayload{
		IsErr: true, ErrKind: KindOutOfSync, ErrDetail: "version mismatch",
	}}}
	got := roundTrip(t, msg)
	if got.Body.Result == nil || !got.Body.Result.IsErr {
		t.Fatalf("got %+v", got.Body.Result)
	}
	if got.Body.Result.ErrKind != KindOutOfSync || got.Body.Result.ErrDetail != "version mismatch" {
		t.Errorf("got %+v", got.Body.Result)
	}
}

func TestMessageRoundTripUpdatePlain(t *testing.T) {
	msg := Message{ID: 6, Body: MessageBody{Kind: BodyUpdate, Update: &UpdatePayload{
		FilePath: "/a/b.py",
		Contents: &ClientDocumentWire{
			IsDiff: false,
			Doc:    "print('hi')\n",
			DocBlocks: []OverlayBlockWire{
				{From: 0, To: 12, Indent: "", Delimiter: "#", Contents: "<p>doc</p>"},
			},
			Version: 42,
		},
	}}}
	got := roundTrip(t, msg)
	if got.Body.Update == nil || got.Body.Update.Contents == nil {
		t.Fatalf("got %+v", got)
	}
	c := got.Body.Update.Contents
	if c.IsDiff || c.Doc != "print('hi')\n" || c.Version != 42 {
		t.Errorf("got %+v", c)
	}
	if len(c.DocBlocks) != 1 || c.DocBlocks[0].Contents != "<p>doc</p>" {
		t.Errorf("got blocks %+v", c.DocBlocks)
	}
}

func TestMessageRoundTripUpdateDiff(t *testing.T) {
	to := 5
	msg := Message{ID: 9, Body: MessageBody{Kind: BodyUpdate, Update: &UpdatePayload{
		FilePath: "/a/b.py",
		Contents: &ClientDocumentWire{
			IsDiff:     true,
			DocDiff:    []StringEditWire{{From: 0, To: &to, Insert: "hello"}},
			PreVersion: 1,
			NewVersion: 2,
		},
	}}}
	got := roundTrip(t, msg)
	c := got.Body.Update.Contents
	if !c.IsDiff || c.PreVersion != 1 || c.NewVersion != 2 {
		t.Fatalf("got %+v", c)
	}
	if len(c.DocDiff) != 1 || c.DocDiff[0].From != 0 || c.DocDiff[0].To == nil || *c.DocDiff[0].To != 5 {
		t.Errorf("got diff %+v", c.DocDiff)
	}
}

func TestMessageRoundTripCurrentFile(t *testing.T) {
	isText := true
	msg := Message{ID: 2, Body: MessageBody{Kind: BodyCurrentFile, CurrentFile: &CurrentFilePayload{
		PathOrURL: "/codechat/abc/file.py",
		IsText:    &isText,
	}}}
	got := roundTrip(t, msg)
	if got.Body.CurrentFile == nil || got.Body.CurrentFile.PathOrURL != msg.Body.CurrentFile.PathOrURL {
		t.Fatalf("got %+v", got)
	}
	if got.Body.CurrentFile.IsText == nil || !*got.Body.CurrentFile.IsText {
		t.Errorf("got %+v", got.Body.CurrentFile)
	}
}

func TestMessageRoundTripLoadFile(t *testing.T) {
	msg := Message{ID: 12, Body: MessageBody{Kind: BodyLoadFile, LoadFile: &LoadFilePayload{
		Path: "foo/bar.py", IsCurrentEditable: true,
	}}}
	got := roundTrip(t, msg)
	if got.Body.LoadFile == nil || *got.Body.LoadFile != *msg.Body.LoadFile {
		t.Errorf("got %+v, want %+v", got.Body.LoadFile, msg.Body.LoadFile)
	}
}

func TestMessageRoundTripOpenUrl(t *testing.T) {
	msg := Message{ID: 15, Body: MessageBody{Kind: BodyOpenUrl, OpenUrl: "https://example.com/docs"}}
	got := roundTrip(t, msg)
	if got.Body.OpenUrl != msg.Body.OpenUrl {
		t.Errorf("got %q, want %q", got.Body.OpenUrl, msg.Body.OpenUrl)
	}
}

func TestMessageRoundTripClosed(t *testing.T) {
	for _, kind := range []BodyKind{BodyClosed, BodyRequestClose} {
		msg := Message{ID: 18, Body: MessageBody{Kind: kind}}
		got := roundTrip(t, msg)
		if got.Body.Kind != kind {
			t.Errorf("got %v, want %v", got.Body.Kind, kind)
		}
	}
}
