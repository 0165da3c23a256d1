package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MarshalJSON encodes a Message as {"id": <f64>, "message": <variant>}.
// The compact five-tuple array forms for OverlayBlock/OverlayDiff are built
// with sjson rather than struct tags, since encoding/json has no native way
// to emit a positional tuple from a named struct without either a custom
// MarshalJSON per tuple type or manual array assembly; sjson lets the tuple
// be assembled field-by-field directly into the raw JSON, matching the
// wire's "five-tuple for compactness" requirement in §6.
func (m Message) MarshalJSON() ([]byte, error) {
	doc := `{}`
	var err error
	doc, err = sjson.Set(doc, "id", m.ID)
	if err != nil {
		return nil, err
	}
	variant, err := marshalBody(m.Body)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.SetRaw(doc, "message", variant)
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

func marshalBody(b MessageBody) (string, error) {
	switch b.Kind {
	case BodyOpened:
		return marshalTagged(string(b.Kind), b.Opened)
	case BodyClientHtml:
		return marshalTagged(string(b.Kind), b.ClientHtml)
	case BodyCurrentFile:
		return marshalTagged(string(b.Kind), b.CurrentFile)
	case BodyLoadFile:
		return marshalTagged(string(b.Kind), b.LoadFile)
	case BodyUpdate:
		return marshalUpdate(b.Update)
	case BodyOpenUrl:
		return marshalTagged(string(b.Kind), b.OpenUrl)
	case BodyRequestClose, BodyClosed:
		return fmt.Sprintf(`%q`, string(b.Kind)), nil
	case BodyResult:
		return marshalResult(b.Result)
	default:
		return "", fmt.Errorf("protocol: unknown body kind %q", b.Kind)
	}
}

func marshalTagged(tag string, payload any) (string, error) {
	inner, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	doc := "{}"
	doc, err = sjson.SetRaw(doc, tag, string(inner))
	if err != nil {
		return "", err
	}
	return doc, nil
}

func overlayBlockTuple(o OverlayBlockWire) string {
	doc := `[]`
	doc, _ = sjson.Set(doc, "0", o.From)
	doc, _ = sjson.Set(doc, "1", o.To)
	doc, _ = sjson.Set(doc, "2", o.Indent)
	doc, _ = sjson.Set(doc, "3", o.Delimiter)
	doc, _ = sjson.Set(doc, "4", o.Contents)
	return doc
}

func parseOverlayBlockTuple(v gjson.Result) OverlayBlockWire {
	arr := v.Array()
	get := func(i int) gjson.Result {
		if i < len(arr) {
			return arr[i]
		}
		return gjson.Result{}
	}
	return OverlayBlockWire{
		From:      int(get(0).Int()),
		To:        int(get(1).Int()),
		Indent:    get(2).String(),
		Delimiter: get(3).String(),
		Contents:  get(4).String(),
	}
}

func stringEditJSON(e StringEditWire) string {
	doc := "{}"
	doc, _ = sjson.Set(doc, "from", e.From)
	if e.To != nil {
		doc, _ = sjson.Set(doc, "to", *e.To)
	}
	doc, _ = sjson.Set(doc, "insert", e.Insert)
	return doc
}

func parseStringEdit(v gjson.Result) StringEditWire {
	e := StringEditWire{From: int(v.Get("from").Int()), Insert: v.Get("insert").String()}
	if to := v.Get("to"); to.Exists() {
		t := int(to.Int())
		e.To = &t
	}
	return e
}

func overlayDiffTuple(d OverlayDiffWire) string {
	doc := `[]`
	doc, _ = sjson.Set(doc, "0", d.From)
	doc, _ = sjson.Set(doc, "1", d.To)
	if d.Indent != nil {
		doc, _ = sjson.Set(doc, "2", *d.Indent)
	} else {
		doc, _ = sjson.SetRaw(doc, "2", "null")
	}
	doc, _ = sjson.Set(doc, "3", d.Delimiter)
	contentsArr := "[]"
	for i, c := range d.Contents {
		contentsArr, _ = sjson.SetRaw(contentsArr, fmt.Sprintf("%d", i), stringEditJSON(c))
	}
	doc, _ = sjson.SetRaw(doc, "4", contentsArr)
	return doc
}

func parseOverlayDiffTuple(v gjson.Result) OverlayDiffWire {
	arr := v.Array()
	get := func(i int) gjson.Result {
		if i < len(arr) {
			return arr[i]
		}
		return gjson.Result{}
	}
	d := OverlayDiffWire{
		From:      int(get(0).Int()),
		To:        int(get(1).Int()),
		Delimiter: get(3).String(),
	}
	if indent := get(2); indent.Exists() && indent.Type != gjson.Null {
		s := indent.String()
		d.Indent = &s
	}
	for _, c := range get(4).Array() {
		d.Contents = append(d.Contents, parseStringEdit(c))
	}
	return d
}

func marshalUpdate(u *UpdatePayload) (string, error) {
	doc := "{}"
	var err error
	doc, err = sjson.Set(doc, "Update.file_path", u.FilePath)
	if err != nil {
		return "", err
	}
	if u.Contents != nil {
		cdoc, err := marshalClientDocument(*u.Contents)
		if err != nil {
			return "", err
		}
		doc, err = sjson.SetRaw(doc, "Update.contents", cdoc)
		if err != nil {
			return "", err
		}
	}
	if u.CursorPosition != nil {
		doc, _ = sjson.Set(doc, "Update.cursor_position.line", u.CursorPosition.Line)
		doc, _ = sjson.Set(doc, "Update.cursor_position.column", u.CursorPosition.Column)
	}
	if u.ScrollPosition != nil {
		doc, _ = sjson.Set(doc, "Update.scroll_position", *u.ScrollPosition)
	}
	return doc, nil
}

func marshalClientDocument(c ClientDocumentWire) (string, error) {
	doc := "{}"
	var err error
	if !c.IsDiff {
		doc, err = sjson.SetRaw(doc, "tag", `"Plain"`)
		if err != nil {
			return "", err
		}
		doc, _ = sjson.Set(doc, "doc", c.Doc)
		blocksArr := "[]"
		for i, b := range c.DocBlocks {
			blocksArr, _ = sjson.SetRaw(blocksArr, fmt.Sprintf("%d", i), overlayBlockTuple(b))
		}
		doc, _ = sjson.SetRaw(doc, "doc_blocks", blocksArr)
		doc, _ = sjson.Set(doc, "version", c.Version)
		return doc, nil
	}
	doc, _ = sjson.SetRaw(doc, "tag", `"Diff"`)
	diffArr := "[]"
	for i, e := range c.DocDiff {
		diffArr, _ = sjson.SetRaw(diffArr, fmt.Sprintf("%d", i), stringEditJSON(e))
	}
	doc, _ = sjson.SetRaw(doc, "doc", diffArr)
	blocksDiffArr := "[]"
	for i, e := range c.DocBlocksDiff {
		blocksDiffArr, _ = sjson.SetRaw(blocksDiffArr, fmt.Sprintf("%d", i), overlayEditJSON(e))
	}
	doc, _ = sjson.SetRaw(doc, "doc_blocks", blocksDiffArr)
	doc, _ = sjson.Set(doc, "version", c.PreVersion)
	doc, _ = sjson.Set(doc, "new_version", c.NewVersion)
	return doc, nil
}

func overlayEditJSON(e OverlayEditWire) string {
	doc := "{}"
	doc, _ = sjson.Set(doc, "from", e.From)
	if e.To != nil {
		doc, _ = sjson.Set(doc, "to", *e.To)
	}
	insertArr := "[]"
	for i, d := range e.Insert {
		insertArr, _ = sjson.SetRaw(insertArr, fmt.Sprintf("%d", i), overlayDiffTuple(d))
	}
	doc, _ = sjson.SetRaw(doc, "insert", insertArr)
	return doc
}

func marshalResult(r *ResultPayload) (string, error) {
	doc := "{}"
	if r.IsErr {
		doc, _ = sjson.Set(doc, "Err.kind", string(r.ErrKind))
		if r.ErrDetail != "" {
			doc, _ = sjson.Set(doc, "Err.detail", r.ErrDetail)
		}
		return doc, nil
	}
	if r.LoadFile == nil {
		return `"Ok"`, nil
	}
	doc, _ = sjson.Set(doc, "Ok.text", r.LoadFile.Text)
	doc, _ = sjson.Set(doc, "Ok.version", r.LoadFile.Version)
	return doc, nil
}

// UnmarshalJSON decodes a wire Message, sniffing which variant "message"
// holds with gjson before committing to a concrete payload type.
func (m *Message) UnmarshalJSON(data []byte) error {
	root := gjson.ParseBytes(data)
	m.ID = root.Get("id").Float()
	msg := root.Get("message")
	body, err := unmarshalBody(msg)
	if err != nil {
		return err
	}
	m.Body = body
	return nil
}

func unmarshalBody(v gjson.Result) (MessageBody, error) {
	if v.Type == gjson.String {
		switch v.String() {
		case string(BodyRequestClose):
			return MessageBody{Kind: BodyRequestClose}, nil
		case string(BodyClosed):
			return MessageBody{Kind: BodyClosed}, nil
		case "Ok":
			// Ok(Void) is marshaled as the bare string "Ok".
			return MessageBody{Kind: BodyResult, Result: &ResultPayload{}}, nil
		}
		return MessageBody{}, fmt.Errorf("protocol: unrecognized bare variant %q", v.String())
	}
	if o := v.Get("Opened"); o.Exists() {
		var p OpenedPayload
		if err := json.Unmarshal([]byte(o.Raw), &p); err != nil {
			return MessageBody{}, err
		}
		return MessageBody{Kind: BodyOpened, Opened: &p}, nil
	}
	if o := v.Get("ClientHtml"); o.Exists() {
		return MessageBody{Kind: BodyClientHtml, ClientHtml: o.String()}, nil
	}
	if o := v.Get("CurrentFile"); o.Exists() {
		var p CurrentFilePayload
		if err := json.Unmarshal([]byte(o.Raw), &p); err != nil {
			return MessageBody{}, err
		}
		return MessageBody{Kind: BodyCurrentFile, CurrentFile: &p}, nil
	}
	if o := v.Get("LoadFile"); o.Exists() {
		var p LoadFilePayload
		if err := json.Unmarshal([]byte(o.Raw), &p); err != nil {
			return MessageBody{}, err
		}
		return MessageBody{Kind: BodyLoadFile, LoadFile: &p}, nil
	}
	if o := v.Get("Update"); o.Exists() {
		p, err := unmarshalUpdate(o)
		if err != nil {
			return MessageBody{}, err
		}
		return MessageBody{Kind: BodyUpdate, Update: p}, nil
	}
	if o := v.Get("OpenUrl"); o.Exists() {
		return MessageBody{Kind: BodyOpenUrl, OpenUrl: o.String()}, nil
	}
	if o := v.Get("Err"); o.Exists() {
		return MessageBody{Kind: BodyResult, Result: &ResultPayload{
			IsErr: true, ErrKind: Kind(o.Get("kind").String()), ErrDetail: o.Get("detail").String(),
		}}, nil
	}
	if o := v.Get("Ok"); o.Exists() {
		if o.Type == gjson.String {
			return MessageBody{Kind: BodyResult, Result: &ResultPayload{}}, nil
		}
		return MessageBody{Kind: BodyResult, Result: &ResultPayload{
			LoadFile: &LoadFileResult{Text: o.Get("text").String(), Version: o.Get("version").Float()},
		}}, nil
	}
	return MessageBody{}, fmt.Errorf("protocol: unrecognized message variant")
}

func unmarshalUpdate(v gjson.Result) (*UpdatePayload, error) {
	p := &UpdatePayload{FilePath: v.Get("file_path").String()}
	if c := v.Get("contents"); c.Exists() {
		cd, err := unmarshalClientDocument(c)
		if err != nil {
			return nil, err
		}
		p.Contents = cd
	}
	if cp := v.Get("cursor_position"); cp.Exists() {
		p.CursorPosition = &CursorPosition{Line: int(cp.Get("line").Int()), Column: int(cp.Get("column").Int())}
	}
	if sp := v.Get("scroll_position"); sp.Exists() {
		f := sp.Float()
		p.ScrollPosition = &f
	}
	return p, nil
}

func unmarshalClientDocument(v gjson.Result) (*ClientDocumentWire, error) {
	tag := v.Get("tag").String()
	if tag == "Diff" {
		c := &ClientDocumentWire{IsDiff: true, PreVersion: v.Get("version").Float(), NewVersion: v.Get("new_version").Float()}
		for _, e := range v.Get("doc").Array() {
			c.DocDiff = append(c.DocDiff, parseStringEdit(e))
		}
		for _, e := range v.Get("doc_blocks").Array() {
			c.DocBlocksDiff = append(c.DocBlocksDiff, unmarshalOverlayEdit(e))
		}
		return c, nil
	}
	c := &ClientDocumentWire{Doc: v.Get("doc").String(), Version: v.Get("version").Float()}
	for _, b := range v.Get("doc_blocks").Array() {
		c.DocBlocks = append(c.DocBlocks, parseOverlayBlockTuple(b))
	}
	return c, nil
}

func unmarshalOverlayEdit(v gjson.Result) OverlayEditWire {
	e := OverlayEditWire{From: int(v.Get("from").Int())}
	if to := v.Get("to"); to.Exists() {
		t := int(to.Int())
		e.To = &t
	}
	for _, d := range v.Get("insert").Array() {
		e.Insert = append(e.Insert, parseOverlayDiffTuple(d))
	}
	return e
}
