package protocol

// BodyKind tags which of the §6 wire variants a MessageBody carries.
type BodyKind string

const (
	BodyOpened       BodyKind = "Opened"
	BodyClientHtml   BodyKind = "ClientHtml"
	BodyCurrentFile  BodyKind = "CurrentFile"
	BodyLoadFile     BodyKind = "LoadFile"
	BodyUpdate       BodyKind = "Update"
	BodyOpenUrl      BodyKind = "OpenUrl"
	BodyRequestClose BodyKind = "RequestClose"
	BodyClosed       BodyKind = "Closed"
	BodyResult       BodyKind = "Result"
)

// IDEType names the IDE flavor and whether the Client runs self-hosted
// inside the IDE's own webview.
type IDEType struct {
	Kind       string `json:"kind"` // e.g. "VSCode"
	SelfHosted bool   `json:"self_hosted"`
}

type OpenedPayload struct {
	IDEType IDEType `json:"ide_type"`
}

type CurrentFilePayload struct {
	PathOrURL string `json:"path_or_url"`
	IsText    *bool  `json:"is_text,omitempty"`
}

type LoadFilePayload struct {
	Path              string `json:"path"`
	IsCurrentEditable bool   `json:"is_current_editable"`
}

// OverlayBlockWire is the five-tuple [from, to, indent, delimiter, contents]
// wire form of an OverlayBlock.
type OverlayBlockWire struct {
	From      int
	To        int
	Indent    string
	Delimiter string
	Contents  string
}

// StringEditWire is the wire form of one StringEdit; a nil To stands for an
// absent `to` (pure insertion), a non-nil To for an explicit value.
type StringEditWire struct {
	From   int
	To     *int
	Insert string
}

// OverlayDiffWire is the five-tuple wire form of one OverlayItem, with
// Contents as an array of StringEditWire.
type OverlayDiffWire struct {
	From      int
	To        int
	Indent    *string
	Delimiter string
	Contents  []StringEditWire
}

// OverlayEditWire is one splice entry: { from, to?, insert: [OverlayDiffWire] }.
type OverlayEditWire struct {
	From   int
	To     *int
	Insert []OverlayDiffWire
}

// ClientDocumentWire is tagged Plain or Diff on the wire.
type ClientDocumentWire struct {
	IsDiff bool

	// Plain
	Doc       string
	DocBlocks []OverlayBlockWire
	Version   float64

	// Diff
	DocDiff       []StringEditWire
	DocBlocksDiff []OverlayEditWire
	PreVersion    float64
	NewVersion    float64
}

type UpdatePayload struct {
	FilePath       string
	Contents       *ClientDocumentWire
	CursorPosition *CursorPosition
	ScrollPosition *float64
}

type CursorPosition struct {
	Line   int
	Column int
}

// ResultPayload is Ok(Void) | Ok(LoadFile(text,version)?) | Err(kind).
type ResultPayload struct {
	IsErr bool

	// Err
	ErrKind   Kind
	ErrDetail string

	// Ok(LoadFile(...)) — nil LoadFile means Ok(Void).
	LoadFile *LoadFileResult
}

type LoadFileResult struct {
	Text    string
	Version float64
}

// MessageBody is a tagged union over the §6 wire variants; exactly the
// field matching Kind is meaningful.
type MessageBody struct {
	Kind BodyKind

	Opened       *OpenedPayload
	ClientHtml   string
	CurrentFile  *CurrentFilePayload
	LoadFile     *LoadFilePayload
	Update       *UpdatePayload
	OpenUrl      string
	Result       *ResultPayload
}

// Message is the wire envelope { id, message }.
type Message struct {
	ID   float64
	Body MessageBody
}
