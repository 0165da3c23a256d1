// Package protocol defines the wire message envelope, its variant payloads,
// and the error taxonomy, grounded on internal/lsp/errors.go's sentinel and
// tagged-error pattern (RPCError/ServerError there, ProtocolError here).
package protocol

import "fmt"

// Kind is one of the canonical error kinds transmitted as Result(Err(kind)).
type Kind string

const (
	KindIllegalMessage       Kind = "IllegalMessage"
	KindUnknownLexer         Kind = "UnknownLexer"
	KindCannotTranslateSource Kind = "CannotTranslateSource"
	KindCannotTranslateClient Kind = "CannotTranslateClient"
	KindUnknownCommentOpener  Kind = "UnknownCommentOpener"
	KindTimeout               Kind = "Timeout"
	KindOutOfSync             Kind = "OutOfSync"
	KindUrlToPath             Kind = "UrlToPath"
	KindPathToString          Kind = "PathToString"
	KindCanonicalizeError     Kind = "CanonicalizeError"
	KindWebBrowserOpenFailed  Kind = "WebBrowserOpenFailed"
	KindIo                    Kind = "Io"
	KindFileWatch             Kind = "FileWatch"
	KindUnwatch               Kind = "Unwatch"
)

// ReservedID is used for errors that arise internally with no originating
// peer message id.
const ReservedID float64 = -1

// ProtocolError ties an error kind to the message id that caused it (or
// ReservedID) and optionally wraps an underlying cause.
type ProtocolError struct {
	Kind      Kind
	MessageID float64
	Detail    string
	Err       error
}

func (e *ProtocolError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("protocol: %s (id=%v): %s", e.Kind, e.MessageID, e.Detail)
	}
	return fmt.Sprintf("protocol: %s (id=%v)", e.Kind, e.MessageID)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NewError constructs a ProtocolError, capturing an optional wrapped cause.
func NewError(kind Kind, id float64, detail string, cause error) *ProtocolError {
	return &ProtocolError{Kind: kind, MessageID: id, Detail: detail, Err: cause}
}
