package session

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/dshills/editorsrv/internal/lexlang"
	"github.com/dshills/editorsrv/internal/obs"
	"github.com/dshills/editorsrv/internal/pathcodec"
	"github.com/dshills/editorsrv/internal/protocol"
	"github.com/dshills/editorsrv/internal/transport"
)

// Filesystem is the out-of-scope-transport collaborator used only for the
// fallback path when the IDE cannot answer a LoadFile request itself.
type Filesystem interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// BrowserOpener asks the host to open a URL in an external browser.
type BrowserOpener interface {
	OpenURL(ctx context.Context, url string) error
}

// HTTPLoadRequest is one item of the from_http queue: the HTTP boundary
// asking the session to fetch a file on its behalf. Reply is a one-shot
// channel consumed exactly once, either from the IDE's Result or from the
// filesystem fallback, never both.
type HTTPLoadRequest struct {
	Path              string
	IsCurrentEditable bool
	Reply             chan HTTPLoadResult
}

// HTTPLoadResult answers an HTTPLoadRequest.
type HTTPLoadResult struct {
	Text     string
	IsBinary bool
	Err      error
}

// Option configures a Session, mirroring keystorm's ClientOption pattern.
type Option func(*Session)

func WithLogger(l obs.Logger) Option { return func(s *Session) { s.log = l } }
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}
func WithFilesystem(fs Filesystem) Option { return func(s *Session) { s.fs = fs } }
func WithBrowserOpener(b BrowserOpener) Option { return func(s *Session) { s.browser = b } }
func WithURLPrefix(prefix string) Option { return func(s *Session) { s.urlPrefix = prefix } }
func WithClientHTML(render func(iframeURL string) string) Option {
	return func(s *Session) { s.renderClientHTML = render }
}

// Session is one Translation Task.
type Session struct {
	connectionID string
	urlPrefix    string

	fromIDE    <-chan protocol.Message
	toIDE      chan<- protocol.Message
	fromClient <-chan protocol.Message
	toClient   chan<- protocol.Message
	fromHTTP   <-chan *HTTPLoadRequest

	langs map[string]*lexlang.CompiledLanguage
	fs    Filesystem

	browser          BrowserOpener
	renderClientHTML func(iframeURL string) string

	log     obs.Logger
	timeout time.Duration

	serverIDs *protocol.IDAllocator
	pending   *transport.PendingMap

	state          State
	openedOnce     bool
	selfHosted     bool
	currentFile    string
	files          map[string]*FileSnapshot
	pendingLoads   map[float64]*HTTPLoadRequest

	awaitingSelfHostedAck bool
	selfHostedAckID       float64
}

// New constructs a Session wired to its queues. langs is the compiled
// language table used to resolve file extensions and directives.
func New(connectionID string, fromIDE <-chan protocol.Message, toIDE chan<- protocol.Message,
	fromClient <-chan protocol.Message, toClient chan<- protocol.Message,
	fromHTTP <-chan *HTTPLoadRequest, langs map[string]*lexlang.CompiledLanguage, opts ...Option) *Session {
	s := &Session{
		connectionID: connectionID,
		urlPrefix:    "/codechat",
		fromIDE:      fromIDE,
		toIDE:        toIDE,
		fromClient:   fromClient,
		toClient:     toClient,
		fromHTTP:     fromHTTP,
		langs:        langs,
		log:          obs.NopLogger(),
		timeout:      10 * time.Second,
		serverIDs:    protocol.NewIDAllocator(protocol.PeerServer),
		files:        make(map[string]*FileSnapshot),
		pendingLoads: make(map[float64]*HTTPLoadRequest),
		state:        Initializing,
	}
	for _, o := range opts {
		o(s)
	}
	s.pending = transport.NewPendingMap(s.log)
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Run drives the Translation Task's single cooperative select loop until
// the session closes or ctx is cancelled. Lexing, Markdown rendering, and
// diffing all happen inline on this goroutine; the only suspension points
// are the channel operations below.
func (s *Session) Run(ctx context.Context) error {
	defer s.pending.CancelAll()
	for s.state != Closed {
		select {
		case <-ctx.Done():
			s.drain()
			s.state = Closed
			return ctx.Err()

		case msg, ok := <-s.fromIDE:
			if !ok {
				s.state = Closed
				continue
			}
			s.handleFromIDE(ctx, msg)

		case msg, ok := <-s.fromClient:
			if !ok {
				s.state = Closed
				continue
			}
			s.handleFromClient(ctx, msg)

		case req, ok := <-s.fromHTTP:
			if !ok {
				continue
			}
			s.handleHTTPRequest(ctx, req)
		}

		if s.state == Closing && s.drained() {
			s.pending.CancelAll()
			s.state = Closed
		}
	}
	return nil
}

func (s *Session) drained() bool {
	return len(s.fromIDE) == 0 && len(s.fromClient) == 0 && len(s.fromHTTP) == 0
}

// drain logs and discards anything left in the queues, per §5's
// drop-drain-loop requirement on cancellation.
func (s *Session) drain() {
	for {
		select {
		case m, ok := <-s.fromIDE:
			if !ok {
				return
			}
			s.log.Warn("dropping queued message on close", "source", "ide", "id", m.ID)
		case m, ok := <-s.fromClient:
			if !ok {
				return
			}
			s.log.Warn("dropping queued message on close", "source", "client", "id", m.ID)
		case r, ok := <-s.fromHTTP:
			if !ok {
				return
			}
			r.Reply <- HTTPLoadResult{Err: context.Canceled}
		default:
			return
		}
	}
}

func (s *Session) sendToClient(msg protocol.Message) { s.toClient <- msg }
func (s *Session) sendToIDE(msg protocol.Message)    { s.toIDE <- msg }

func (s *Session) replyResult(toOffender func(protocol.Message), id float64, err *protocol.ProtocolError) {
	body := protocol.MessageBody{Kind: protocol.BodyResult, Result: &protocol.ResultPayload{}}
	if err != nil {
		body.Result.IsErr = true
		body.Result.ErrKind = err.Kind
		body.Result.ErrDetail = err.Detail
	}
	toOffender(protocol.Message{ID: id, Body: body})
}

// randomVersion returns a fresh whole-number version tag for a full update,
// per §4.5 "typically a fresh random whole number".
func randomVersion() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<31))
	if err != nil {
		return float64(time.Now().UnixNano() % (1 << 31))
	}
	return float64(n.Int64())
}

func (s *Session) canonicalize(p string) (string, *protocol.ProtocolError) {
	c, err := pathcodec.Canonicalize(p)
	if err != nil {
		return "", protocol.NewError(protocol.KindCanonicalizeError, protocol.ReservedID, p, err)
	}
	return c, nil
}
