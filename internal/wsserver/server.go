package wsserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/dshills/editorsrv/internal/lexlang"
	"github.com/dshills/editorsrv/internal/obs"
	"github.com/dshills/editorsrv/internal/pathcodec"
	"github.com/dshills/editorsrv/internal/protocol"
	"github.com/dshills/editorsrv/internal/session"
)

// Server accepts IDE and Editor Client websocket connections and wires each
// connecting pair into its own session.Session, the way Manager in
// internal/lsp routes requests to per-language Server instances from a
// single mutex-protected registry.
type Server struct {
	mu          sync.Mutex
	connections map[string]*connection

	langs             map[string]*lexlang.CompiledLanguage
	log               obs.Logger
	urlPrefix         string
	messageTimeout    time.Duration
	selfHostedDefault bool
	fs                session.Filesystem
	browser           session.BrowserOpener
	renderClientHTML  func(iframeURL string) string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l obs.Logger) Option { return func(s *Server) { s.log = l } }

// WithURLPrefix sets the path prefix every route is served under.
func WithURLPrefix(p string) Option { return func(s *Server) { s.urlPrefix = p } }

// WithMessageTimeout bounds how long a pending request waits for a reply.
func WithMessageTimeout(d time.Duration) Option { return func(s *Server) { s.messageTimeout = d } }

// WithFilesystem wires the filesystem used to satisfy HTTP loads the IDE
// does not answer directly.
func WithFilesystem(fs session.Filesystem) Option { return func(s *Server) { s.fs = fs } }

// WithBrowserOpener wires the collaborator used to open URLs in a local
// browser for non-self-hosted sessions.
func WithBrowserOpener(b session.BrowserOpener) Option { return func(s *Server) { s.browser = b } }

// WithClientHTML sets the HTML renderer used for self-hosted sessions.
func WithClientHTML(render func(iframeURL string) string) Option {
	return func(s *Server) { s.renderClientHTML = render }
}

// New constructs a Server over a compiled language table.
func New(langs map[string]*lexlang.CompiledLanguage, opts ...Option) *Server {
	s := &Server{
		connections:    make(map[string]*connection),
		langs:          langs,
		log:            obs.NopLogger(),
		urlPrefix:      "/codechat",
		messageTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// connection holds one IDE<->Server<->Client session plus the queues the
// websocket pumps and the HTTP handler feed it through.
type connection struct {
	id      string
	sess    *session.Session
	fromIDE chan protocol.Message
	toIDE   chan protocol.Message

	fromClient chan protocol.Message
	toClient   chan protocol.Message

	fromHTTP chan *session.HTTPLoadRequest

	cancel context.CancelFunc
	done   chan struct{}
}

// Routes registers the IDE socket, Client socket, and self-hosted page
// handlers onto mux under the configured URL prefix.
func (s *Server) Routes(mux *http.ServeMux) {
	prefix := strings.TrimSuffix(s.urlPrefix, "/")
	mux.HandleFunc(prefix+"/ws/ide/", s.handleIDESocket)
	mux.HandleFunc(prefix+"/ws/client/", s.handleClientSocket)
	mux.HandleFunc(prefix+"/", s.handleSelfHostedPage)
}

func (s *Server) handleIDESocket(w http.ResponseWriter, r *http.Request) {
	id := lastPathSegment(r.URL.Path)
	if id == "" {
		id = s.newConnectionID()
	}
	conn := s.getOrCreate(id)
	s.acceptPeer(w, r, "ide", conn.fromIDE, conn.toIDE)
}

func (s *Server) handleClientSocket(w http.ResponseWriter, r *http.Request) {
	id := lastPathSegment(r.URL.Path)
	conn, ok := s.lookup(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.acceptPeer(w, r, "client", conn.fromClient, conn.toClient)
}

func (s *Server) acceptPeer(w http.ResponseWriter, r *http.Request, name string, in chan protocol.Message, out chan protocol.Message) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("wsserver: accept failed", "peer", name, "err", err)
		return
	}
	peer := NewPeerConn(name, conn, s.log)
	if err := peer.Run(r.Context(), in, out); err != nil {
		s.log.Debug("wsserver: peer connection ended", "peer", name, "err", err)
	}
}

// handleSelfHostedPage serves GET {prefix}/{connectionID}/{path} by asking
// the session to load path through the IDE (or the configured filesystem
// fallback) and writing the loaded text back as the response body.
func (s *Server) handleSelfHostedPage(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSuffix(s.urlPrefix, "/")
	connID, path, err := pathcodec.FromURL(prefix, r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, ok := s.lookup(connID)
	if !ok {
		http.NotFound(w, r)
		return
	}

	reply := make(chan session.HTTPLoadResult, 1)
	req := &session.HTTPLoadRequest{Path: path, IsCurrentEditable: path == "", Reply: reply}

	select {
	case conn.fromHTTP <- req:
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	case <-time.After(s.messageTimeout):
		http.Error(w, "timed out waiting for IDE", http.StatusGatewayTimeout)
		return
	}

	select {
	case res := <-reply:
		if res.Err != nil {
			http.Error(w, res.Err.Error(), http.StatusBadGateway)
			return
		}
		if res.IsBinary {
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte(res.Text))
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(res.Text))
	case <-r.Context().Done():
	case <-time.After(s.messageTimeout):
		http.Error(w, "timed out waiting for IDE", http.StatusGatewayTimeout)
	}
}

func (s *Server) lookup(id string) (*connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[id]
	return c, ok
}

func (s *Server) getOrCreate(id string) *connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.connections[id]; ok {
		return c
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{
		id:         id,
		fromIDE:    make(chan protocol.Message, 16),
		toIDE:      make(chan protocol.Message, 16),
		fromClient: make(chan protocol.Message, 16),
		toClient:   make(chan protocol.Message, 16),
		fromHTTP:   make(chan *session.HTTPLoadRequest, 4),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	opts := []session.Option{
		session.WithLogger(s.log),
		session.WithTimeout(s.messageTimeout),
		session.WithURLPrefix(s.urlPrefix),
	}
	if s.fs != nil {
		opts = append(opts, session.WithFilesystem(s.fs))
	}
	if s.browser != nil {
		opts = append(opts, session.WithBrowserOpener(s.browser))
	}
	if s.renderClientHTML != nil {
		opts = append(opts, session.WithClientHTML(s.renderClientHTML))
	}

	c.sess = session.New(id, c.fromIDE, c.toIDE, c.fromClient, c.toClient, c.fromHTTP, s.langs, opts...)
	s.connections[id] = c

	go s.run(ctx, c)
	return c
}

func (s *Server) run(ctx context.Context, c *connection) {
	defer close(c.done)
	defer s.forget(c.id)
	if err := c.sess.Run(ctx); err != nil {
		s.log.Debug("wsserver: session ended", "connection", c.id, "err", err)
	}
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.connections[id]; ok {
		c.cancel()
		delete(s.connections, id)
	}
}

func (s *Server) newConnectionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("conn-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func lastPathSegment(p string) string {
	p = strings.TrimSuffix(p, "/")
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}
