// Package wsserver pumps protocol.Message frames between a websocket
// connection and a Session's channel pair, grounded on the read-loop/dispatch
// shape of internal/lsp.Transport but carrying JSON frames over
// nhooyr.io/websocket instead of Content-Length-framed stdio.
package wsserver

import (
	"context"
	"encoding/json"
	"fmt"

	"nhooyr.io/websocket"

	"github.com/dshills/editorsrv/internal/obs"
	"github.com/dshills/editorsrv/internal/protocol"
)

// PeerConn pumps Messages between a websocket connection and a pair of
// channels a Session reads from and writes to.
type PeerConn struct {
	name string
	conn *websocket.Conn
	log  obs.Logger
}

// NewPeerConn wraps an already-accepted websocket connection.
func NewPeerConn(name string, conn *websocket.Conn, log obs.Logger) *PeerConn {
	if log == nil {
		log = obs.NopLogger()
	}
	return &PeerConn{name: name, conn: conn, log: log}
}

// Run reads frames from the socket onto in, and writes frames from out to
// the socket, until ctx is cancelled or the socket errs. It closes in on
// return so the owning Session observes EOF.
func (p *PeerConn) Run(ctx context.Context, in chan<- protocol.Message, out <-chan protocol.Message) error {
	readErr := make(chan error, 1)
	go p.readLoop(ctx, in, readErr)

	for {
		select {
		case <-ctx.Done():
			_ = p.conn.Close(websocket.StatusNormalClosure, "context cancelled")
			return ctx.Err()
		case err := <-readErr:
			return err
		case msg, ok := <-out:
			if !ok {
				_ = p.conn.Close(websocket.StatusNormalClosure, "done")
				return nil
			}
			if err := p.write(ctx, msg); err != nil {
				p.log.Warn("wsserver: write failed", "peer", p.name, "err", err)
				return err
			}
		}
	}
}

func (p *PeerConn) write(ctx context.Context, msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return p.conn.Write(ctx, websocket.MessageText, data)
}

func (p *PeerConn) readLoop(ctx context.Context, in chan<- protocol.Message, errc chan<- error) {
	defer close(in)
	for {
		_, data, err := p.conn.Read(ctx)
		if err != nil {
			errc <- err
			return
		}
		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.log.Warn("wsserver: dropping unparseable frame", "peer", p.name, "err", err)
			continue
		}
		select {
		case in <- msg:
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		}
	}
}
