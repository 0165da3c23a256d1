// Package transport tracks outstanding requests awaiting a Result reply,
// grounded directly on internal/lsp/transport.go's Transport.Call: a map of
// pending replies keyed by id, a buffered channel per pending call so a
// late or duplicate reply never blocks the resolver, and a context/timer
// race to implement the per-message timeout.
package transport

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/dshills/editorsrv/internal/obs"
	"github.com/dshills/editorsrv/internal/protocol"
)

// PendingMap is a per-session table of in-flight requests, keyed by the bit
// pattern of the message id (float64 ids are not directly comparable as map
// keys the way the spec wants "keyed by the bit pattern of its id").
type PendingMap struct {
	mu      sync.Mutex
	pending map[uint64]chan protocol.Message
	log     obs.Logger
}

// NewPendingMap creates an empty table. A nil logger is replaced with a
// no-op logger.
func NewPendingMap(log obs.Logger) *PendingMap {
	if log == nil {
		log = obs.NopLogger()
	}
	return &PendingMap{pending: make(map[uint64]chan protocol.Message), log: log}
}

func key(id float64) uint64 { return math.Float64bits(id) }

// Register allocates a reply slot for id. The returned channel receives
// exactly one message, the first Resolve call for this id.
func (p *PendingMap) Register(id float64) <-chan protocol.Message {
	ch := make(chan protocol.Message, 1)
	p.mu.Lock()
	p.pending[key(id)] = ch
	p.mu.Unlock()
	return ch
}

// Resolve delivers msg to the waiter registered for id, if any. A second
// Resolve for the same id (or one with no registered waiter) is a dropped
// duplicate per §5's ordering guarantee and is logged, not delivered.
func (p *PendingMap) Resolve(id float64, msg protocol.Message) {
	p.mu.Lock()
	ch, ok := p.pending[key(id)]
	if ok {
		delete(p.pending, key(id))
	}
	p.mu.Unlock()
	if !ok {
		p.log.Warn("dropped duplicate or unexpected reply", "id", id)
		return
	}
	ch <- msg
}

// Cancel removes a pending waiter without delivering anything, used when a
// timeout or context cancellation already produced a local result.
func (p *PendingMap) Cancel(id float64) {
	p.mu.Lock()
	delete(p.pending, key(id))
	p.mu.Unlock()
}

// CancelAll drops every pending waiter, logging each as an abandoned call.
// Used when a session transitions Closing -> Closed.
func (p *PendingMap) CancelAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.pending {
		p.log.Warn("cancelling pending reply on session close", "id_bits", k)
		delete(p.pending, k)
	}
}

// Await blocks until id's reply arrives, ctx is cancelled, or timeout
// elapses, whichever comes first; elapsing the timeout cancels the waiter
// and returns a Timeout ProtocolError, matching "a per-message timeout
// fires an Err(Timeout) result locally" and "replies cancel the
// corresponding timer atomically" (the select below is that atomic race).
func Await(ctx context.Context, p *PendingMap, id float64, timeout time.Duration) (protocol.Message, error) {
	ch := p.Register(id)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-ch:
		return msg, nil
	case <-timer.C:
		p.Cancel(id)
		return protocol.Message{}, protocol.NewError(protocol.KindTimeout, id, "", nil)
	case <-ctx.Done():
		p.Cancel(id)
		return protocol.Message{}, ctx.Err()
	}
}
