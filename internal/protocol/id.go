package protocol

import "sync/atomic"

// Peer identifies which of the three partitions a message id belongs to.
type Peer int

const (
	PeerServer Peer = iota
	PeerClient
	PeerIDE
)

// IDAllocator issues monotonically increasing ids within one peer's
// partition of the id space: the Server issues multiples of 3 starting at
// 0, the Client issues 3k+1, the IDE issues 3k+2. Grounded on
// internal/lsp/transport.go's atomic.Int64 nextID counter, generalized to
// three independent partitions instead of one shared counter.
type IDAllocator struct {
	peer Peer
	next atomic.Uint64
}

// NewIDAllocator creates an allocator for one partition.
func NewIDAllocator(peer Peer) *IDAllocator {
	return &IDAllocator{peer: peer}
}

// Next returns the next id in this allocator's partition.
func (a *IDAllocator) Next() float64 {
	k := a.next.Add(1) - 1
	switch a.peer {
	case PeerServer:
		return float64(3 * k)
	case PeerClient:
		return float64(3*k + 1)
	default:
		return float64(3*k + 2)
	}
}

// PeerOf reports which partition an id belongs to.
func PeerOf(id float64) Peer {
	switch int64(id) % 3 {
	case 0:
		return PeerServer
	case 1:
		return PeerClient
	default:
		return PeerIDE
	}
}
