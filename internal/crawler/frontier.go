package crawler

import "github.com/nao1215/dhtcrawler/internal/model"

// frontier is a session's node list: every unique node discovered so far,
// in discovery order.
//
// Nodes before sendPtr have been queried; nodes from sendPtr on are
// pending. Nodes are never removed, and 0 <= sendPtr <= len() always holds.
//
// A frontier belongs to one session goroutine and is not locked.
type frontier struct {
	peers     []model.Peer
	seen      map[model.NodeID]struct{}
	increment int
	sendPtr   int
}

// newFrontier returns an empty frontier with room for capacity nodes that
// grows by increment whenever it is full.
func newFrontier(capacity, increment int) *frontier {
	if capacity < 1 {
		capacity = 1
	}
	if increment < 1 {
		increment = capacity
	}
	return &frontier{
		peers:     make([]model.Peer, 0, capacity),
		seen:      make(map[model.NodeID]struct{}, capacity),
		increment: increment,
	}
}

// contains reports whether a node with this identity is already known.
func (f *frontier) contains(id model.NodeID) bool {
	_, ok := f.seen[id]
	return ok
}

// add appends p unless its identity is already known.
// It reports whether p was added.
func (f *frontier) add(p model.Peer) bool {
	if f.contains(p.ID) {
		return false
	}
	if len(f.peers) == cap(f.peers) {
		grown := make([]model.Peer, len(f.peers), cap(f.peers)+f.increment)
		copy(grown, f.peers)
		f.peers = grown
	}
	f.peers = append(f.peers, p)
	f.seen[p.ID] = struct{}{}
	return true
}

func (f *frontier) len() int {
	return len(f.peers)
}

func (f *frontier) at(i int) model.Peer {
	return f.peers[i]
}

// pending returns the number of nodes not yet queried.
func (f *frontier) pending() int {
	return len(f.peers) - f.sendPtr
}

// list returns the nodes in discovery order. The slice must not be modified.
func (f *frontier) list() []model.Peer {
	return f.peers
}
