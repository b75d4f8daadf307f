package model

import "net/netip"

// Peer is a node discovered on the DHT: where it lives and who it claims to be.
// Peer is immutable once created and is passed around by value.
type Peer struct {
	// Addr is the UDP address the node answered from or was reported at.
	Addr netip.AddrPort

	// ID is the node's public identity.
	ID NodeID
}

// NewPeer creates a Peer. IPv4-mapped IPv6 addresses are unmapped so that
// the same node is never printed in two forms.
func NewPeer(addr netip.AddrPort, id NodeID) Peer {
	return Peer{
		Addr: netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port()),
		ID:   id,
	}
}

// IP returns the peer's IP address.
func (p Peer) IP() netip.Addr {
	return p.Addr.Addr()
}

// String returns "id@ip:port".
func (p Peer) String() string {
	return p.ID.String() + "@" + p.Addr.String()
}
