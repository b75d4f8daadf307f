package model

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// NodeIDSize is the size of a DHT node identity in bytes.
// Mainline DHT (BEP 5) identities are 160-bit.
const NodeIDSize = 20

// ErrInvalidNodeID is returned when a textual node identity cannot be decoded.
var ErrInvalidNodeID = errors.New("invalid node id")

// NodeID is the opaque identity of a DHT node.
// It is a value type and safe to use as a map key.
type NodeID [NodeIDSize]byte

// ParseNodeID decodes the base58 textual form of a node identity.
// Bootstrap node keys in the configuration file use this form.
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID

	raw, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("%w: %q: %w", ErrInvalidNodeID, s, err)
	}
	if len(raw) != NodeIDSize {
		return id, fmt.Errorf("%w: %q decodes to %d bytes, want %d", ErrInvalidNodeID, s, len(raw), NodeIDSize)
	}

	copy(id[:], raw)
	return id, nil
}

// NodeIDFromBytes copies b into a NodeID. It fails if b has the wrong length.
func NodeIDFromBytes(b []byte) (NodeID, error) {
	var id NodeID
	if len(b) != NodeIDSize {
		return id, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidNodeID, len(b), NodeIDSize)
	}
	copy(id[:], b)
	return id, nil
}

// RandomNodeID returns a fresh random identity.
// Each DHT engine instance uses one for its whole lifetime.
func RandomNodeID() NodeID {
	var id NodeID
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(id[:])
	return id
}

// String returns the base58 form of the identity.
func (id NodeID) String() string {
	return base58.Encode(id[:])
}

// IsZero reports whether id is the all-zero identity.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}
