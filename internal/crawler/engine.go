package crawler

import (
	"context"
	"net/netip"
	"time"

	"github.com/nao1215/dhtcrawler/internal/model"
)

// Engine is the DHT client a session drives. Each session owns one engine
// for its whole lifetime.
//
// The discovery callback must only be invoked from inside Tick, on the
// caller's goroutine. The session relies on this to mutate its node list
// without locking.
type Engine interface {
	// Bootstrap asks p about the engine's own identity.
	Bootstrap(p model.Peer) error

	// Query asks target for the nodes it knows close to about.
	Query(target model.Peer, about model.NodeID) error

	// Tick processes pending network events and may invoke the discovery
	// callback any number of times.
	Tick() error

	// IterationInterval is how long to sleep between two ticks.
	IterationInterval() time.Duration

	// OnDiscovered registers the discovery callback.
	OnDiscovered(fn func(model.Peer))

	// Close releases the engine's network resources.
	Close() error
}

// EngineFactory creates a fresh engine with a new identity.
type EngineFactory func() (Engine, error)

// Locator resolves an IP address to a coarse "country, region, city"
// string. It returns "" when the location is unknown. Implementations
// must be safe for concurrent use.
type Locator interface {
	Lookup(ip netip.Addr) string
}

// Recorder persists a summary of every finished session.
type Recorder interface {
	RecordSession(ctx context.Context, rec model.SessionRecord) error
}

// noLocator resolves nothing.
type noLocator struct{}

func (noLocator) Lookup(netip.Addr) string { return "" }
