package crawler

import "errors"

var (
	// ErrSessionCreate is returned by Controller.Tick when a session could
	// not be created. The controller retries on a later tick.
	ErrSessionCreate = errors.New("failed to create crawl session")

	// ErrNoEngineFactory is returned by NewController without a factory.
	ErrNoEngineFactory = errors.New("no dht engine factory")
)
