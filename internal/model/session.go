package model

import "time"

// Outcome describes why a crawl session stopped.
type Outcome string

const (
	// OutcomeInterrupted means the process asked every session to stop.
	// Interrupted sessions do not write a snapshot.
	OutcomeInterrupted Outcome = "interrupted"
	// OutcomeStalled means every known node was queried and nothing new
	// turned up within the idle timeout.
	OutcomeStalled Outcome = "stalled"
	// OutcomeLimitReached means the session discovered the configured
	// maximum number of nodes.
	OutcomeLimitReached Outcome = "limit-reached"
)

// Dumps reports whether a session that stopped with this outcome
// writes its node list to disk.
func (o Outcome) Dumps() bool {
	return o == OutcomeStalled || o == OutcomeLimitReached
}

// String returns the outcome name.
func (o Outcome) String() string {
	return string(o)
}

// SessionRecord is the summary of one finished crawl session.
// It is written to the history database and rendered by the history report.
type SessionRecord struct {
	// ID is the database row ID. Zero until stored.
	ID int64 `json:"id,omitempty"`

	// RunID identifies the process run the session belonged to.
	RunID string `json:"run_id"`

	// Index is the session's sequence number within its run.
	Index uint32 `json:"index"`

	// StartedAt is when the session was admitted.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the session stopped crawling.
	FinishedAt time.Time `json:"finished_at"`

	// Nodes is the number of unique nodes discovered.
	Nodes int `json:"nodes"`

	// Outcome is why the session stopped.
	Outcome Outcome `json:"outcome"`

	// SnapshotPath is the node list file, empty if none was written.
	SnapshotPath string `json:"snapshot_path,omitempty"`

	// Error holds the snapshot failure, if any.
	Error string `json:"error,omitempty"`
}

// Duration returns how long the session ran.
func (r *SessionRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
