// Package model defines the core data structures shared by the crawler,
// the DHT engine, the history database, and the report writers.
//
// This package contains the following main types:
//   - NodeID: The fixed-size identity of a DHT node
//   - Peer: An immutable (address, identity) pair discovered on the network
//   - SessionRecord: The summary of one finished crawl session
//   - Outcome: Why a crawl session stopped
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The crawler, dht, database and report packages all use these
// types, so centralizing them prevents import cycles.
package model
