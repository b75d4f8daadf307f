// Package crawler runs crawl sessions against the DHT and decides when new
// ones start.
//
// # Architecture
//
// A Controller admits sessions. Each Session owns one DHT engine, and
// therefore one network identity, for its whole life:
//
//	supervisor loop -> Controller.Tick -> go Session.Run
//	                                         |
//	                    tick engine, send a query round, sleep
//	                                         |
//	                     stalled / limit reached -> write snapshot
//
// A session keeps a frontier: every unique node it has heard of, in
// discovery order, with a cursor splitting queried nodes from pending ones.
// Each round asks up to RequestsPerInterval pending nodes about themselves
// and about a few random known nodes.
//
// # Termination
//
// A session stops when, checked in this order:
//   - an interrupt has been raised (no snapshot)
//   - its frontier reached the node limit (snapshot, and the limit-reached
//     interrupt is raised for everyone else)
//   - every node has been queried and nothing new arrived within Timeout
//     (snapshot)
//
// # Concurrency
//
// The engine delivers discoveries from inside Tick on the session's own
// goroutine, so a frontier is never shared. Only State is shared between
// sessions and the controller, and it is built from atomics and a mutex.
//
// # Snapshots
//
// Snapshots are written to DataDir/YYYY-MM-DD/HHMMSS.lst, one
// "identity, ip, location" line per node. They are written to a temporary
// file and renamed into place.
package crawler
