// Package dht is a minimal BitTorrent mainline DHT (BEP 5) client that the
// crawler drives one instance per crawl session.
//
// It only speaks the part of KRPC a crawler needs:
//   - outgoing find_node queries
//   - incoming find_node responses, whose compact "nodes" and "nodes6"
//     lists are reported through the discovery callback
//   - answers to ping queries, so other nodes keep us in their tables
//
// # Execution model
//
// A reader goroutine receives datagrams from the UDP socket and hands them
// to a bounded queue. Nothing is decoded there. The session goroutine calls
// Tick, which drains the queue and fires the discovery callback for every
// node found. Callbacks therefore run on the caller's goroutine, and the
// crawler's node list needs no lock. When the queue is full new datagrams
// are dropped; a crawler tolerates loss.
//
// An Engine is not safe for concurrent use apart from Close.
package dht
