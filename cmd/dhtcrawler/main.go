// Package main provides the entry point for the dhtcrawler CLI.
//
// dhtcrawler explores the BitTorrent mainline DHT by running short-lived
// crawl sessions, each with a fresh node identity, and writes the nodes
// every session discovered to dated snapshot files.
//
// Usage:
//
//	dhtcrawler --config dhtcrawler.yaml
//	dhtcrawler --config dhtcrawler.yaml -l 10000 --verbose 7
//	dhtcrawler init
//	dhtcrawler history
//
// See --help for all available options.
package main

// main is the entry point for dhtcrawler.
func main() {
	Execute()
}
