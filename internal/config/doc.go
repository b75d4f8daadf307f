// Package config provides the configuration structure for the DHT crawler.
// It defines crawl policy (how many sessions, how fast they query, when they
// give up), the bootstrap node list, and where results and logs are written.
package config
