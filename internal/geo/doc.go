// Package geo resolves IP addresses to a coarse "country, region, city"
// location using an IP2Location BIN database.
//
// Location lookup is an optional enrichment: when no database is configured,
// or it cannot be opened, every lookup returns an empty string and crawling
// carries on unchanged.
//
// The Locator is shared by every crawl session. Database reads are
// serialized by a mutex, and results are memoised in a bounded LRU so that
// the same address appearing in many sessions is only resolved once.
package geo
