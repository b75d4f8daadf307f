// Package database stores the history of crawl sessions in SQLite.
//
// Every finished session leaves one row in the sessions table: when it ran,
// how many nodes it found, why it stopped, and where its snapshot went.
// The node lists themselves stay in the snapshot files; the database only
// indexes them.
//
// The driver is modernc.org/sqlite, which needs no cgo. The database is
// opened in WAL mode so the history command can read while a crawler writes.
package database
