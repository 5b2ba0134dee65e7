// Package database provides SQLite-based storage for hostcrawl's crawl history.
//
// This package implements the CrawlDB, which stores:
//   - Crawl runs (seed, depth, timing, counts)
//   - The downloaded pages of each run with their metadata
//   - The failed identifiers of each run with their failure kind
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
