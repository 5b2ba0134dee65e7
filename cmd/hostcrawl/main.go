// Package main provides the entry point for the hostcrawl CLI.
//
// hostcrawl crawls web sites and Tor onion services to a fixed link depth
// with bounded, per-host fair concurrency, and keeps a history of every
// crawl in a local SQLite database.
//
// Usage:
//
//	hostcrawl crawl <seed>...
//	hostcrawl history [seed]
//
// See --help for all available options.
package main

// main is the entry point for hostcrawl.
func main() {
	Execute()
}
