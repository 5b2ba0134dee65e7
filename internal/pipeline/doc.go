// Package pipeline runs batches of crawls and post-processes their reports.
//
// A BatchProcessor crawls many seeds concurrently through one shared
// crawler.Orchestrator, builds a model.CrawlReport for each, and hands every
// report to a Pipeline of steps such as SaveStep (history database) and
// WriteStep (report output).
//
// Design decision: We use a pipeline pattern for the post-crawl work instead
// of direct function calls because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It lets the CLI decide which outputs a run has (database, file, stdout)
//
// The batch runner uses errgroup for concurrency control.
package pipeline
