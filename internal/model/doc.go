// Package model defines the data structures shared by the output side of
// hostcrawl.
//
// This package contains the following main types:
//   - CrawlReport: the record of one crawl (pages, failures, timing)
//   - PageInfo: the metadata kept for a downloaded page
//   - Failure: one failed identifier with its failure kind
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The report, database and pipeline packages all use these
// types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
