// Package crawler orchestrates depth-bounded recursive crawls with bounded
// concurrency.
//
// # Architecture
//
// An Orchestrator owns two worker pools and a host admission controller.
// Every identifier goes through the same pipeline:
//
//	dispatch -> host admission -> fetch pool -> extract pool -> dispatch ...
//
// dispatch claims the identifier in the crawl's VisitedSet, resolves its
// host and hands a fetch job to the HostAdmissionController, which queues
// it per host so that no host ever sees more than the configured number of
// concurrent fetches. A successful fetch submits an extraction job to the
// extract pool, and extraction dispatches every discovered link one hop
// deeper.
//
// A CompletionTracker counts outstanding fetch and extraction units so that
// Crawl knows when the whole tree has settled, and an ErrorCollector keeps
// the first failure per identifier.
//
// Design decision: Nothing in the pipeline ever blocks on submission.
// Worker pools have unbounded queues and host admission either admits or
// queues, because fetch and extract workers feed each other and any
// bounded hand-off between them can deadlock.
//
// # Depth
//
// maxDepth counts fetched levels. Depth 1 fetches only the seed, depth 2
// the seed and its direct links, and depth 0 or less fetches nothing.
//
// # Shutdown
//
// Close discards fetches still waiting for host admission, lets admitted
// work finish within a grace period and wakes any Crawl that is still
// waiting. Such a Crawl returns its partial Result together with ErrClosed.
//
// # Usage
//
//	orch, err := crawler.New(fetcher, crawler.WithPerHostLimit(2))
//	if err != nil {
//		return err
//	}
//	defer orch.Close()
//
//	result, err := orch.Crawl("https://example.com/", 3, nil)
package crawler
