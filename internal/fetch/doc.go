// Package fetch provides the HTTP side of a crawl: a crawler.Fetcher that
// downloads pages, the Page document that extracts their links, Fetcher
// decorators for rate limiting and robots.txt, and host resolvers that
// decide how fetches are grouped for per-host admission.
//
// # Composition
//
// Decorators wrap each other and the HTTPFetcher:
//
//	var f crawler.Fetcher = fetch.NewHTTPFetcher(client)
//	f = fetch.NewRateLimitedFetcher(f, 2, nil)
//	f = fetch.NewRobotsFetcher(f, client, fetch.DefaultUserAgent, logger)
//
// Robots checks run before rate limiting so that disallowed URLs do not
// consume tokens.
package fetch
