// Package tor lets hostcrawl reach onion services.
//
// A Client routes HTTP requests through a Tor SOCKS5 proxy, either one the
// user already runs or one started on demand by EmbeddedTor. The onion
// helpers validate v3 addresses so that typos are rejected before any
// request is made.
//
// Design decision: We only use tornago to manage the daemon process. The
// SOCKS5 side is golang.org/x/net/proxy, which is all an HTTP transport
// needs and keeps the client usable with any Tor daemon.
package tor
