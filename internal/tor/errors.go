package tor

import "errors"

// Tor connectivity errors.
//
// Design decision: Each proxy failure mode has its own sentinel so the CLI
// can tell "Tor is not running" apart from "that port is not Tor".
var (
	// ErrInvalidProxyAddress is returned when the proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyCannotConnect is returned when no TCP connection to the proxy
	// can be made. Usually Tor is not running.
	ErrProxyCannotConnect = errors.New("cannot connect to Tor proxy")

	// ErrProxyNotSOCKS5 is returned when the proxy answers but does not
	// speak unauthenticated SOCKS5.
	ErrProxyNotSOCKS5 = errors.New("proxy is not an unauthenticated SOCKS5 proxy")

	// ErrProxyTimeout is returned when the proxy does not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to Tor proxy")

	// ErrNotRunning is returned when an EmbeddedTor is used before Start.
	ErrNotRunning = errors.New("embedded Tor daemon is not running")
)

// Onion address errors.
var (
	// ErrInvalidOnionAddress is returned for addresses that are not valid v3
	// onion addresses.
	ErrInvalidOnionAddress = errors.New("invalid onion address")

	// ErrV2AddressDeprecated is returned for v2 addresses, which stopped
	// working in October 2021.
	ErrV2AddressDeprecated = errors.New("v2 onion addresses are deprecated and no longer functional")
)
