// Package log builds the slog loggers used across hostcrawl.
//
// Every logger is wrapped in a SecureHandler, which masks secrets before
// they reach the output:
//   - values of sensitive keys (cookie, authorization, token, password)
//   - credential-looking values (JWTs, Bearer and Basic credentials, PEM keys)
//   - userinfo in URLs, including URLs inside error messages
//   - sensitive query parameters of URL values
//
// Crawls are configured with cookies and headers for authenticated areas,
// and fetch errors echo the requested URL, so verbose logs would otherwise
// leak them.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
