package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/nao1215/hostcrawl/internal/config"
	"github.com/nao1215/hostcrawl/internal/tor"
)

// newHTTPClient returns the client every fetch goes through: Tor when the
// run needs it, the --proxy proxy, or a direct client. The returned func
// releases what was started, such as the embedded Tor daemon.
func newHTTPClient(ctx context.Context, status io.Writer, cfg *config.Config, logger *slog.Logger) (*http.Client, func(), error) {
	switch {
	case cfg.NeedsTor() && cfg.TorProxyAddress != "":
		client, err := tor.NewClient(cfg.TorProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if err := client.CheckConnection(ctx); err != nil {
			return nil, nil, fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s)",
				err, cfg.TorProxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", cfg.TorProxyAddress)
		return client.NewHTTPClient(), func() {}, nil

	case cfg.NeedsTor():
		client, embeddedTor, err := startEmbeddedTor(ctx, status, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		stop := func() {
			logger.Info("stopping embedded Tor daemon...")
			if err := embeddedTor.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		return client.NewHTTPClient(), stop, nil

	case cfg.ProxyURL != "":
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil || proxyURL.Host == "" {
			return nil, nil, fmt.Errorf("invalid proxy URL %q", cfg.ProxyURL)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // always *http.Transport
		transport.Proxy = http.ProxyURL(proxyURL)
		return &http.Client{Transport: transport, Timeout: cfg.Timeout}, func() {}, nil

	default:
		return &http.Client{Timeout: cfg.Timeout}, func() {}, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon using tornago.
// Returns the Tor client and embedded Tor manager on success.
func startEmbeddedTor(ctx context.Context, status io.Writer, cfg *config.Config, logger *slog.Logger) (*tor.Client, *tor.EmbeddedTor, error) {
	fmt.Fprintln(status, "Starting embedded Tor daemon...")
	fmt.Fprintf(status, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)

	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)
	fmt.Fprintf(status, "Embedded Tor daemon started (SOCKS proxy: %s)\n\n", embeddedTor.SocksAddr())

	client, err := embeddedTor.NewClient(cfg.Timeout)
	if err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if err := client.CheckConnection(ctx); err != nil {
		_ = embeddedTor.Stop() //nolint:errcheck // Best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", err)
	}

	return client, embeddedTor, nil
}
