package tor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout is how long EmbeddedTor waits for Tor to bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private Tor daemon for the duration of a crawl, so
// that no system Tor installation is needed.
//
// Bootstrapping takes one to three minutes while Tor downloads directory
// information and builds its first circuits.
type EmbeddedTor struct {
	startupTimeout time.Duration

	mu      sync.Mutex
	process *tornago.TorProcess
}

// EmbeddedTorOption configures an EmbeddedTor.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the bootstrap timeout.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor creates a stopped daemon manager.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{startupTimeout: DefaultStartupTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches Tor on OS-assigned ports and blocks until it has
// bootstrapped. If ctx is done by then, the daemon is stopped again.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	cfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(cfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort
		return err
	}

	e.mu.Lock()
	e.process = process
	e.mu.Unlock()
	return nil
}

// Stop shuts the daemon down. It is a no-op when the daemon is not running.
func (e *EmbeddedTor) Stop() error {
	e.mu.Lock()
	process := e.process
	e.process = nil
	e.mu.Unlock()

	if process == nil {
		return nil
	}
	return process.Stop()
}

// IsRunning reports whether the daemon has been started and not stopped.
func (e *EmbeddedTor) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.process != nil
}

// SocksAddr returns the daemon's SOCKS5 address, or "" when not running.
func (e *EmbeddedTor) SocksAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.process == nil {
		return ""
	}
	return e.process.SocksAddr()
}

// ControlAddr returns the daemon's control port address, or "" when not
// running.
func (e *EmbeddedTor) ControlAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.process == nil {
		return ""
	}
	return e.process.ControlAddr()
}

// NewClient returns a Client for the running daemon.
func (e *EmbeddedTor) NewClient(timeout time.Duration) (*Client, error) {
	addr := e.SocksAddr()
	if addr == "" {
		return nil, ErrNotRunning
	}
	return NewClient(addr, timeout)
}
