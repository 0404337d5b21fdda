package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const defaultDrainTimeout = 30 * time.Second

// ShutdownManager drains the API server on SIGINT or SIGTERM and then
// closes the service's resources in the order they were registered.
// Registration order matters: the ops server and tracer flush while
// the redis and database connections are still alive.
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	timeout time.Duration

	mu      sync.Mutex
	closers []resourceCloser
}

type resourceCloser struct {
	name  string
	close func(context.Context) error
}

// NewShutdownManager wires signal-driven shutdown for the given HTTP
// server. A non-positive timeout falls back to 30 seconds.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = defaultDrainTimeout
	}
	return &ShutdownManager{logger: logger, server: server, timeout: timeout}
}

// OnShutdown registers a named resource to close once the server has
// drained its in-flight requests.
func (m *ShutdownManager) OnShutdown(name string, close func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, resourceCloser{name: name, close: close})
}

// WaitForShutdown blocks until the process receives SIGINT or SIGTERM,
// then drains the API server and closes registered resources. It
// returns the first error encountered but keeps closing the remaining
// resources so a failed tracer flush does not leak the database pool.
func (m *ShutdownManager) WaitForShutdown() error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals

	m.logger.WithField("signal", sig.String()).Info("shutdown signal received, draining")

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var firstErr error
	if m.server != nil {
		if err := m.server.Shutdown(ctx); err != nil {
			m.logger.WithError(err).Error("api server drain failed")
			firstErr = fmt.Errorf("drain api server: %w", err)
		}
	}

	if err := m.closeResources(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	if firstErr == nil {
		m.logger.Info("graceful shutdown complete")
	}
	return firstErr
}

// closeResources runs the registered closers in order, returning the
// first error while still attempting the rest.
func (m *ShutdownManager) closeResources(ctx context.Context) error {
	m.mu.Lock()
	closers := m.closers
	m.mu.Unlock()

	var firstErr error
	for _, c := range closers {
		if err := c.close(ctx); err != nil {
			m.logger.WithError(err).WithField("resource", c.name).Error("resource close failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("close %s: %w", c.name, err)
			}
			continue
		}
		m.logger.WithField("resource", c.name).Debug("resource closed")
	}
	return firstErr
}
