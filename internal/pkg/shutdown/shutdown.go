// Package shutdown coordinates process teardown. Cleanup handlers run one at a
// time in reverse registration order, so a component registered after its
// dependencies (HTTP server after Redis, worker loop after Postgres) is
// stopped before them.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"clipforge/internal/pkg/logger"
)

const defaultTimeout = 30 * time.Second

var signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

type step struct {
	name string
	fn   func(ctx context.Context) error
}

type Manager struct {
	log     *logger.Logger
	timeout time.Duration

	mu    sync.Mutex
	steps []step

	// stopCtx is canceled when shutdown begins; done closes when it ends.
	stopCtx context.Context
	stop    context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// NewManager returns a manager whose handlers share one deadline of timeout,
// or 30s when timeout is zero.
func NewManager(log *logger.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	stopCtx, stop := context.WithCancel(context.Background())
	return &Manager{
		log:     log.WithComponent("shutdown"),
		timeout: timeout,
		stopCtx: stopCtx,
		stop:    stop,
		done:    make(chan struct{}),
	}
}

func (m *Manager) Register(name string, fn func(ctx context.Context) error) {
	m.mu.Lock()
	m.steps = append(m.steps, step{name: name, fn: fn})
	m.mu.Unlock()
}

// Wait blocks until SIGINT, SIGTERM or SIGHUP, or until Shutdown is called
// elsewhere, and returns once teardown has finished.
func (m *Manager) Wait() {
	ctx, cancel := signal.NotifyContext(context.Background(), signals...)
	defer cancel()
	m.waitFor(ctx)
}

func (m *Manager) waitFor(ctx context.Context) {
	select {
	case <-ctx.Done():
		m.log.Info("shutdown requested", "cause", context.Cause(ctx).Error())
	case <-m.stopCtx.Done():
	}
	m.Shutdown()
}

// Shutdown runs every handler once. Concurrent and later calls block until
// the first run completes.
func (m *Manager) Shutdown() {
	m.once.Do(m.run)
	<-m.done
}

func (m *Manager) run() {
	defer close(m.done)
	m.stop()

	m.mu.Lock()
	steps := append([]step(nil), m.steps...)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	m.log.Info("graceful shutdown started", "handlers", len(steps), "timeout", m.timeout.String())

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := len(steps) - 1; i >= 0; i-- {
			m.runStep(ctx, steps[i])
		}
	}()

	select {
	case <-finished:
		m.log.Info("graceful shutdown completed")
	case <-ctx.Done():
		m.log.Warn("shutdown deadline exceeded, abandoning remaining handlers")
	}
}

func (m *Manager) runStep(ctx context.Context, s step) {
	start := time.Now()
	err := s.fn(ctx)
	log := m.log.With("handler", s.name, "duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		log.Error("shutdown handler failed", "error", err.Error())
		return
	}
	log.Debug("shutdown handler done")
}

// Done is closed once shutdown has finished.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Context is canceled as soon as shutdown begins, before any handler runs.
// Long-running loops use it to stop taking new work.
func (m *Manager) Context() context.Context {
	return m.stopCtx
}
