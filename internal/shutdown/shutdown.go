// Package shutdown turns SIGINT/SIGTERM into context cancellation and runs
// cleanup callbacks once the crawl has unwound.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Handler manages graceful shutdown.
type Handler struct {
	mu sync.Mutex

	// Callbacks
	callbacks     []ShutdownCallback
	callbackNames []string

	// State
	interrupted    atomic.Bool
	isShuttingDown atomic.Bool
	done           chan struct{}
	timeout        time.Duration

	// Context
	ctx    context.Context
	cancel context.CancelFunc

	// Signal handling
	sigChan chan os.Signal
	stop    chan struct{}

	// Notification
	onSignal func(sig os.Signal)
	onForce  func()
}

// ShutdownCallback is a function called during shutdown.
type ShutdownCallback func(ctx context.Context) error

// Config holds shutdown configuration.
type Config struct {
	// Timeout bounds all callbacks together.
	Timeout time.Duration
	Signals []os.Signal
	// OnSignal runs when the first signal cancels the context.
	OnSignal func(sig os.Signal)
	// OnForce runs on a second signal, typically to exit immediately.
	OnForce func()
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 15 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// New creates a handler whose context derives from parent, so a parent
// deadline still applies.
func New(parent context.Context, cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	ctx, cancel := context.WithCancel(parent)

	h := &Handler{
		done:     make(chan struct{}),
		timeout:  cfg.Timeout,
		ctx:      ctx,
		cancel:   cancel,
		sigChan:  make(chan os.Signal, 2),
		stop:     make(chan struct{}),
		onSignal: cfg.OnSignal,
		onForce:  cfg.OnForce,
	}

	signal.Notify(h.sigChan, cfg.Signals...)
	go h.listen()

	return h
}

func (h *Handler) listen() {
	for {
		select {
		case sig := <-h.sigChan:
			if h.interrupted.CompareAndSwap(false, true) {
				if h.onSignal != nil {
					h.onSignal(sig)
				}
				h.cancel()
				continue
			}
			if h.onForce != nil {
				h.onForce()
			}
			return
		case <-h.stop:
			return
		}
	}
}

// Register registers a shutdown callback with a name.
func (h *Handler) Register(name string, callback ShutdownCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.callbacks = append(h.callbacks, callback)
	h.callbackNames = append(h.callbackNames, name)
}

// RegisterFunc registers a simple cleanup function.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(ctx context.Context) error {
		fn()
		return nil
	})
}

// Context returns the run context. It is cancelled by the first signal,
// by Shutdown, or by the parent.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted reports whether a signal was received.
func (h *Handler) Interrupted() bool {
	return h.interrupted.Load()
}

// Done returns a channel that is closed when shutdown completes.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Shutdown cancels the context and runs callbacks in reverse registration
// order. Only the first call does anything; later calls return nil.
func (h *Handler) Shutdown() []error {
	if !h.isShuttingDown.CompareAndSwap(false, true) {
		return nil
	}
	defer close(h.done)

	h.cancel()
	signal.Stop(h.sigChan)
	close(h.stop)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), h.timeout)
	defer shutdownCancel()

	h.mu.Lock()
	callbacks := make([]ShutdownCallback, len(h.callbacks))
	names := make([]string, len(h.callbackNames))
	copy(callbacks, h.callbacks)
	copy(names, h.callbackNames)
	h.mu.Unlock()

	var errs []error
	for i := len(callbacks) - 1; i >= 0; i-- {
		if err := h.executeCallback(shutdownCtx, names[i], callbacks[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// executeCallback executes a shutdown callback with timeout handling.
func (h *Handler) executeCallback(ctx context.Context, name string, callback ShutdownCallback) error {
	done := make(chan error, 1)

	go func() {
		done <- callback(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &TimeoutError{CallbackName: name}
	}
}

// TimeoutError is returned when a callback times out.
type TimeoutError struct {
	CallbackName string
}

func (e *TimeoutError) Error() string {
	return "shutdown callback timed out: " + e.CallbackName
}
