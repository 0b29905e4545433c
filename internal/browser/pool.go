package browser

import (
	"context"
	"fmt"
	"sync"
)

// Opener opens tabs. *Browser is the production implementation.
type Opener interface {
	NewTab(ctx context.Context) (Tab, error)
}

// Pool manages a fixed set of tabs sharing one browser context.
type Pool struct {
	mu     sync.Mutex
	tabs   []Tab
	size   int
	closed bool
	free   chan Tab
}

// NewPool opens size tabs up front.
func NewPool(ctx context.Context, opener Opener, size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}

	pool := &Pool{
		tabs: make([]Tab, 0, size),
		size: size,
		free: make(chan Tab, size),
	}

	for i := 0; i < size; i++ {
		tab, err := opener.NewTab(ctx)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to open tab %d: %w", i, err)
		}
		pool.tabs = append(pool.tabs, tab)
		pool.free <- tab
	}

	return pool, nil
}

// Acquire takes a tab from the pool, blocking until one is free.
func (p *Pool) Acquire(ctx context.Context) (Tab, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("pool is closed")
	}

	select {
	case tab, ok := <-p.free:
		if !ok {
			return nil, fmt.Errorf("pool is closed")
		}
		return tab, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a tab to the pool.
func (p *Pool) Release(tab Tab) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.free <- tab
}

// Close closes all tabs in the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var lastErr error
	for _, tab := range p.tabs {
		if err := tab.Close(); err != nil {
			lastErr = err
		}
	}

	close(p.free)
	return lastErr
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.size
}
