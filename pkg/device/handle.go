package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultWriteTimeout bounds every frame write.
const DefaultWriteTimeout = 250 * time.Millisecond

// Handle owns exclusive I/O access to one physical peripheral.
// Implementations are not safe for concurrent use; the scheduler is the
// only caller.
type Handle interface {
	// WriteFrame writes one complete frame. Any failure wraps ErrIO.
	WriteFrame(ctx context.Context, frame []byte) error

	// Path identifies the opened device
	Path() string

	// Close releases the device
	Close() error
}

// Opener opens a handle for a configured path or AutoDetect.
type Opener func(ctx context.Context, path string) (Handle, error)

// WriteWithTimeout runs write and gives up after timeout. The write may
// still be running in the background when a timeout is returned; callers
// must close the handle afterwards.
func WriteWithTimeout(ctx context.Context, timeout time.Duration, write func() error) error {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	done := make(chan error, 1)
	go func() {
		done <- write()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("write after %s: %w", timeout, ErrTimeout)
	case <-ctx.Done():
		return fmt.Errorf("write cancelled: %w", ctx.Err())
	}
}

// WriteGuard tracks the one write a handle may have in flight, including a
// write WriteWithTimeout has given up on. Close never waits on a lock held
// by that write.
type WriteGuard struct {
	mu     sync.Mutex
	closed bool
	busy   bool
	idle   chan struct{}
}

// Begin claims the handle for one write. It fails once the guard is
// closed or while an abandoned write is still running.
func (g *WriteGuard) Begin() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.closed:
		return fmt.Errorf("handle closed: %w", ErrNotConnected)
	case g.busy:
		return fmt.Errorf("previous write still pending: %w", ErrTimeout)
	}
	g.busy = true
	g.idle = make(chan struct{})
	return nil
}

// End releases the claim taken by Begin.
func (g *WriteGuard) End() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.busy = false
	close(g.idle)
}

// Close marks the guard closed. first is false if it was already closed.
// idle is closed once no write is in flight.
func (g *WriteGuard) Close() (first bool, idle <-chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	first = !g.closed
	g.closed = true
	if g.busy {
		return first, g.idle
	}
	done := make(chan struct{})
	close(done)
	return first, done
}

// Guarded runs write under g with WriteWithTimeout.
func Guarded(ctx context.Context, g *WriteGuard, timeout time.Duration, write func() error) error {
	if err := g.Begin(); err != nil {
		return err
	}
	return WriteWithTimeout(ctx, timeout, func() error {
		defer g.End()
		return write()
	})
}
