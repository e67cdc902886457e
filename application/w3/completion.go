package w3

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// WaitForever makes a wait block until it is signaled or cancelled.
const WaitForever time.Duration = -1

// completion is an auto-reset event. Signals before a wait collapse into
// one wakeup.
type completion struct {
	clock clock.Clock

	signal chan struct{}
	closed chan struct{}
	once   sync.Once
}

func newCompletion(clock clock.Clock) *completion {
	return &completion{
		clock:  clock,
		signal: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *completion) set() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// reset drops a pending signal.
func (c *completion) reset() {
	select {
	case <-c.signal:
	default:
	}
}

// cancel fails every current and future wait with ErrCancelled.
func (c *completion) cancel() {
	c.once.Do(func() { close(c.closed) })
}

// wait consumes one signal. A zero timeout polls, WaitForever blocks
// without bound.
func (c *completion) wait(ctx context.Context, timeout time.Duration) error {
	select {
	case <-c.closed:
		return ErrCancelled
	default:
	}

	if timeout == 0 {
		select {
		case <-c.signal:
			return nil
		default:
			return ErrTimeout
		}
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := c.clock.Timer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-c.signal:
		return nil
	case <-expired:
		return ErrTimeout
	case <-c.closed:
		return ErrCancelled
	case <-ctx.Done():
		return &OpError{Op: "wait", Kind: ErrCancelled, Err: ctx.Err()}
	}
}
