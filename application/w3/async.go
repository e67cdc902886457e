package w3

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"w3client/application/inet"
	iolib "w3client/lib/io"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// AsyncClient drives the stack in asynchronous mode. Operations the stack
// accepts as pending are awaited through a completion event that the
// status callback signals.
type AsyncClient struct {
	*Client

	callback inet.StatusCallback

	mu       sync.Mutex // guards the fields below
	done     *completion
	asyncErr error
	// current is the request being sent. Completions reported for any
	// other request are stale and dropped.
	current inet.Request
}

// NewAsync creates an AsyncClient. callback, if set, observes every status
// the stack reports. It runs on a goroutine owned by the stack.
func NewAsync(
	stack inet.Stack,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
	callback inet.StatusCallback,
) (*AsyncClient, error) {
	c, err := New(stack, logger, clock, opts)
	if err != nil {
		return nil, err
	}

	a := &AsyncClient{
		Client:   c,
		callback: callback,
		done:     newCompletion(clock),
	}
	c.sessionOpts.Async = true
	c.sessionOpts.Callback = a.onStatus
	c.sender = a

	return a, nil
}

func (a *AsyncClient) completion() *completion {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

func (a *AsyncClient) onStatus(status inet.Status, info any) {
	a.callback.Notify(status, info)

	if status != inet.StatusRequestComplete {
		return
	}
	res, _ := info.(inet.AsyncResult)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil || (res.Request != nil && res.Request != a.current) {
		a.logger.Debug("dropping stale completion", "error", res.Err)
		return
	}
	if res.Err != nil {
		a.asyncErr = res.Err
	}
	a.done.set()
}

// SetComplete signals the completion event. Signals that arrive before a
// wait collapse into a single wakeup.
func (a *AsyncClient) SetComplete() { a.completion().set() }

// WaitForCompletion consumes one completion signal. A zero timeout polls
// and WaitForever blocks until signaled or until the client is closed.
func (a *AsyncClient) WaitForCompletion(timeout time.Duration) error {
	return a.WaitForCompletionContext(context.Background(), timeout)
}

func (a *AsyncClient) WaitForCompletionContext(ctx context.Context, timeout time.Duration) error {
	err := a.completion().wait(ctx, timeout)
	if err == nil {
		return nil
	}

	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr
	}
	return &OpError{Op: "wait for completion", Kind: err}
}

// Connect opens the session in asynchronous mode.
func (a *AsyncClient) Connect(ctx context.Context, rawURL, user, password string) error {
	a.rearm()
	return a.Client.Connect(ctx, rawURL, user, password)
}

func (a *AsyncClient) ConnectHost(ctx context.Context, host string, port uint16, user, password string, scheme Scheme) error {
	a.rearm()
	return a.Client.ConnectHost(ctx, host, port, user, password, scheme)
}

// rearm replaces an event cancelled by Close.
func (a *AsyncClient) rearm() {
	a.mu.Lock()
	defer a.mu.Unlock()

	select {
	case <-a.done.closed:
		a.done = newCompletion(a.clock)
	default:
	}
	a.asyncErr = nil
}

// Close cancels outstanding waits with ErrCancelled and closes the client.
func (a *AsyncClient) Close() error {
	a.completion().cancel()
	return a.Client.Close()
}

// send runs the phases of a request, waiting for each one the stack
// reports as pending. POST bodies are written between the head and the
// final phase.
func (a *AsyncClient) send(ctx context.Context, r *request, payload []byte) error {
	a.track(r.handle)
	defer a.track(nil)

	if r.method == MethodGet {
		if err := a.await(ctx, r, r.handle.Send(ctx, nil)); err != nil {
			return errors.Wrap(err, "sending request")
		}
		return nil
	}

	if err := a.await(ctx, r, r.handle.SendEx(ctx, uint64(len(payload)))); err != nil {
		return errors.Wrap(err, "sending request head")
	}

	for chunk := range slices.Chunk(payload, a.opts.BufferSize) {
		if _, err := iolib.WriteFull(r.handle, chunk); err != nil {
			return errors.Wrap(err, "writing request body")
		}
	}

	if err := a.await(ctx, r, r.finalize(ctx)); err != nil {
		return errors.Wrap(err, "ending request")
	}
	return nil
}

// await marks r sent and, when err is ErrIOPending, blocks until the
// stack completes the phase.
func (a *AsyncClient) await(ctx context.Context, r *request, err error) error {
	switch {
	case err == nil:
		r.complete()
		return nil
	case !errors.Is(err, inet.ErrIOPending):
		return err
	}

	r.sent()
	if err := a.WaitForCompletionContext(ctx, a.opts.CompletionTimeout); err != nil {
		return err
	}
	if err := a.takeErr(); err != nil {
		return err
	}
	r.complete()
	return nil
}

// track makes handle the request whose completions are awaited and drops
// whatever an earlier request left behind.
func (a *AsyncClient) track(handle inet.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = handle
	a.done.reset()
	a.asyncErr = nil
}

func (a *AsyncClient) takeErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.asyncErr
	a.asyncErr = nil
	return err
}
