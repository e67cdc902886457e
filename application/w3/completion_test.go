package w3

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

type CompletionTestSuite struct {
	suite.Suite

	clock *clock.Mock
	c     *completion
}

func TestCompletionTestSuite(t *testing.T) {
	suite.Run(t, new(CompletionTestSuite))
}

func (s *CompletionTestSuite) SetupTest() {
	s.clock = clock.NewMock()
	s.c = newCompletion(s.clock)
}

func (s *CompletionTestSuite) TearDownTest() {
	goleak.VerifyNone(s.T())
}

func (s *CompletionTestSuite) TestOneWakeupPerSignal() {
	s.c.set()
	s.NoError(s.c.wait(context.Background(), 0))
	s.ErrorIs(s.c.wait(context.Background(), 0), ErrTimeout)

	s.c.set()
	s.NoError(s.c.wait(context.Background(), WaitForever))
}

func (s *CompletionTestSuite) TestSignalsCollapse() {
	s.c.set()
	s.c.set()
	s.c.set()

	s.NoError(s.c.wait(context.Background(), 0))
	s.ErrorIs(s.c.wait(context.Background(), 0), ErrTimeout)
}

func (s *CompletionTestSuite) TestReset() {
	s.c.set()
	s.c.reset()
	s.ErrorIs(s.c.wait(context.Background(), 0), ErrTimeout)
}

func (s *CompletionTestSuite) TestSignalWakesWaiter() {
	done := make(chan error)
	go func() { done <- s.c.wait(context.Background(), WaitForever) }()

	s.c.set()
	s.NoError(<-done)
}

func (s *CompletionTestSuite) TestTimeout() {
	done := make(chan error)
	go func() { done <- s.c.wait(context.Background(), time.Second) }()

	// Let the waiter arm its timer before moving the clock.
	s.Eventually(func() bool {
		s.clock.Add(100 * time.Millisecond)
		select {
		case err := <-done:
			s.ErrorIs(err, ErrTimeout)
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
}

func (s *CompletionTestSuite) TestCancel() {
	done := make(chan error)
	go func() { done <- s.c.wait(context.Background(), WaitForever) }()

	s.c.cancel()
	s.ErrorIs(<-done, ErrCancelled)

	// Cancelled for good, even with a pending signal.
	s.c.cancel()
	s.c.set()
	s.ErrorIs(s.c.wait(context.Background(), 0), ErrCancelled)
}

func (s *CompletionTestSuite) TestContextDone() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.c.wait(ctx, WaitForever) }()

	cancel()
	err := <-done
	s.ErrorIs(err, ErrCancelled)
	s.ErrorIs(err, context.Canceled)
}

func TestWaitForeverIsNegative(t *testing.T) {
	assert.Negative(t, WaitForever)
}
