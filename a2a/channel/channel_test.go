package channel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova26/hypercore/a2a/envelope"
	"github.com/nova26/hypercore/clock"
)

func TestNewChannelStartsConnecting(t *testing.T) {
	c := New("a", "b", Options{Clock: clock.System{}})
	require.Equal(t, StateConnecting, c.State())
}

func TestSendDeliversToHandlersInOrder(t *testing.T) {
	c := New("a", "b", Options{Clock: clock.System{}})
	var order []string
	c.RegisterHandler(func(e envelope.Envelope) error { order = append(order, e.ID); return nil })

	require.NoError(t, c.Send(envelope.Envelope{ID: "1", Type: envelope.TypeRequest, From: "a", To: "b"}))
	require.NoError(t, c.Send(envelope.Envelope{ID: "2", Type: envelope.TypeRequest, From: "a", To: "b"}))
	require.Equal(t, []string{"1", "2"}, order)
	require.Equal(t, StateOpen, c.State())
}

func TestSendFailsWithNoHandlerRegisteredAfterRetries(t *testing.T) {
	c := New("a", "b", Options{MaxRetries: 1, RetryBaseMs: 1, Clock: clock.System{}})
	err := c.Send(envelope.Envelope{ID: "1", Type: envelope.TypeRequest, From: "a", To: "b"})
	require.Error(t, err)
	require.Equal(t, StateOpen, c.State(), "channel returns to open after exhausting retries, per spec final-failure semantics")
}

func TestSendRetriesAndEventuallySucceeds(t *testing.T) {
	c := New("a", "b", Options{MaxRetries: 3, RetryBaseMs: 1, Clock: clock.System{}})
	attempts := 0
	c.RegisterHandler(func(envelope.Envelope) error {
		attempts++
		if attempts < 3 {
			return errFlaky
		}
		return nil
	})

	err := c.Send(envelope.Envelope{ID: "1", Type: envelope.TypeRequest, From: "a", To: "b"})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestSendFailsWhenQueueFull(t *testing.T) {
	c := New("a", "b", Options{MaxQueueSize: 0, Clock: clock.System{}})
	c.maxQueueSize = 0 // force an already-at-capacity channel for the test
	err := c.Send(envelope.Envelope{ID: "1", Type: envelope.TypeRequest, From: "a", To: "b"})
	require.ErrorIs(t, err, ErrQueueFull)
}

func TestSendOnClosedChannelFails(t *testing.T) {
	c := New("a", "b", Options{Clock: clock.System{}})
	c.Close()
	err := c.Send(envelope.Envelope{ID: "1", Type: envelope.TypeRequest, From: "a", To: "b"})
	require.ErrorIs(t, err, ErrClosed)
	require.Equal(t, StateClosed, c.State())
}

var errFlaky = errFlakyType{}

type errFlakyType struct{}

func (errFlakyType) Error() string { return "flaky failure" }
