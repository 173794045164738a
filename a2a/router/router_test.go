package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova26/hypercore/a2a/envelope"
	"github.com/nova26/hypercore/a2a/registry"
	"github.com/nova26/hypercore/clock"
)

func newTestRouter(t *testing.T) (*Router, *registry.Registry) {
	t.Helper()
	reg := registry.New(clock.NewFake(time.Unix(0, 0)))
	r := New(reg, Options{Clock: clock.NewFake(time.Unix(0, 0))})
	return r, reg
}

func TestSendFailsWhenTargetNotFound(t *testing.T) {
	r, reg := newTestRouter(t)
	reg.Register(registry.PartialCard{ID: "a1", Tier: registry.TierL1})

	_, err := r.Send(envelope.Envelope{ID: "e1", Type: envelope.TypeRequest, From: "a1", To: "missing"}, SendOptions{})
	require.ErrorIs(t, err, ErrAgentNotFound)
}

func TestSendDeliversToRegisteredHandler(t *testing.T) {
	r, reg := newTestRouter(t)
	reg.Register(registry.PartialCard{ID: "a1", Tier: registry.TierL1})
	reg.Register(registry.PartialCard{ID: "a2", Tier: registry.TierL1})

	var received envelope.Envelope
	r.RegisterHandler("a2", func(e envelope.Envelope) error {
		received = e
		return nil
	})

	result, err := r.Send(envelope.Envelope{ID: "e1", Type: envelope.TypeRequest, From: "a1", To: "a2"}, SendOptions{})
	require.NoError(t, err)
	require.True(t, result.Delivered)
	require.Equal(t, "a2", received.To)
}

func TestSendEnforcesTierMatrix(t *testing.T) {
	r, reg := newTestRouter(t)
	reg.Register(registry.PartialCard{ID: "worker", Tier: registry.TierL3})
	reg.Register(registry.PartialCard{ID: "coordinator", Tier: registry.TierL0})
	r.RegisterHandler("coordinator", func(envelope.Envelope) error { return nil })

	_, err := r.Send(envelope.Envelope{ID: "e1", Type: envelope.TypeRequest, From: "worker", To: "coordinator"}, SendOptions{})
	require.Error(t, err)
	var tierErr *TierViolationError
	require.ErrorAs(t, err, &tierErr)
}

func TestSendAllowsEscalatedTierViolation(t *testing.T) {
	r, reg := newTestRouter(t)
	reg.Register(registry.PartialCard{ID: "specialist", Tier: registry.TierL2})
	reg.Register(registry.PartialCard{ID: "coordinator", Tier: registry.TierL0})
	r.RegisterHandler("coordinator", func(envelope.Envelope) error { return nil })

	result, err := r.Send(envelope.Envelope{ID: "e1", Type: envelope.TypeRequest, From: "specialist", To: "coordinator"}, SendOptions{Escalate: true})
	require.NoError(t, err)
	require.True(t, result.Delivered)
}

func TestSendEnforcesSandboxMatch(t *testing.T) {
	r, reg := newTestRouter(t)
	reg.Register(registry.PartialCard{ID: "a1", Tier: registry.TierL1, SandboxID: "sandbox-a"})
	reg.Register(registry.PartialCard{ID: "a2", Tier: registry.TierL1, SandboxID: "sandbox-b"})
	r.RegisterHandler("a2", func(envelope.Envelope) error { return nil })

	_, err := r.Send(envelope.Envelope{ID: "e1", Type: envelope.TypeRequest, From: "a1", To: "a2"}, SendOptions{})
	require.Error(t, err)
	var sandboxErr *SandboxViolationError
	require.ErrorAs(t, err, &sandboxErr)
}

func TestBroadcastDeliversToEveryoneExceptSender(t *testing.T) {
	r, reg := newTestRouter(t)
	reg.Register(registry.PartialCard{ID: "a1", Tier: registry.TierL1})
	reg.Register(registry.PartialCard{ID: "a2", Tier: registry.TierL1})
	reg.Register(registry.PartialCard{ID: "a3", Tier: registry.TierL1})

	var got []string
	r.RegisterHandler("a2", func(e envelope.Envelope) error { got = append(got, "a2"); return nil })
	r.RegisterHandler("a3", func(e envelope.Envelope) error { got = append(got, "a3"); return nil })
	r.RegisterHandler("a1", func(e envelope.Envelope) error { got = append(got, "a1"); return nil })

	result, err := r.Send(envelope.Envelope{ID: "e1", Type: envelope.TypeNotification, From: "a1", To: envelope.Broadcast}, SendOptions{})
	require.NoError(t, err)
	require.True(t, result.Delivered)
	require.ElementsMatch(t, []string{"a2", "a3"}, got)
}

func TestRouteByCapabilityFansOutToMatchingAgents(t *testing.T) {
	r, reg := newTestRouter(t)
	reg.Register(registry.PartialCard{ID: "a1", Tier: registry.TierL1, Capabilities: []string{"search"}})
	reg.Register(registry.PartialCard{ID: "a2", Tier: registry.TierL1, Capabilities: []string{"search"}})
	reg.Register(registry.PartialCard{ID: "a3", Tier: registry.TierL1, Capabilities: []string{"other"}})

	delivered := 0
	r.RegisterHandler("a1", func(envelope.Envelope) error { delivered++; return nil })
	r.RegisterHandler("a2", func(envelope.Envelope) error { delivered++; return nil })

	results := r.RouteByCapability(envelope.Envelope{ID: "e1", Type: envelope.TypeRequest, From: "coordinator"}, "search")
	require.Len(t, results, 2)
	require.Equal(t, 2, delivered)
}

func TestUnsubscribeHandlerStopsDelivery(t *testing.T) {
	r, reg := newTestRouter(t)
	reg.Register(registry.PartialCard{ID: "a1", Tier: registry.TierL1})
	reg.Register(registry.PartialCard{ID: "a2", Tier: registry.TierL1})

	calls := 0
	unsub := r.RegisterHandler("a2", func(envelope.Envelope) error { calls++; return nil })
	unsub()

	result, err := r.Send(envelope.Envelope{ID: "e1", Type: envelope.TypeRequest, From: "a1", To: "a2"}, SendOptions{})
	require.NoError(t, err)
	require.False(t, result.Delivered)
	require.Equal(t, 0, calls)
}
