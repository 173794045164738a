package crdtsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova26/hypercore/a2a/envelope"
	"github.com/nova26/hypercore/a2a/registry"
	"github.com/nova26/hypercore/a2a/router"
	"github.com/nova26/hypercore/clock"
)

func TestBroadcastIncrementsLocalClockAndSendsStreamData(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	reg := registry.New(fake)
	reg.Register(registry.PartialCard{ID: "agent-a", Tier: registry.TierL1})
	reg.Register(registry.PartialCard{ID: "agent-b", Tier: registry.TierL1})
	r := router.New(reg, router.Options{Clock: fake})

	var received envelope.Envelope
	r.RegisterHandler("agent-b", func(e envelope.Envelope) error { received = e; return nil })

	ch := New("agent-a", "notes", r, fake)
	update, err := ch.Broadcast(map[string]interface{}{"text": "hello"})
	require.NoError(t, err)
	require.Equal(t, uint64(1), update.VectorClock["agent-a"])
	require.Equal(t, envelope.TypeStreamData, received.Type)
	require.Equal(t, envelope.Broadcast, received.To)
}

func TestApplyUpdateMergesVectorClockAndNotifiesListeners(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	reg := registry.New(fake)
	r := router.New(reg, router.Options{Clock: fake})

	receiver := New("agent-b", "notes", r, fake)
	var got Update
	receiver.OnUpdate(func(u Update) { got = u })

	sender := New("agent-a", "notes", r, fake)
	update, err := sender.Broadcast(map[string]interface{}{"text": "hi"})
	require.NoError(t, err)

	env := envelope.Envelope{
		ID:          update.OperationID,
		Type:        envelope.TypeStreamData,
		From:        "agent-a",
		To:          envelope.Broadcast,
		Payload:     updateToPayload(update),
		TimestampMs: fake.Now().UnixMilli(),
	}
	receiver.ApplyUpdate(env)

	require.Equal(t, update.OperationID, got.OperationID)
	require.Equal(t, uint64(1), receiver.LocalClock()["agent-a"])
}

func TestApplyUpdateRejectsMalformedPayloadWithoutPanicking(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	reg := registry.New(fake)
	r := router.New(reg, router.Options{Clock: fake})
	ch := New("agent-b", "notes", r, fake)

	env := envelope.Envelope{ID: "bad-1", Type: envelope.TypeStreamData, From: "agent-a", To: envelope.Broadcast, Payload: map[string]interface{}{"nonsense": true}}
	ch.ApplyUpdate(env)

	rejected := ch.RejectedUpdates()
	require.Len(t, rejected, 1)
	require.Equal(t, "bad-1", rejected[0].Raw.ID)
}

func TestApplyUpdateMergeTakesComponentWiseMax(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	reg := registry.New(fake)
	r := router.New(reg, router.Options{Clock: fake})
	receiver := New("agent-b", "notes", r, fake)

	receiver.Broadcast(map[string]interface{}{}) // local component now 1 for agent-b

	remoteUpdate := Update{
		OperationID: "remote-1",
		LogName:     "notes",
		Seq:         1,
		VectorClock: map[string]uint64{"agent-a": 3, "agent-b": 0},
		Payload:     map[string]interface{}{},
	}
	env := envelope.Envelope{ID: "remote-1", Type: envelope.TypeStreamData, From: "agent-a", To: envelope.Broadcast, Payload: updateToPayload(remoteUpdate)}
	receiver.ApplyUpdate(env)

	merged := receiver.LocalClock()
	require.Equal(t, uint64(3), merged["agent-a"])
	require.Equal(t, uint64(1), merged["agent-b"])
}
