package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnnounceAndLookupExcludesSelf(t *testing.T) {
	broker := NewBroker()
	a := New(PeerInfo{PeerID: "A", Address: "mem://a"}, NewMemoryTransport(broker))
	b := New(PeerInfo{PeerID: "B", Address: "mem://b"}, NewMemoryTransport(broker))

	ctx := context.Background()
	require.NoError(t, a.Announce(ctx, "topic"))
	require.NoError(t, b.Announce(ctx, "topic"))

	peers, err := a.Lookup(ctx, "topic")
	require.NoError(t, err)
	require.Len(t, peers, 1)
	require.Equal(t, "B", peers[0].PeerID)
}

func TestLeaveRemovesFromLookup(t *testing.T) {
	broker := NewBroker()
	a := New(PeerInfo{PeerID: "A"}, NewMemoryTransport(broker))
	b := New(PeerInfo{PeerID: "B"}, NewMemoryTransport(broker))
	ctx := context.Background()

	require.NoError(t, a.Announce(ctx, "topic"))
	require.NoError(t, b.Announce(ctx, "topic"))
	require.NoError(t, b.Leave(ctx, "topic"))

	peers, err := a.Lookup(ctx, "topic")
	require.NoError(t, err)
	require.Empty(t, peers)
}

func TestListenerFiresOnPeerAdded(t *testing.T) {
	broker := NewBroker()
	a := New(PeerInfo{PeerID: "A"}, NewMemoryTransport(broker))
	b := New(PeerInfo{PeerID: "B"}, NewMemoryTransport(broker))
	ctx := context.Background()

	var events []EventKind
	a.On(func(e Event) { events = append(events, e.Kind) })

	require.NoError(t, a.Announce(ctx, "topic"))
	require.NoError(t, b.Announce(ctx, "topic"))
	_, err := a.Lookup(ctx, "topic")
	require.NoError(t, err)

	require.Contains(t, events, EventPeerAdded)
	require.Contains(t, events, EventLookupComplete)
}
