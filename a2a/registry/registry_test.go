package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova26/hypercore/clock"
)

func TestRegisterBumpsRevisionOnExistingID(t *testing.T) {
	r := New(clock.NewFake(time.Unix(0, 0)))
	card := r.Register(PartialCard{ID: "agent-1", Name: "First", Tier: TierL2})
	require.EqualValues(t, 1, card.Revision)
	require.Equal(t, OriginLocal, card.Origin)

	updated := r.Register(PartialCard{ID: "agent-1", Name: "Updated"})
	require.EqualValues(t, 2, updated.Revision)
	require.Equal(t, "Updated", updated.Name)
	require.Equal(t, TierL2, updated.Tier, "fields omitted from the partial must be preserved")
}

func TestMergeRemoteCardTakesMaxRevisionAndTagsRemote(t *testing.T) {
	r := New(clock.NewFake(time.Unix(0, 0)))
	r.Register(PartialCard{ID: "agent-1", Name: "Local", Tier: TierL1})

	merged := r.MergeRemoteCard(PartialCard{ID: "agent-1", Name: "Remote", Revision: 10})
	require.Equal(t, OriginRemote, merged.Origin)
	require.EqualValues(t, 11, merged.Revision)
}

func TestMergeRemoteCardWithStaleRevisionStillBumpsLocalRevision(t *testing.T) {
	r := New(clock.NewFake(time.Unix(0, 0)))
	r.Register(PartialCard{ID: "agent-1", Name: "Local", Tier: TierL1})

	merged := r.MergeRemoteCard(PartialCard{ID: "agent-1", Name: "Remote", Revision: 0})
	require.EqualValues(t, 2, merged.Revision, "revision must bump even when remote's own revision is stale")
}

func TestGetByIDNotFound(t *testing.T) {
	r := New(nil)
	_, err := r.GetByID("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindByCapabilityAndTier(t *testing.T) {
	r := New(nil)
	r.Register(PartialCard{ID: "a1", Tier: TierL1, Capabilities: []string{"search"}})
	r.Register(PartialCard{ID: "a2", Tier: TierL2, Capabilities: []string{"search", "summarize"}})
	r.Register(PartialCard{ID: "a3", Tier: TierL2, Capabilities: []string{"summarize"}})

	byCap := r.FindByCapability("search")
	require.Len(t, byCap, 2)
	require.Equal(t, "a1", byCap[0].ID)
	require.Equal(t, "a2", byCap[1].ID)

	byTier := r.FindByTier(TierL2)
	require.Len(t, byTier, 2)
}

func TestGetLocalAndRemoteCards(t *testing.T) {
	r := New(nil)
	r.Register(PartialCard{ID: "local-1"})
	r.MergeRemoteCard(PartialCard{ID: "remote-1"})

	require.Len(t, r.GetLocalCards(), 1)
	require.Len(t, r.GetRemoteCards(), 1)
}

func TestUnregisterRemovesCard(t *testing.T) {
	r := New(nil)
	r.Register(PartialCard{ID: "a1"})
	r.Unregister("a1")
	_, err := r.GetByID("a1")
	require.Error(t, err)
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	r := New(nil)
	r.Register(PartialCard{ID: "a1", Name: "Agent One", Tier: TierL3})
	r.Register(PartialCard{ID: "a2", Name: "Agent Two", Tier: TierL0})

	data, err := r.Serialize()
	require.NoError(t, err)

	r2 := New(nil)
	require.NoError(t, r2.Deserialize(data))

	card, err := r2.GetByID("a1")
	require.NoError(t, err)
	require.Equal(t, "Agent One", card.Name)
	require.Len(t, r2.ListAll(), 2)
}

func TestGetStats(t *testing.T) {
	r := New(nil)
	r.Register(PartialCard{ID: "a1", Tier: TierL1})
	r.MergeRemoteCard(PartialCard{ID: "a2", Tier: TierL1})

	stats := r.GetStats()
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Local)
	require.Equal(t, 1, stats.Remote)
	require.Equal(t, 2, stats.ByTier[TierL1])
}
