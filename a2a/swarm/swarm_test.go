package swarm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova26/hypercore/a2a/envelope"
	"github.com/nova26/hypercore/a2a/registry"
	"github.com/nova26/hypercore/a2a/router"
	"github.com/nova26/hypercore/clock"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *router.Router, *registry.Registry) {
	t.Helper()
	fake := clock.NewFake(time.Unix(0, 0))
	reg := registry.New(fake)
	r := router.New(reg, router.Options{Clock: fake})
	c := New("coordinator", reg, r, fake)
	return c, r, reg
}

func TestCreateSwarmFailsWithNoCapableAgents(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.CreateSwarm(context.Background(), "build a thing", []string{"writing"}, []string{"draft"})
	require.ErrorIs(t, err, ErrNoCapableAgents)
}

func TestCreateSwarmRecruitsAndBroadcastsProposals(t *testing.T) {
	c, r, reg := newTestCoordinator(t)
	reg.Register(registry.PartialCard{ID: "writer-1", Tier: registry.TierL1, Capabilities: []string{"writing"}})
	reg.Register(registry.PartialCard{ID: "writer-2", Tier: registry.TierL1, Capabilities: []string{"writing"}})

	received := make(map[string]envelope.Envelope)
	r.RegisterHandler("writer-1", func(e envelope.Envelope) error { received["writer-1"] = e; return nil })
	r.RegisterHandler("writer-2", func(e envelope.Envelope) error { received["writer-2"] = e; return nil })

	session, err := c.CreateSwarm(context.Background(), "write a report", []string{"writing"}, []string{"draft", "edit"})
	require.NoError(t, err)
	require.Equal(t, SessionRecruiting, session.Status)
	require.Len(t, session.SubTasks, 2)
	require.Equal(t, SubTaskPending, session.SubTasks[0].Status)

	require.Len(t, received, 2)
	require.Equal(t, envelope.TypeTaskPropose, received["writer-1"].Type)
	require.Equal(t, session.ID, received["writer-1"].CorrelationID)
}

func TestJoinSwarmAssignsFirstPendingSubTaskAndActivates(t *testing.T) {
	c, _, reg := newTestCoordinator(t)
	reg.Register(registry.PartialCard{ID: "writer-1", Tier: registry.TierL1, Capabilities: []string{"writing"}})

	session, err := c.CreateSwarm(context.Background(), "write a report", []string{"writing"}, []string{"draft"})
	require.NoError(t, err)

	joined, err := c.JoinSwarm(session.ID, "writer-1")
	require.NoError(t, err)
	require.Equal(t, SessionActive, joined.Status)
	require.Equal(t, []string{"writer-1"}, joined.Participants)
	require.Equal(t, SubTaskRunning, joined.SubTasks[0].Status)
	require.Equal(t, "writer-1", joined.SubTasks[0].AssignedAgent)
}

func TestCompleteSubTaskFinalizesSessionWhenAllDone(t *testing.T) {
	c, _, reg := newTestCoordinator(t)
	reg.Register(registry.PartialCard{ID: "writer-1", Tier: registry.TierL1, Capabilities: []string{"writing"}})

	session, err := c.CreateSwarm(context.Background(), "write a report", []string{"writing"}, []string{"draft"})
	require.NoError(t, err)
	_, err = c.JoinSwarm(session.ID, "writer-1")
	require.NoError(t, err)

	done, err := c.CompleteSubTask(session.ID, session.SubTasks[0].ID, "the draft text")
	require.NoError(t, err)
	require.Equal(t, SessionCompleted, done.Status)
	require.Equal(t, "the draft text", done.SharedState[session.SubTasks[0].ID])
}

func TestFailSubTaskReassignsToIdleParticipant(t *testing.T) {
	c, _, reg := newTestCoordinator(t)
	reg.Register(registry.PartialCard{ID: "writer-1", Tier: registry.TierL1, Capabilities: []string{"writing"}})
	reg.Register(registry.PartialCard{ID: "writer-2", Tier: registry.TierL1, Capabilities: []string{"writing"}})

	session, err := c.CreateSwarm(context.Background(), "write a report", []string{"writing"}, []string{"draft"})
	require.NoError(t, err)
	_, err = c.JoinSwarm(session.ID, "writer-1")
	require.NoError(t, err)
	_, err = c.JoinSwarm(session.ID, "writer-2")
	require.NoError(t, err)

	subTaskID := session.SubTasks[0].ID
	updated, err := c.FailSubTask(session.ID, subTaskID, "crashed")
	require.NoError(t, err)
	require.Equal(t, SubTaskRunning, updated.SubTasks[0].Status)
	require.Equal(t, "writer-2", updated.SubTasks[0].AssignedAgent)
}

func TestFailSubTaskWithNoIdleParticipantMarksFailed(t *testing.T) {
	c, _, reg := newTestCoordinator(t)
	reg.Register(registry.PartialCard{ID: "writer-1", Tier: registry.TierL1, Capabilities: []string{"writing"}})

	session, err := c.CreateSwarm(context.Background(), "write a report", []string{"writing"}, []string{"draft"})
	require.NoError(t, err)
	_, err = c.JoinSwarm(session.ID, "writer-1")
	require.NoError(t, err)

	subTaskID := session.SubTasks[0].ID
	updated, err := c.FailSubTask(session.ID, subTaskID, "crashed")
	require.NoError(t, err)
	require.Equal(t, SubTaskFailed, updated.SubTasks[0].Status)
	require.Equal(t, SessionFailed, updated.Status)
}

func TestGetSessionReturnsErrNotFoundForUnknownID(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	_, err := c.GetSession("does-not-exist")
	require.ErrorIs(t, err, ErrSessionNotFound)
}
