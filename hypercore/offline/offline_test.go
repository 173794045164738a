package offline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova26/hypercore/hypercore/logstore"
)

func newQueue(t *testing.T) *Queue {
	t.Helper()
	log := logstore.New("offline-test", logstore.Options{Writable: true})
	return New(log)
}

func TestAppendWhileOnlineWritesThrough(t *testing.T) {
	q := newQueue(t)
	res, err := q.Append([]byte("hello"))
	require.NoError(t, err)
	require.NotNil(t, res)
	require.EqualValues(t, 1, q.Length())
}

func TestAppendWhileOfflineQueuesInsteadOfWriting(t *testing.T) {
	q := newQueue(t)
	q.SetOnline(false)

	res, err := q.Append([]byte("queued-1"))
	require.NoError(t, err)
	require.Nil(t, res)
	require.EqualValues(t, 0, q.Length())
	require.Equal(t, 1, q.PendingCount())
}

func TestSetOnlineDrainsInFIFOOrder(t *testing.T) {
	q := newQueue(t)
	q.SetOnline(false)
	_, _ = q.Append([]byte("a"))
	_, _ = q.Append([]byte("b"))
	_, _ = q.Append([]byte("c"))

	result := q.SetOnline(true)
	require.NotNil(t, result)
	require.Equal(t, DrainResult{Replayed: 3, Failed: 0}, *result)
	require.EqualValues(t, 3, q.Length())

	e0, err := q.Get(0)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), e0.Data)
	e2, err := q.Get(2)
	require.NoError(t, err)
	require.Equal(t, []byte("c"), e2.Data)
}

func TestSetOnlineNoOpWhenAlreadyInThatState(t *testing.T) {
	q := newQueue(t)
	require.Nil(t, q.SetOnline(true))
}

func TestListenersFireOnEdgeTransitionsOnly(t *testing.T) {
	q := newQueue(t)
	onlineFires, offlineFires := 0, 0
	q.OnOnline(func() { onlineFires++ })
	q.OnOffline(func() { offlineFires++ })

	q.SetOnline(true) // no-op, already online
	require.Equal(t, 0, onlineFires)
	require.Equal(t, 0, offlineFires)

	q.SetOnline(false)
	require.Equal(t, 1, offlineFires)
	q.SetOnline(false) // no-op
	require.Equal(t, 1, offlineFires)

	q.SetOnline(true)
	require.Equal(t, 1, onlineFires)
}

func TestTotalDrainedIsMonotonicallyNonDecreasing(t *testing.T) {
	q := newQueue(t)
	q.SetOnline(false)
	_, _ = q.Append([]byte("a"))
	q.SetOnline(true)
	require.EqualValues(t, 1, q.TotalDrained())

	q.SetOnline(false)
	_, _ = q.Append([]byte("b"))
	q.SetOnline(true)
	require.EqualValues(t, 2, q.TotalDrained())
}

func TestSyncStateDefaultsToNegativeOne(t *testing.T) {
	q := newQueue(t)
	require.EqualValues(t, -1, q.GetLastSyncedSeq("log-a", "peer-1"))

	q.RecordSyncState("log-a", "peer-1", 5)
	require.EqualValues(t, 5, q.GetLastSyncedSeq("log-a", "peer-1"))
	require.EqualValues(t, -1, q.GetLastSyncedSeq("log-a", "peer-2"))
}
