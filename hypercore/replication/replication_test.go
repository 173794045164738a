package replication

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova26/hypercore/hypercore/logstore"
)

func newManagerWithLog(t *testing.T, name string) (*Manager, *logstore.LogStore) {
	t.Helper()
	m := New(Options{})
	m.Enable()
	log := logstore.New(name, logstore.Options{Writable: true})
	m.RegisterStore(name, log)
	return m, log
}

func TestSyncConvergesAndIsIdempotent(t *testing.T) {
	a, logA := newManagerWithLog(t, "shared")
	b, _ := newManagerWithLog(t, "shared")

	for _, v := range []byte{1, 2, 3} {
		_, err := logA.Append([]byte{v})
		require.NoError(t, err)
	}

	a.AddPeer("B", "mem://b")
	results, err := a.Sync("B", b)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 3, results[0].EntriesSent)
	require.Equal(t, 0, results[0].EntriesReceived)
	require.True(t, results[0].MerkleValid)

	results, err = a.Sync("B", b)
	require.NoError(t, err)
	require.Equal(t, 0, results[0].EntriesSent)
	require.Equal(t, 0, results[0].EntriesReceived)
}

func TestSyncUnknownPeer(t *testing.T) {
	a, _ := newManagerWithLog(t, "shared")
	b, _ := newManagerWithLog(t, "shared")
	_, err := a.Sync("ghost", b)
	require.ErrorIs(t, err, ErrPeerNotFound)
}

func TestComputeMerkleRootEmpty(t *testing.T) {
	require.Empty(t, ComputeMerkleRoot(nil))
}

func TestComputeMerkleRootDeterministic(t *testing.T) {
	hashes := [][]byte{{1}, {2}, {3}}
	r1 := ComputeMerkleRoot(hashes)
	r2 := ComputeMerkleRoot(hashes)
	require.Equal(t, r1, r2)
	require.NotEmpty(t, r1)
}
