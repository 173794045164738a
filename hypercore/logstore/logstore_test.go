package logstore

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova26/hypercore/canonical"
)

type ed25519Signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newEd25519Signer(t *testing.T) ed25519Signer {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return ed25519Signer{pub: pub, priv: priv}
}

func (s ed25519Signer) Sign(msg []byte) []byte { return ed25519.Sign(s.priv, msg) }
func (s ed25519Signer) PublicKey() []byte      { return s.pub }

func TestAppendRoundTrip(t *testing.T) {
	l := New("L", Options{Writable: true})

	a, err := l.Append(canonical.MustMarshal(map[string]interface{}{"v": "a"}))
	require.NoError(t, err)
	require.EqualValues(t, 0, a.Seq)

	b, err := l.Append(canonical.MustMarshal(map[string]interface{}{"v": "b"}))
	require.NoError(t, err)
	require.EqualValues(t, 1, b.Seq)

	got, err := l.Get(1)
	require.NoError(t, err)
	var v map[string]interface{}
	require.NoError(t, canonical.Unmarshal(got.Data, &v))
	require.Equal(t, "b", v["v"])

	require.True(t, l.VerifyChain())
	require.EqualValues(t, 2, l.Length())
}

func TestGetOutOfRange(t *testing.T) {
	l := New("L", Options{Writable: true})
	_, err := l.Get(0)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestPayloadTooLarge(t *testing.T) {
	l := New("L", Options{Writable: true, MaxPayloadBytes: 4})
	_, err := l.Append([]byte("toolong"))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestSignatureVerification(t *testing.T) {
	signer := newEd25519Signer(t)
	l := New("L", Options{Writable: true, Signer: signer})

	_, err := l.Append([]byte("hello"))
	require.NoError(t, err)
	require.True(t, l.VerifySignature(0))
}

func TestSequenceInvariant(t *testing.T) {
	l := New("L", Options{Writable: true})
	for i := 0; i < 5; i++ {
		r, err := l.Append([]byte{byte(i)})
		require.NoError(t, err)
		require.EqualValues(t, i, r.Seq)
	}
	for i := uint64(0); i < l.Length(); i++ {
		e, err := l.Get(i)
		require.NoError(t, err)
		require.Equal(t, i, e.Seq)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := New("L", Options{Writable: true})
	for i := 0; i < 3; i++ {
		_, err := src.Append([]byte{byte(i)})
		require.NoError(t, err)
	}

	dst := New("L", Options{Writable: true})
	added, err := dst.ImportEntries(src.ExportEntries(0))
	require.NoError(t, err)
	require.Equal(t, 3, added)
	require.Equal(t, src.Length(), dst.Length())
	require.Equal(t, src.Root(), dst.Root())
}

func TestImportSkipsNonContiguous(t *testing.T) {
	src := New("L", Options{Writable: true})
	for i := 0; i < 3; i++ {
		_, err := src.Append([]byte{byte(i)})
		require.NoError(t, err)
	}

	dst := New("L", Options{Writable: true})
	// skip seq 0, leaving a gap: nothing should import.
	added, err := dst.ImportEntries(src.ExportEntries(1))
	require.NoError(t, err)
	require.Equal(t, 0, added)
	require.EqualValues(t, 0, dst.Length())
}

func TestRootEmptyLog(t *testing.T) {
	l := New("L", Options{Writable: true})
	require.Empty(t, l.Root())
}
