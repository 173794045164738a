package access

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	k := make([]byte, keySize)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey()
	sealed, err := EncryptPayload([]byte("top secret"), key)
	require.NoError(t, err)
	require.NotEmpty(t, sealed.IV)
	require.NotEmpty(t, sealed.Ciphertext)

	plain, err := DecryptPayload(sealed, key)
	require.NoError(t, err)
	require.Equal(t, []byte("top secret"), plain)
}

func TestEncryptUsesFreshNonceEachCall(t *testing.T) {
	key := testKey()
	a, err := EncryptPayload([]byte("same message"), key)
	require.NoError(t, err)
	b, err := EncryptPayload([]byte("same message"), key)
	require.NoError(t, err)
	require.NotEqual(t, a.IV, b.IV)
	require.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecryptFailsOnTampering(t *testing.T) {
	key := testKey()
	sealed, err := EncryptPayload([]byte("message"), key)
	require.NoError(t, err)
	sealed.Ciphertext = sealed.Ciphertext[:len(sealed.Ciphertext)-2] + "00"

	_, err = DecryptPayload(sealed, key)
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestDecryptFailsOnWrongKey(t *testing.T) {
	key := testKey()
	sealed, err := EncryptPayload([]byte("message"), key)
	require.NoError(t, err)

	wrongKey := make([]byte, keySize)
	copy(wrongKey, key)
	wrongKey[0] ^= 0xFF

	_, err = DecryptPayload(sealed, wrongKey)
	require.ErrorIs(t, err, ErrDecryptFailed)
}
