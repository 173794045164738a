// Copyright 2026 The Nova26 Authors
// This file is part of Nova26.
//
// Nova26 is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Nova26 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Nova26. If not, see <http://www.gnu.org/licenses/>.

package access

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrDecryptFailed is returned when decryption fails authentication,
// whether from tampering or a wrong key.
var ErrDecryptFailed = errors.New("access: decryption failed")

const keySize = 32
const nonceSize = 24

// SealedPayload is the spec §4.8 {iv, ciphertext, tag} triple. secretbox
// appends its 16-byte Poly1305 tag to the ciphertext, so Tag is derived
// rather than stored separately.
type SealedPayload struct {
	IV         string // hex-encoded 24-byte nonce
	Ciphertext string // hex-encoded, tag included
}

// EncryptPayload seals value under key (must be 32 bytes), generating a
// fresh random nonce every call.
func EncryptPayload(value, key []byte) (SealedPayload, error) {
	if len(key) != keySize {
		return SealedPayload{}, errors.Errorf("access: key must be %d bytes, got %d", keySize, len(key))
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return SealedPayload{}, errors.Wrap(err, "access: generate nonce")
	}
	var keyArr [keySize]byte
	copy(keyArr[:], key)

	sealed := secretbox.Seal(nil, value, &nonce, &keyArr)
	return SealedPayload{
		IV:         hex.EncodeToString(nonce[:]),
		Ciphertext: hex.EncodeToString(sealed),
	}, nil
}

// DecryptPayload opens a SealedPayload, failing on tampering or a wrong
// key.
func DecryptPayload(sealed SealedPayload, key []byte) ([]byte, error) {
	if len(key) != keySize {
		return nil, errors.Errorf("access: key must be %d bytes, got %d", keySize, len(key))
	}
	nonceBytes, err := hex.DecodeString(sealed.IV)
	if err != nil || len(nonceBytes) != nonceSize {
		return nil, ErrDecryptFailed
	}
	ciphertext, err := hex.DecodeString(sealed.Ciphertext)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], nonceBytes)
	var keyArr [keySize]byte
	copy(keyArr[:], key)

	opened, ok := secretbox.Open(nil, ciphertext, &nonce, &keyArr)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return opened, nil
}
