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
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
)

// KeyPair is an Ed25519 identity. It satisfies logstore.Signer
// structurally so a LogStore can sign entries without logstore ever
// importing this package (spec §9 design note).
type KeyPair struct {
	PublicKeyBytes  ed25519.PublicKey
	PrivateKeyBytes ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh Ed25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, errors.Wrap(err, "access: generate key pair")
	}
	return KeyPair{PublicKeyBytes: pub, PrivateKeyBytes: priv}, nil
}

// PublicKeyHex returns the hex-encoded public key.
func (k KeyPair) PublicKeyHex() string { return hex.EncodeToString(k.PublicKeyBytes) }

// PrivateKeyHex returns the hex-encoded private key.
func (k KeyPair) PrivateKeyHex() string { return hex.EncodeToString(k.PrivateKeyBytes) }

// Sign implements logstore.Signer.
func (k KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(k.PrivateKeyBytes, message)
}

// PublicKey implements logstore.Signer.
func (k KeyPair) PublicKey() []byte {
	return []byte(k.PublicKeyBytes)
}

// SignChallenge signs an arbitrary challenge message with sk (hex).
func SignChallenge(message []byte, skHex string) (string, error) {
	sk, err := hex.DecodeString(skHex)
	if err != nil || len(sk) != ed25519.PrivateKeySize {
		return "", errors.New("access: malformed private key")
	}
	sig := ed25519.Sign(ed25519.PrivateKey(sk), message)
	return hex.EncodeToString(sig), nil
}

// VerifyChallenge verifies sigHex over message against pkHex. It never
// panics or returns an error: malformed hex or a mismatched signature
// both simply report false (spec §4.8).
func VerifyChallenge(message []byte, sigHex, pkHex string) bool {
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	pk, err := hex.DecodeString(pkHex)
	if err != nil || len(pk) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pk), message, sig)
}
