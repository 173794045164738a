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
	"sync"

	"github.com/pkg/errors"
)

const challengeSize = 32

type challengeState struct {
	challenge     []byte
	claimedPubKey string
}

// PeerAuthenticator issues challenges and verifies challenge-response
// signatures, tracking which peers have successfully authenticated
// (spec §4.8).
type PeerAuthenticator struct {
	mu sync.Mutex

	pending       map[string]challengeState // peer_id -> outstanding challenge
	authenticated map[string]string         // peer_id -> verified public key hex
}

// NewPeerAuthenticator constructs an empty PeerAuthenticator.
func NewPeerAuthenticator() *PeerAuthenticator {
	return &PeerAuthenticator{
		pending:       make(map[string]challengeState),
		authenticated: make(map[string]string),
	}
}

// IssueChallenge generates a fresh random challenge for peer, recording
// its claimed public key for later verification.
func (p *PeerAuthenticator) IssueChallenge(peerID, claimedPubKeyHex string) ([]byte, error) {
	buf := make([]byte, challengeSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(err, "access: generate challenge")
	}
	p.mu.Lock()
	p.pending[peerID] = challengeState{challenge: buf, claimedPubKey: claimedPubKeyHex}
	p.mu.Unlock()
	return buf, nil
}

// VerifyResponse checks sigHex over the outstanding challenge for peer
// against its claimed public key. On success, peer is marked
// authenticated and the pending challenge is consumed.
func (p *PeerAuthenticator) VerifyResponse(peerID, sigHex string) bool {
	p.mu.Lock()
	state, ok := p.pending[peerID]
	p.mu.Unlock()
	if !ok {
		return false
	}

	if !VerifyChallenge(state.challenge, sigHex, state.claimedPubKey) {
		return false
	}

	p.mu.Lock()
	delete(p.pending, peerID)
	p.authenticated[peerID] = state.claimedPubKey
	p.mu.Unlock()
	return true
}

// IsAuthenticated reports whether peer has a currently valid
// authentication.
func (p *PeerAuthenticator) IsAuthenticated(peerID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.authenticated[peerID]
	return ok
}

// AuthenticatedKey returns the verified public key hex for peer, if any.
func (p *PeerAuthenticator) AuthenticatedKey(peerID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key, ok := p.authenticated[peerID]
	return key, ok
}

// Revoke removes any authentication state for peer, requiring a fresh
// challenge-response before it is trusted again.
func (p *PeerAuthenticator) Revoke(peerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, peerID)
	delete(p.authenticated, peerID)
}
