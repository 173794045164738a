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

// Package access is the C8 AccessControl component: ACL, payload
// encryption, Ed25519 keys, discovery-key derivation, and
// challenge-response peer authentication (spec §4.8).
package access

import (
	"sync"
	"time"

	"github.com/nova26/hypercore/clock"
)

// Mode is an ACL entry's access level.
type Mode string

const (
	ModeReadOnly  Mode = "read-only"
	ModeReadWrite Mode = "read-write"
	ModeNoAccess  Mode = "no-access"
)

// Access is what a caller is requesting.
type Access string

const (
	AccessRead  Access = "read"
	AccessWrite Access = "write"
)

// Wildcard is the peer id matching any peer absent an exact entry.
const Wildcard = "*"

// Origin qualifies where a request originates, driving the default mode
// when no ACL entry exists (spec §4.8: "origin-local is read-write,
// origin-remote is read-only").
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// CheckResult is returned by Check.
type CheckResult struct {
	Allowed bool
	Mode    Mode
}

type policy struct {
	mode      Mode
	expiresAt *time.Time
}

type storeACL struct {
	entries map[string]policy // peer_id -> policy, including Wildcard
}

// ACL is the per-store access table.
type ACL struct {
	mu    sync.Mutex
	clock clock.Clock
	stores map[string]*storeACL
}

// NewACL constructs an empty ACL.
func NewACL(c clock.Clock) *ACL {
	if c == nil {
		c = clock.System{}
	}
	return &ACL{clock: c, stores: make(map[string]*storeACL)}
}

// Grant installs or replaces a policy for (store, peer). A nil
// expiresAt means "never expires".
func (a *ACL) Grant(store, peer string, mode Mode, expiresAt *time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.stores[store]
	if !ok {
		s = &storeACL{entries: make(map[string]policy)}
		a.stores[store] = s
	}
	s.entries[peer] = policy{mode: mode, expiresAt: expiresAt}
}

// Revoke removes any policy for (store, peer).
func (a *ACL) Revoke(store, peer string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.stores[store]; ok {
		delete(s.entries, peer)
	}
}

// List returns every non-expired policy for store, keyed by peer id.
func (a *ACL) List(store string) map[string]Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]Mode)
	s, ok := a.stores[store]
	if !ok {
		return out
	}
	now := a.clock.Now()
	for peer, p := range s.entries {
		if p.expiresAt != nil && !p.expiresAt.After(now) {
			continue
		}
		out[peer] = p.mode
	}
	return out
}

// ClearStore removes every policy for store.
func (a *ACL) ClearStore(store string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.stores, store)
}

// Check resolves whether peer may perform access against store, given
// origin for the default when no entry matches. Exact peer match
// overrides a wildcard entry; an expired entry behaves as absent (spec
// §4.8).
func (a *ACL) Check(store, peer string, origin Origin, access Access) CheckResult {
	a.mu.Lock()
	s := a.stores[store]
	a.mu.Unlock()

	mode, found := a.resolve(s, peer)
	if !found {
		mode = defaultMode(origin)
	}
	return CheckResult{Allowed: allows(mode, access), Mode: mode}
}

func (a *ACL) resolve(s *storeACL, peer string) (Mode, bool) {
	if s == nil {
		return "", false
	}
	now := a.clock.Now()

	if p, ok := s.entries[peer]; ok && !expired(p, now) {
		return p.mode, true
	}
	if p, ok := s.entries[Wildcard]; ok && !expired(p, now) {
		return p.mode, true
	}
	return "", false
}

func expired(p policy, now time.Time) bool {
	return p.expiresAt != nil && !p.expiresAt.After(now)
}

func defaultMode(origin Origin) Mode {
	if origin == OriginLocal {
		return ModeReadWrite
	}
	return ModeReadOnly
}

func allows(mode Mode, access Access) bool {
	switch mode {
	case ModeReadWrite:
		return true
	case ModeReadOnly:
		return access == AccessRead
	default:
		return false
	}
}
