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

// Package replication is the C3 ReplicationManager: bidirectional entry
// transfer between peers with a Merkle-root convergence check.
package replication

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nova26/hypercore/clock"
	"github.com/nova26/hypercore/hypercore/logstore"
	"github.com/nova26/hypercore/observability"
)

// ErrPeerNotFound is returned when an operation names an unregistered peer.
var ErrPeerNotFound = errors.New("replication: peer not found")

// Peer is the C3 ReplicationPeer (spec §3). Counters only ever increase.
type Peer struct {
	PeerID          string
	Address         string
	ConnectedAt     time.Time
	BytesSent       int64
	BytesReceived   int64
	LogsReplicated  []string
	IsActive        bool
	LastSyncedSeq   map[string]uint64 // log name -> seq
}

// LogResult is the per-log outcome of a Sync call (spec §4.3).
type LogResult struct {
	LogName        string
	EntriesSent    int
	EntriesReceived int
	BytesSent      int64
	BytesReceived  int64
	MerkleValid    bool
	LocalRoot      []byte
	RemoteRoot     []byte
	SyncDuration   time.Duration
}

// Manager is the C3 ReplicationManager.
type Manager struct {
	mu sync.Mutex

	stores  map[string]*logstore.LogStore
	peers   map[string]*Peer
	enabled bool

	clock clock.Clock
	obs   *observability.Logger
}

// Options configures a Manager.
type Options struct {
	Clock clock.Clock
	Obs   *observability.Logger
}

// New constructs a disabled Manager; call Enable to allow Sync.
func New(opts Options) *Manager {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	return &Manager{
		stores: make(map[string]*logstore.LogStore),
		peers:  make(map[string]*Peer),
		clock:  c,
		obs:    opts.Obs,
	}
}

// RegisterStore makes a LogStore eligible for replication under name.
func (m *Manager) RegisterStore(name string, log *logstore.LogStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[name] = log
}

// AddPeer registers a peer, creating its accounting record.
func (m *Manager) AddPeer(peerID, address string) *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Peer{
		PeerID:        peerID,
		Address:       address,
		ConnectedAt:   m.clock.Now(),
		IsActive:      true,
		LastSyncedSeq: make(map[string]uint64),
	}
	m.peers[peerID] = p
	return p
}

// RemovePeer deactivates and drops a peer's accounting record.
func (m *Manager) RemovePeer(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.peers[peerID]; ok {
		p.IsActive = false
	}
	delete(m.peers, peerID)
}

// Enable/Disable gate Sync.
func (m *Manager) Enable()  { m.mu.Lock(); m.enabled = true; m.mu.Unlock() }
func (m *Manager) Disable() { m.mu.Lock(); m.enabled = false; m.mu.Unlock() }

// Peer returns the accounting record for peerID, if known.
func (m *Manager) Peer(peerID string) (*Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[peerID]
	return p, ok
}

// sharedStoreNames returns the intersection of both managers' registered
// store names, sorted — a fixed order avoids lock-order deadlocks when a
// sync acquires both sides' stores (spec §5).
func (m *Manager) sharedStoreNames(other *Manager) []string {
	m.mu.Lock()
	names := make(map[string]struct{}, len(m.stores))
	for n := range m.stores {
		names[n] = struct{}{}
	}
	m.mu.Unlock()

	other.mu.Lock()
	defer other.mu.Unlock()
	shared := make([]string, 0, len(names))
	for n := range other.stores {
		if _, ok := names[n]; ok {
			shared = append(shared, n)
		}
	}
	sort.Strings(shared)
	return shared
}

// Sync transfers missing tail entries between this manager and other for
// every log name present in both, in both directions, and reports a
// per-log result (spec §4.3, §6).
func (m *Manager) Sync(peerID string, other *Manager) ([]LogResult, error) {
	m.mu.Lock()
	enabled := m.enabled
	m.mu.Unlock()
	if !enabled {
		return nil, errors.New("replication: manager is disabled")
	}

	peer, ok := m.Peer(peerID)
	if !ok {
		return nil, errors.Wrapf(ErrPeerNotFound, "peer=%s", peerID)
	}

	names := m.sharedStoreNames(other)
	results := make([]LogResult, 0, len(names))
	for _, name := range names {
		start := m.clock.Now()
		res := m.syncLog(peer, name, other)
		res.SyncDuration = m.clock.Now().Sub(start)
		results = append(results, res)
		m.recordSyncEvent(name, res)
	}
	return results, nil
}

func (m *Manager) syncLog(peer *Peer, name string, other *Manager) LogResult {
	m.mu.Lock()
	local := m.stores[name]
	m.mu.Unlock()

	other.mu.Lock()
	remote := other.stores[name]
	other.mu.Unlock()

	res := LogResult{LogName: name}

	localLen := local.Length()
	remoteLen := remote.Length()

	// local behind remote: pull the remote tail in.
	if localLen < remoteLen {
		entries := remote.ExportEntries(localLen)
		added, _ := local.ImportEntries(entries)
		res.EntriesReceived = added
		for _, e := range entries[:minInt(added, len(entries))] {
			res.BytesReceived += int64(e.ByteLength)
		}
	}
	// remote behind local: push the local tail out.
	localLenAfterPull := local.Length()
	if remoteLen < localLenAfterPull {
		entries := local.ExportEntries(remoteLen)
		added, _ := remote.ImportEntries(entries)
		res.EntriesSent = added
		for _, e := range entries[:minInt(added, len(entries))] {
			res.BytesSent += int64(e.ByteLength)
		}
	}

	res.LocalRoot = local.Root()
	res.RemoteRoot = remote.Root()
	res.MerkleValid = bytes.Equal(res.LocalRoot, res.RemoteRoot)

	m.mu.Lock()
	peer.BytesSent += res.BytesSent
	peer.BytesReceived += res.BytesReceived
	if res.EntriesSent > 0 || res.EntriesReceived > 0 {
		peer.LastSyncedSeq[name] = local.Length() - 1
		peer.LogsReplicated = appendIfMissing(peer.LogsReplicated, name)
	}
	m.mu.Unlock()

	return res
}

func (m *Manager) recordSyncEvent(name string, res LogResult) {
	if m.obs == nil {
		return
	}
	if res.EntriesSent > 0 {
		m.obs.Record(observability.Event{Type: observability.EventReplicate, LogName: name, Bytes: int(res.BytesSent), Direction: observability.DirectionSent})
	}
	if res.EntriesReceived > 0 {
		m.obs.Record(observability.Event{Type: observability.EventReplicate, LogName: name, Bytes: int(res.BytesReceived), Direction: observability.DirectionReceived})
	}
	if !res.MerkleValid {
		m.obs.Record(observability.Event{Type: observability.EventError, LogName: name, Err: "merkle roots diverged after sync"})
	}
}

func appendIfMissing(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
