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

package discovery

import (
	"context"
	"sync"
)

// EventKind enumerates DiscoveryManager lifecycle events.
type EventKind string

const (
	EventPeerAdded      EventKind = "peer-added"
	EventPeerRemoved    EventKind = "peer-removed"
	EventLookupComplete EventKind = "lookup-complete"
)

// Event is delivered to listeners registered via On.
type Event struct {
	Kind  EventKind
	Topic string
	Peer  PeerInfo
}

// Listener receives discovery events. Listeners are unordered (spec §4.4).
type Listener func(Event)

// Unsubscribe removes a previously registered listener.
type Unsubscribe func()

// Manager is the C4 DiscoveryManager.
type Manager struct {
	mu sync.Mutex

	self      PeerInfo
	transport Transport
	known     map[string]map[string]PeerInfo // topic -> peer_id -> PeerInfo, our local view
	listeners map[int]Listener
	nextID    int
}

// New constructs a Manager identified as self, backed by transport.
func New(self PeerInfo, transport Transport) *Manager {
	return &Manager{
		self:      self,
		transport: transport,
		known:     make(map[string]map[string]PeerInfo),
		listeners: make(map[int]Listener),
	}
}

// Announce advertises self on topic and refreshes the local peer view.
func (m *Manager) Announce(ctx context.Context, topic string) error {
	if err := m.transport.Announce(ctx, topic, m.self); err != nil {
		return err
	}
	_, err := m.Lookup(ctx, topic)
	return err
}

// Lookup returns every peer currently announced on topic, excluding self,
// diffing against the previously known set to fire peer-added /
// peer-removed / lookup-complete events.
func (m *Manager) Lookup(ctx context.Context, topic string) ([]PeerInfo, error) {
	peers, err := m.transport.Lookup(ctx, topic, m.self)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	prev := m.known[topic]
	next := make(map[string]PeerInfo, len(peers))
	var added, removed []PeerInfo
	for _, p := range peers {
		next[p.PeerID] = p
		if _, existed := prev[p.PeerID]; !existed {
			added = append(added, p)
		}
	}
	for id, p := range prev {
		if _, still := next[id]; !still {
			removed = append(removed, p)
		}
	}
	m.known[topic] = next
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	for _, p := range added {
		m.emit(listeners, Event{Kind: EventPeerAdded, Topic: topic, Peer: p})
	}
	for _, p := range removed {
		m.emit(listeners, Event{Kind: EventPeerRemoved, Topic: topic, Peer: p})
	}
	m.emit(listeners, Event{Kind: EventLookupComplete, Topic: topic})

	return peers, nil
}

// Leave withdraws self's announcement from topic and drops its local view.
func (m *Manager) Leave(ctx context.Context, topic string) error {
	if err := m.transport.Leave(ctx, topic, m.self); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.known, topic)
	m.mu.Unlock()
	return nil
}

// GetPeers returns every peer known across all announced topics,
// deduplicated by peer id.
func (m *Manager) GetPeers() []PeerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]PeerInfo)
	for _, peers := range m.known {
		for id, p := range peers {
			seen[id] = p
		}
	}
	out := make([]PeerInfo, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	return out
}

// GetTopics returns every topic this manager has announced or looked up
// and has not since left.
func (m *Manager) GetTopics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := make([]string, 0, len(m.known))
	for t := range m.known {
		topics = append(topics, t)
	}
	return topics
}

// On registers a listener and returns its Unsubscribe.
func (m *Manager) On(fn Listener) Unsubscribe {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Destroy leaves every known topic and releases the transport.
func (m *Manager) Destroy() error {
	m.mu.Lock()
	topics := make([]string, 0, len(m.known))
	for t := range m.known {
		topics = append(topics, t)
	}
	m.mu.Unlock()

	for _, t := range topics {
		_ = m.Leave(context.Background(), t)
	}
	return m.transport.Close()
}

func (m *Manager) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		out = append(out, fn)
	}
	return out
}

func (m *Manager) emit(listeners []Listener, ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}
