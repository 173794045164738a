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

// Broker is the shared state multiple MemoryTransport instances in the
// same process announce into and look up from — the deterministic
// in-memory stand-in for a real DHT (spec §9 design note).
type Broker struct {
	mu     sync.Mutex
	topics map[string]map[string]PeerInfo // topic -> peer_id -> PeerInfo
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string]map[string]PeerInfo)}
}

// MemoryTransport is the default/test Transport: an in-process map backed
// by a shared Broker.
type MemoryTransport struct {
	broker *Broker
}

// NewMemoryTransport wires a MemoryTransport to broker. Pass the same
// Broker to every peer in a test to simulate a shared DHT.
func NewMemoryTransport(broker *Broker) *MemoryTransport {
	if broker == nil {
		broker = NewBroker()
	}
	return &MemoryTransport{broker: broker}
}

func (t *MemoryTransport) Announce(_ context.Context, topic string, self PeerInfo) error {
	t.broker.mu.Lock()
	defer t.broker.mu.Unlock()
	peers, ok := t.broker.topics[topic]
	if !ok {
		peers = make(map[string]PeerInfo)
		t.broker.topics[topic] = peers
	}
	peers[self.PeerID] = self
	return nil
}

func (t *MemoryTransport) Lookup(_ context.Context, topic string, self PeerInfo) ([]PeerInfo, error) {
	t.broker.mu.Lock()
	defer t.broker.mu.Unlock()
	peers := t.broker.topics[topic]
	out := make([]PeerInfo, 0, len(peers))
	for id, p := range peers {
		if id == self.PeerID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (t *MemoryTransport) Leave(_ context.Context, topic string, self PeerInfo) error {
	t.broker.mu.Lock()
	defer t.broker.mu.Unlock()
	if peers, ok := t.broker.topics[topic]; ok {
		delete(peers, self.PeerID)
	}
	return nil
}

func (t *MemoryTransport) Close() error { return nil }
