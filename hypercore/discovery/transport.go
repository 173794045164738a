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

// Package discovery is the C4 DiscoveryManager: topic announce/lookup
// over an abstract DHT, with peer lifecycle events (spec §4.4).
//
// The source's in-process DHT singleton becomes a Transport port injected
// at construction (spec §9): production wires Libp2pTransport, tests wire
// MemoryTransport.
package discovery

import "context"

// PeerInfo identifies a peer discovered on a topic.
type PeerInfo struct {
	PeerID  string
	Address string
}

// Transport abstracts the underlying DHT/gossip mechanism.
type Transport interface {
	// Announce advertises self as present on topic.
	Announce(ctx context.Context, topic string, self PeerInfo) error
	// Lookup returns every peer currently announced on topic, excluding
	// self.
	Lookup(ctx context.Context, topic string, self PeerInfo) ([]PeerInfo, error)
	// Leave withdraws self's announcement from topic.
	Leave(ctx context.Context, topic string, self PeerInfo) error
	// Close releases any resources the transport holds (connections,
	// subscriptions).
	Close() error
}
