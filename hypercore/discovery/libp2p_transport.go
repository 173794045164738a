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
	"encoding/json"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
)

// Libp2pTransport is the production Transport: topic announce/lookup is
// implemented as GossipSub publish/subscribe (spec §9 "Transport port
// abstracting a DHT"). Each Announce call publishes the peer's PeerInfo on
// the topic once; there is no periodic re-announcement. Lookup reads the
// locally maintained presence cache a background subscriber goroutine
// fills in. Leave only unsubscribes this transport from the topic: peers
// that already received this node's PeerInfo keep it in their presence
// caches and still return it from Lookup.
type Libp2pTransport struct {
	host host.Host
	ps   *pubsub.PubSub

	mu       sync.Mutex
	topics   map[string]*pubsub.Topic
	subs     map[string]*pubsub.Subscription
	presence map[string]map[string]PeerInfo // topic -> peer_id -> PeerInfo
	cancel   map[string]context.CancelFunc
}

// NewLibp2pTransport spins up a libp2p host and a GossipSub router on it.
// listenAddrs are multiaddr strings (e.g. "/ip4/0.0.0.0/tcp/0"); an empty
// list falls back to libp2p's own defaults.
func NewLibp2pTransport(ctx context.Context, listenAddrs ...string) (*Libp2pTransport, error) {
	opts := []libp2p.Option{}
	if len(listenAddrs) > 0 {
		addrs := make([]ma.Multiaddr, 0, len(listenAddrs))
		for _, raw := range listenAddrs {
			addr, err := ma.NewMultiaddr(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "discovery: parse listen addr %s", raw)
			}
			addrs = append(addrs, addr)
		}
		opts = append(opts, libp2p.ListenAddrs(addrs...))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "discovery: create libp2p host")
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, errors.Wrap(err, "discovery: create gossipsub router")
	}
	return &Libp2pTransport{
		host:     h,
		ps:       ps,
		topics:   make(map[string]*pubsub.Topic),
		subs:     make(map[string]*pubsub.Subscription),
		presence: make(map[string]map[string]PeerInfo),
		cancel:   make(map[string]context.CancelFunc),
	}, nil
}

func (t *Libp2pTransport) joinLocked(topic string) (*pubsub.Topic, *pubsub.Subscription, error) {
	if top, ok := t.topics[topic]; ok {
		return top, t.subs[topic], nil
	}
	top, err := t.ps.Join(topic)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "discovery: join topic %s", topic)
	}
	sub, err := top.Subscribe()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "discovery: subscribe topic %s", topic)
	}
	t.topics[topic] = top
	t.subs[topic] = sub
	t.presence[topic] = make(map[string]PeerInfo)

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel[topic] = cancel
	go t.consume(ctx, topic, sub)

	return top, sub, nil
}

func (t *Libp2pTransport) consume(ctx context.Context, topic string, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		var info PeerInfo
		if err := json.Unmarshal(msg.Data, &info); err != nil {
			continue
		}
		t.mu.Lock()
		if peers, ok := t.presence[topic]; ok {
			peers[info.PeerID] = info
		}
		t.mu.Unlock()
	}
}

func (t *Libp2pTransport) Announce(ctx context.Context, topic string, self PeerInfo) error {
	t.mu.Lock()
	top, _, err := t.joinLocked(topic)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	data, err := json.Marshal(self)
	if err != nil {
		return errors.Wrap(err, "discovery: marshal peer info")
	}
	return top.Publish(ctx, data)
}

func (t *Libp2pTransport) Lookup(_ context.Context, topic string, self PeerInfo) ([]PeerInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	peers := t.presence[topic]
	out := make([]PeerInfo, 0, len(peers))
	for id, p := range peers {
		if id == self.PeerID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (t *Libp2pTransport) Leave(_ context.Context, topic string, self PeerInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if peers, ok := t.presence[topic]; ok {
		delete(peers, self.PeerID)
	}
	if cancel, ok := t.cancel[topic]; ok {
		cancel()
		delete(t.cancel, topic)
	}
	if sub, ok := t.subs[topic]; ok {
		sub.Cancel()
		delete(t.subs, topic)
	}
	if top, ok := t.topics[topic]; ok {
		top.Close()
		delete(t.topics, topic)
	}
	return nil
}

func (t *Libp2pTransport) Close() error {
	t.mu.Lock()
	for topic := range t.cancel {
		t.cancel[topic]()
	}
	t.mu.Unlock()
	return t.host.Close()
}
