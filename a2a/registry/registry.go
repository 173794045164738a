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

// Package registry is the C10 AgentRegistry: a namespaced store of
// AgentCards with revision tracking and capability/tier search (spec
// §4.10). Not to be confused with hypercore/registry (the C2
// LogRegistry) — the two are deliberately separate components.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/nova26/hypercore/clock"
	"github.com/nova26/hypercore/hypercore/discovery"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Tier is an agent's privilege tier (spec §4.12 routing matrix).
type Tier string

const (
	TierL0 Tier = "L0"
	TierL1 Tier = "L1"
	TierL2 Tier = "L2"
	TierL3 Tier = "L3"
)

// Origin distinguishes a locally-registered card from one learned via
// discovery or a remote registry merge.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// AgentCard is the spec §3 AgentCard.
type AgentCard struct {
	ID              string
	Name            string
	Tier            Tier
	Capabilities    []string
	Endpoints       []string
	SandboxID       string
	Revision        uint32
	Origin          Origin
	RegisteredAt    time.Time
	UpdatedAt       time.Time
	ProtocolVersion string
}

// PartialCard carries the fields a caller supplies to Register or
// MergeRemoteCard; zero values mean "leave unchanged" on update.
type PartialCard struct {
	ID              string
	Name            string
	Tier            Tier
	Capabilities    []string
	Endpoints       []string
	SandboxID       string
	ProtocolVersion string
	Revision        uint32 // only meaningful for MergeRemoteCard
}

// Stats is returned by GetStats.
type Stats struct {
	Total  int
	Local  int
	Remote int
	ByTier map[Tier]int
}

// ErrNotFound is returned when no card matches the requested id.
var ErrNotFound = errors.New("registry: agent not found")

// Registry is the C10 AgentRegistry.
type Registry struct {
	mu sync.Mutex

	clock clock.Clock
	cards map[string]AgentCard

	discoveryMgr   *discovery.Manager
	discoveryTopic string
}

// New constructs an empty Registry.
func New(c clock.Clock) *Registry {
	if c == nil {
		c = clock.System{}
	}
	return &Registry{clock: c, cards: make(map[string]AgentCard)}
}

// Register creates or updates a locally-owned card, bumping revision on
// an existing id (spec §4.10).
func (r *Registry) Register(partial PartialCard) AgentCard {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	existing, ok := r.cards[partial.ID]
	card := mergeFields(existing, partial)
	card.Origin = OriginLocal
	card.UpdatedAt = now
	if ok {
		card.Revision = existing.Revision + 1
		card.RegisteredAt = existing.RegisteredAt
	} else {
		card.Revision = 1
		card.RegisteredAt = now
	}
	r.cards[partial.ID] = card
	return card
}

// MergeRemoteCard merges a card learned from a peer. Per spec §4.10,
// revision becomes max(local+1, remote+1) even when the remote fields
// are stale, and the result is always tagged origin=remote.
func (r *Registry) MergeRemoteCard(partial PartialCard) AgentCard {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	existing, ok := r.cards[partial.ID]
	card := mergeFields(existing, partial)
	card.Origin = OriginRemote
	card.UpdatedAt = now

	localNext := uint32(1)
	if ok {
		localNext = existing.Revision + 1
		card.RegisteredAt = existing.RegisteredAt
	} else {
		card.RegisteredAt = now
	}
	remoteNext := partial.Revision + 1
	card.Revision = maxU32(localNext, remoteNext)

	r.cards[partial.ID] = card
	return card
}

func mergeFields(existing AgentCard, partial PartialCard) AgentCard {
	card := existing
	card.ID = partial.ID
	if partial.Name != "" {
		card.Name = partial.Name
	}
	if partial.Tier != "" {
		card.Tier = partial.Tier
	}
	if partial.Capabilities != nil {
		card.Capabilities = partial.Capabilities
	}
	if partial.Endpoints != nil {
		card.Endpoints = partial.Endpoints
	}
	if partial.SandboxID != "" {
		card.SandboxID = partial.SandboxID
	}
	if partial.ProtocolVersion != "" {
		card.ProtocolVersion = partial.ProtocolVersion
	}
	return card
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// Unregister removes a card.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cards, id)
}

// GetByID returns the card for id.
func (r *Registry) GetByID(id string) (AgentCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	card, ok := r.cards[id]
	if !ok {
		return AgentCard{}, errors.Wrapf(ErrNotFound, "id=%s", id)
	}
	return card, nil
}

// FindByCapability returns every card advertising name, sorted by id for
// deterministic iteration.
func (r *Registry) FindByCapability(name string) []AgentCard {
	return r.filter(func(c AgentCard) bool {
		for _, cap := range c.Capabilities {
			if cap == name {
				return true
			}
		}
		return false
	})
}

// FindByTier returns every card at tier t, sorted by id.
func (r *Registry) FindByTier(t Tier) []AgentCard {
	return r.filter(func(c AgentCard) bool { return c.Tier == t })
}

// ListAll returns every card, sorted by id.
func (r *Registry) ListAll() []AgentCard {
	return r.filter(func(AgentCard) bool { return true })
}

// GetLocalCards returns every origin=local card, sorted by id.
func (r *Registry) GetLocalCards() []AgentCard {
	return r.filter(func(c AgentCard) bool { return c.Origin == OriginLocal })
}

// GetRemoteCards returns every origin=remote card, sorted by id.
func (r *Registry) GetRemoteCards() []AgentCard {
	return r.filter(func(c AgentCard) bool { return c.Origin == OriginRemote })
}

func (r *Registry) filter(pred func(AgentCard) bool) []AgentCard {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AgentCard
	for _, c := range r.cards {
		if pred(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetStats summarizes the registry's current contents.
func (r *Registry) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := Stats{ByTier: make(map[Tier]int)}
	for _, c := range r.cards {
		stats.Total++
		if c.Origin == OriginLocal {
			stats.Local++
		} else {
			stats.Remote++
		}
		stats.ByTier[c.Tier]++
	}
	return stats
}

// Serialize encodes every card to JSON for snapshot/restore.
func (r *Registry) Serialize() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cards := make([]AgentCard, 0, len(r.cards))
	for _, c := range r.cards {
		cards = append(cards, c)
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
	return json.Marshal(cards)
}

// Snapshot is an alias of Serialize.
func (r *Registry) Snapshot() ([]byte, error) {
	return r.Serialize()
}

// Restore is an alias of Deserialize.
func (r *Registry) Restore(data []byte) error {
	return r.Deserialize(data)
}

// Deserialize replaces the registry's contents with a previously
// Serialize-d snapshot.
func (r *Registry) Deserialize(data []byte) error {
	var cards []AgentCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return errors.Wrap(err, "registry: decode snapshot")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards = make(map[string]AgentCard, len(cards))
	for _, c := range cards {
		r.cards[c.ID] = c
	}
	return nil
}

// EnableDiscovery records the DiscoveryManager and topic that Announce
// uses. Only this node's presence is announced: card contents are not
// published, and remote cards found on topic are not merged into the
// registry.
func (r *Registry) EnableDiscovery(mgr *discovery.Manager, topic string) {
	r.mu.Lock()
	r.discoveryMgr = mgr
	r.discoveryTopic = topic
	r.mu.Unlock()
}

// Announce advertises this node's presence on the configured discovery
// topic. It is a no-op if EnableDiscovery was never called.
func (r *Registry) Announce(ctx context.Context) error {
	r.mu.Lock()
	mgr, topic := r.discoveryMgr, r.discoveryTopic
	r.mu.Unlock()
	if mgr == nil {
		return nil
	}
	return mgr.Announce(ctx, topic)
}
