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

// Package nova26 is the C18 Facade: the single construction function for
// the A2A layer, wiring the agent registry, router, channel manager, MCP
// bridge, and observability logger, plus factories for per-agent
// envelope builders, negotiators, and CRDT-sync channels (spec §4.18).
//
// The Facade holds strong references to every component it wires;
// components reference each other only through the Facade's lookups
// (registry ids, router handler registration), never through owning
// pointers back to the Facade, so no reference cycle is formed.
package nova26

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nova26/hypercore/a2a/channel"
	"github.com/nova26/hypercore/a2a/crdtsync"
	"github.com/nova26/hypercore/a2a/envelope"
	"github.com/nova26/hypercore/a2a/mcp"
	"github.com/nova26/hypercore/a2a/negotiator"
	"github.com/nova26/hypercore/a2a/registry"
	"github.com/nova26/hypercore/a2a/router"
	"github.com/nova26/hypercore/a2a/swarm"
	"github.com/nova26/hypercore/clock"
	"github.com/nova26/hypercore/observability"
)

// Config is the embedding-host configuration object from spec.md §6.
// Loading it from a file or environment is explicitly out of scope for
// the core; callers populate it however they like and pass it to New.
type Config struct {
	StoragePath             string
	MaxPayloadBytes         int
	ReplicationEnabled      bool
	DiscoveryBootstrap      []string
	ACLDefaultRemote        string
	ObservabilityMaxEvents  int
	RouterDefaultTimeoutMs  int64
	RouterTierEnforcement   bool
	RouterSandboxEnforcement bool
}

// DefaultConfig returns the spec.md §6 documented defaults.
func DefaultConfig() Config {
	return Config{
		StoragePath:              ".nova/hypercore",
		MaxPayloadBytes:          1048576,
		ReplicationEnabled:       false,
		DiscoveryBootstrap:       nil,
		ACLDefaultRemote:         "read-only",
		ObservabilityMaxEvents:   500,
		RouterDefaultTimeoutMs:   0,
		RouterTierEnforcement:    true,
		RouterSandboxEnforcement: true,
	}
}

// Layer is the wired A2A layer returned by New: the spec §4.18 result of
// create_a2a_layer.
type Layer struct {
	CoordinatorAgentID string
	Config             Config

	Registry  *registry.Registry
	Router    *router.Router
	Channels  *channel.Manager
	MCP       *mcp.Bridge
	Obs       *observability.Logger
	Swarm     *swarm.Coordinator

	clock clock.Clock
}

// Options lets a caller override the clock and zap logger New uses; a
// zero Options uses clock.System{} and a no-op zap logger, matching the
// rest of the codebase's injectable-clock convention.
type Options struct {
	Clock clock.Clock
	Zap   *zap.Logger
	Config
}

// New is the spec §4.18 create_a2a_layer: constructs the registry,
// router (wrapped so every send emits an observability event), channel
// manager, MCP bridge, and observability logger for coordinatorAgentID.
func New(coordinatorAgentID string, opts Options) *Layer {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	cfg := opts.Config
	if cfg.ObservabilityMaxEvents == 0 {
		cfg = DefaultConfig()
	}

	obs := observability.New(observability.Options{
		MaxEvents: cfg.ObservabilityMaxEvents,
		Clock:     c,
		Zap:       opts.Zap,
	})

	reg := registry.New(c)
	r := router.New(reg, router.Options{Clock: c, Obs: obs})
	channels := channel.NewManager(channel.Options{Clock: c})
	mcpBridge := mcp.New(c)
	swarmCoordinator := swarm.New(coordinatorAgentID, reg, r, c)

	reg.Register(registry.PartialCard{
		ID:   coordinatorAgentID,
		Name: coordinatorAgentID,
		Tier: registry.TierL0,
	})

	return &Layer{
		CoordinatorAgentID: coordinatorAgentID,
		Config:             cfg,
		Registry:           reg,
		Router:             r,
		Channels:           channels,
		MCP:                mcpBridge,
		Obs:                obs,
		Swarm:              swarmCoordinator,
		clock:              c,
	}
}

// NewEnvelope returns a factory that stamps out envelopes from agentID,
// filling in id and timestamp from the Layer's clock (spec §4.18 "per-
// agent envelope builders").
func (l *Layer) NewEnvelope(agentID string) func(to string, typ envelope.Type, payload map[string]interface{}) envelope.Envelope {
	return func(to string, typ envelope.Type, payload map[string]interface{}) envelope.Envelope {
		return envelope.Envelope{
			ID:          uuid.NewString(),
			Type:        typ,
			From:        agentID,
			To:          to,
			Payload:     payload,
			TimestampMs: l.clock.Now().UnixMilli(),
		}
	}
}

// NewNegotiator returns a TaskNegotiator scoped to agentID, routed
// through this Layer's Router.
func (l *Layer) NewNegotiator(agentID string) *negotiator.Negotiator {
	return negotiator.New(agentID, l.Router, l.clock)
}

// NewCRDTSync returns a CRDTSyncChannel scoped to agentID and logName,
// routed through this Layer's Router.
func (l *Layer) NewCRDTSync(agentID, logName string) *crdtsync.Channel {
	return crdtsync.New(agentID, logName, l.Router, l.clock)
}

// Send routes env through the Layer's Router; identical to calling
// l.Router.Send directly, kept on Layer for callers that only hold onto
// the facade.
func (l *Layer) Send(env envelope.Envelope, opts router.SendOptions) (router.SendResult, error) {
	return l.Router.Send(env, opts)
}
