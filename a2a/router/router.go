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

// Package router is the C12 A2ARouter: tier- and sandbox-aware envelope
// delivery, direct/broadcast/capability-fanout, with a bounded routing
// log for diagnostics (spec §4.12).
package router

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/nova26/hypercore/a2a/envelope"
	"github.com/nova26/hypercore/a2a/registry"
	"github.com/nova26/hypercore/clock"
	"github.com/nova26/hypercore/observability"
)

// ErrAgentNotFound is returned when the target agent id is unknown.
var ErrAgentNotFound = errors.New("router: target agent not found")

// TierViolationError reports a send that the tier matrix forbids.
type TierViolationError struct {
	From, To registry.Tier
}

func (e *TierViolationError) Error() string {
	return "router: tier " + string(e.From) + " may not route to tier " + string(e.To) + " without escalation"
}

// SandboxViolationError reports mismatched sandbox ids between sender
// and target, both of which declared one.
type SandboxViolationError struct {
	SenderSandbox, TargetSandbox string
}

func (e *SandboxViolationError) Error() string {
	return "router: sandbox mismatch " + e.SenderSandbox + " != " + e.TargetSandbox
}

// ErrHopLimitExceeded is returned when a send's hop count exceeds the
// sender tier's maximum (spec §4.12 tier table).
var ErrHopLimitExceeded = errors.New("router: hop limit exceeded")

type tierRule struct {
	allowed        map[registry.Tier]bool
	maxHops        int
	needsEscalation map[registry.Tier]bool
}

// defaultMatrix implements the spec §4.12 tier table.
func defaultMatrix() map[registry.Tier]tierRule {
	return map[registry.Tier]tierRule{
		registry.TierL0: {
			allowed: set(registry.TierL0, registry.TierL1, registry.TierL2, registry.TierL3),
			maxHops: 5,
		},
		registry.TierL1: {
			allowed: set(registry.TierL0, registry.TierL1, registry.TierL2, registry.TierL3),
			maxHops: 4,
		},
		registry.TierL2: {
			allowed:         set(registry.TierL1, registry.TierL2, registry.TierL3),
			maxHops:         3,
			needsEscalation: set(registry.TierL0),
		},
		registry.TierL3: {
			allowed:         set(registry.TierL2, registry.TierL3),
			maxHops:         2,
			needsEscalation: set(registry.TierL0, registry.TierL1),
		},
	}
}

func set(tiers ...registry.Tier) map[registry.Tier]bool {
	out := make(map[registry.Tier]bool, len(tiers))
	for _, t := range tiers {
		out[t] = true
	}
	return out
}

// Handler processes a delivered envelope. An error is treated as a
// failed delivery for that one handler, but does not stop other
// handlers from running.
type Handler func(envelope.Envelope) error

// Unsubscribe removes a previously registered handler.
type Unsubscribe func()

// SendOptions augments Send with routing metadata not carried on the
// wire envelope itself.
type SendOptions struct {
	Hops      int  // current hop count, defaults to 0
	Escalate  bool // caller asserts escalation privilege for a tier needing it
}

// SendResult is returned by Send.
type SendResult struct {
	Delivered     bool
	TargetAgentID string
	ChannelType   string
	LatencyMs     int64
	Error         string
}

// LogEntry is one bounded routing-log record, for diagnostics.
type LogEntry struct {
	EnvelopeID string
	From, To   string
	Delivered  bool
	Error      string
	At         time.Time
}

const defaultRoutingLogSize = 1000

// Router is the C12 A2ARouter.
type Router struct {
	mu sync.Mutex

	reg    *registry.Registry
	matrix map[registry.Tier]tierRule
	clock  clock.Clock
	obs    *observability.Logger

	handlers map[string][]handlerEntry
	nextID   int

	routingLog *lru.Cache[string, LogEntry]
}

type handlerEntry struct {
	id int
	fn Handler
}

// Options configures a Router.
type Options struct {
	Clock         clock.Clock
	Obs           *observability.Logger
	RoutingLogCap int
}

// New constructs a Router over reg, using the spec §4.12 default tier
// matrix.
func New(reg *registry.Registry, opts Options) *Router {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	logCap := opts.RoutingLogCap
	if logCap <= 0 {
		logCap = defaultRoutingLogSize
	}
	logCache, _ := lru.New[string, LogEntry](logCap)
	return &Router{
		reg:        reg,
		matrix:     defaultMatrix(),
		clock:      c,
		obs:        opts.Obs,
		handlers:   make(map[string][]handlerEntry),
		routingLog: logCache,
	}
}

// RegisterHandler subscribes fn to every envelope routed to agentID.
func (r *Router) RegisterHandler(agentID string, fn Handler) Unsubscribe {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.handlers[agentID] = append(r.handlers[agentID], handlerEntry{id: id, fn: fn})
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		entries := r.handlers[agentID]
		for i, e := range entries {
			if e.id == id {
				r.handlers[agentID] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Send resolves env.To via the registry, enforces the tier and sandbox
// rules, and invokes every registered handler for the target (spec
// §4.12). env.To == "*" broadcasts to everyone but the sender.
func (r *Router) Send(env envelope.Envelope, opts SendOptions) (SendResult, error) {
	if err := envelope.Validate(env); err != nil {
		result := SendResult{TargetAgentID: env.To, Error: err.Error()}
		r.record(env, result)
		return result, err
	}
	if env.To == envelope.Broadcast {
		return r.broadcast(env, opts)
	}

	start := r.clock.Now()
	target, err := r.reg.GetByID(env.To)
	if err != nil {
		result := SendResult{TargetAgentID: env.To, Error: "not found"}
		r.record(env, result)
		return result, errors.Wrapf(ErrAgentNotFound, "to=%s", env.To)
	}

	if sender, senderErr := r.reg.GetByID(env.From); senderErr == nil {
		if err := r.checkTier(sender.Tier, target.Tier, opts); err != nil {
			result := SendResult{TargetAgentID: env.To, Error: err.Error()}
			r.record(env, result)
			return result, err
		}
		if err := checkSandbox(sender.SandboxID, target.SandboxID); err != nil {
			result := SendResult{TargetAgentID: env.To, Error: err.Error()}
			r.record(env, result)
			return result, err
		}
	}

	delivered := r.dispatch(env.To, env)
	latency := r.clock.Now().Sub(start)
	result := SendResult{
		Delivered:     delivered,
		TargetAgentID: env.To,
		ChannelType:   "direct",
		LatencyMs:     latency.Milliseconds(),
	}
	r.record(env, result)
	r.emitObs(env, result)
	return result, nil
}

func (r *Router) broadcast(env envelope.Envelope, opts SendOptions) (SendResult, error) {
	if err := envelope.Validate(env); err != nil {
		result := SendResult{TargetAgentID: env.To, Error: err.Error()}
		r.record(env, result)
		return result, err
	}
	start := r.clock.Now()
	delivered := false
	for _, id := range r.allAgentIDs() {
		if id == env.From {
			continue
		}
		if r.dispatch(id, env) {
			delivered = true
		}
	}
	latency := r.clock.Now().Sub(start)
	result := SendResult{Delivered: delivered, TargetAgentID: envelope.Broadcast, ChannelType: "broadcast", LatencyMs: latency.Milliseconds()}
	r.record(env, result)
	r.emitObs(env, result)
	return result, nil
}

// RouteByCapability fans a copy of env out to every agent advertising
// capability name (spec §4.12).
func (r *Router) RouteByCapability(env envelope.Envelope, capability string) []SendResult {
	var results []SendResult
	for _, card := range r.reg.FindByCapability(capability) {
		if card.ID == env.From {
			continue
		}
		copyEnv := env
		copyEnv.To = card.ID
		result, _ := r.Send(copyEnv, SendOptions{})
		results = append(results, result)
	}
	return results
}

func (r *Router) allAgentIDs() []string {
	cards := r.reg.ListAll()
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return ids
}

func (r *Router) checkTier(from, to registry.Tier, opts SendOptions) error {
	rule, ok := r.matrix[from]
	if !ok {
		return nil // unknown sender tier: no policy configured, permit
	}
	if opts.Hops > rule.maxHops {
		return ErrHopLimitExceeded
	}
	if rule.allowed[to] {
		return nil
	}
	if rule.needsEscalation[to] && opts.Escalate {
		return nil
	}
	return &TierViolationError{From: from, To: to}
}

func checkSandbox(senderSandbox, targetSandbox string) error {
	if senderSandbox == "" || targetSandbox == "" {
		return nil
	}
	if senderSandbox != targetSandbox {
		return &SandboxViolationError{SenderSandbox: senderSandbox, TargetSandbox: targetSandbox}
	}
	return nil
}

func (r *Router) dispatch(agentID string, env envelope.Envelope) bool {
	r.mu.Lock()
	entries := append([]handlerEntry(nil), r.handlers[agentID]...)
	r.mu.Unlock()

	delivered := false
	for _, e := range entries {
		if err := e.fn(env); err == nil {
			delivered = true
		}
	}
	return delivered
}

func (r *Router) record(env envelope.Envelope, result SendResult) {
	if r.routingLog == nil {
		return
	}
	r.routingLog.Add(env.ID, LogEntry{
		EnvelopeID: env.ID,
		From:       env.From,
		To:         env.To,
		Delivered:  result.Delivered,
		Error:      result.Error,
		At:         r.clock.Now(),
	})
}

func (r *Router) emitObs(env envelope.Envelope, result SendResult) {
	if r.obs == nil {
		return
	}
	if result.Delivered {
		r.obs.Record(observability.Event{Type: observability.EventMessageSent, AgentID: env.From, PeerID: result.TargetAgentID})
	} else {
		r.obs.Record(observability.Event{Type: observability.EventRoutingFailed, AgentID: env.From, PeerID: result.TargetAgentID, Err: result.Error})
	}
}

// RoutingLog is an alias of RoutingLogEntries.
func (r *Router) RoutingLog() []LogEntry {
	return r.RoutingLogEntries()
}

// RoutingLogEntries returns every currently retained routing-log entry,
// most-recently-added order is not guaranteed by the underlying LRU.
func (r *Router) RoutingLogEntries() []LogEntry {
	if r.routingLog == nil {
		return nil
	}
	out := make([]LogEntry, 0, r.routingLog.Len())
	for _, k := range r.routingLog.Keys() {
		if v, ok := r.routingLog.Peek(k); ok {
			out = append(out, v)
		}
	}
	return out
}
