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

// Package negotiator is the C14 TaskNegotiator: per-agent proposal /
// accept / reject threads correlated by id, with deadline timers that
// resolve a still-pending proposal to timed-out (spec §4.14).
package negotiator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nova26/hypercore/a2a/envelope"
	"github.com/nova26/hypercore/a2a/router"
	"github.com/nova26/hypercore/clock"
)

// Status is a NegotiationRecord's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusTimedOut  Status = "timed-out"
)

func isTerminal(s Status) bool { return s != StatusPending }

// Record is the spec §3 NegotiationRecord.
type Record struct {
	ProposalID    string
	CorrelationID string
	Proposal      map[string]interface{}
	Status        Status
	Proposer      string
	Target        string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// ErrTerminal is returned when attempting to transition a record that
// already reached a terminal state.
var ErrTerminal = errors.New("negotiator: record already in a terminal state")

// ErrNotFound is returned when a proposal id is unknown.
var ErrNotFound = errors.New("negotiator: proposal not found")

// Listener receives every incoming proposal.
type Listener func(Record)

// Unsubscribe removes a previously registered listener.
type Unsubscribe func()

// Negotiator is the C14 TaskNegotiator, scoped to one agent.
type Negotiator struct {
	mu sync.Mutex

	agentID string
	router  *router.Router
	clock   clock.Clock

	records map[string]Record   // proposal_id -> record
	threads map[string][]string // correlation_id -> proposal_ids, creation order

	listeners []Listener
}

// New constructs a Negotiator for agentID, routing proposals through r.
// It registers itself as a router handler for agentID so that incoming
// task-proposal, task-accept, and task-reject envelopes addressed to
// this agent are applied automatically, including replies that arrive
// from a different agent's Negotiator instance (spec §4.14).
func New(agentID string, r *router.Router, c clock.Clock) *Negotiator {
	if c == nil {
		c = clock.System{}
	}
	n := &Negotiator{
		agentID: agentID,
		router:  r,
		clock:   c,
		records: make(map[string]Record),
		threads: make(map[string][]string),
	}
	if r != nil {
		r.RegisterHandler(agentID, n.handleRouted)
	}
	return n
}

// handleRouted is this Negotiator's router handler. Proposals addressed
// to this agent become new records; accept/reject replies resolve the
// record this agent originally proposed, wherever the reply came from.
func (n *Negotiator) handleRouted(env envelope.Envelope) error {
	switch env.Type {
	case envelope.TypeTaskPropose:
		n.HandleIncomingProposal(env, env.TTLMs)
		return nil
	case envelope.TypeTaskAccept:
		return n.applyRemoteTransition(env, StatusAccepted)
	case envelope.TypeTaskReject:
		return n.applyRemoteTransition(env, StatusRejected)
	default:
		return nil
	}
}

// applyRemoteTransition resolves the local record named by env's
// proposal_id payload field. Unlike resolve, it never sends a further
// reply envelope — the reply is what triggered this call.
func (n *Negotiator) applyRemoteTransition(env envelope.Envelope, status Status) error {
	proposalID, _ := env.Payload["proposal_id"].(string)
	if proposalID == "" {
		return errors.New("negotiator: reply envelope missing proposal_id")
	}
	n.mu.Lock()
	record, ok := n.records[proposalID]
	if !ok {
		n.mu.Unlock()
		return errors.Wrapf(ErrNotFound, "proposal_id=%s", proposalID)
	}
	if isTerminal(record.Status) {
		n.mu.Unlock()
		return nil
	}
	now := n.clock.Now()
	record.Status = status
	record.ResolvedAt = &now
	n.records[proposalID] = record
	n.mu.Unlock()
	return nil
}

// Propose sends a task-proposal to target and arms its deadline timer.
func (n *Negotiator) Propose(target string, proposal map[string]interface{}, deadlineMs int64) (Record, error) {
	now := n.clock.Now()
	record := Record{
		ProposalID:    uuid.NewString(),
		CorrelationID: uuid.NewString(),
		Proposal:      proposal,
		Status:        StatusPending,
		Proposer:      n.agentID,
		Target:        target,
		CreatedAt:     now,
	}
	n.store(record)
	n.armDeadline(record.ProposalID, deadlineMs)

	env := envelope.Envelope{
		ID:            record.ProposalID,
		Type:          envelope.TypeTaskPropose,
		From:          n.agentID,
		To:            target,
		CorrelationID: record.CorrelationID,
		Payload:       proposal,
		TimestampMs:   now.UnixMilli(),
		TTLMs:         deadlineMs,
	}
	if _, err := n.router.Send(env, router.SendOptions{}); err != nil {
		return record, err
	}
	return record, nil
}

// Accept transitions proposalID to accepted and sends the complementary
// task-accept envelope on the same correlation id.
func (n *Negotiator) Accept(proposalID string, estimatedMs *int64) (Record, error) {
	payload := map[string]interface{}{}
	if estimatedMs != nil {
		payload["estimated_ms"] = *estimatedMs
	}
	return n.resolve(proposalID, StatusAccepted, envelope.TypeTaskAccept, payload)
}

// Reject transitions proposalID to rejected and sends the complementary
// task-reject envelope on the same correlation id.
func (n *Negotiator) Reject(proposalID, reason string, alternative map[string]interface{}) (Record, error) {
	payload := map[string]interface{}{"reason": reason}
	if alternative != nil {
		payload["alternative"] = alternative
	}
	return n.resolve(proposalID, StatusRejected, envelope.TypeTaskReject, payload)
}

func (n *Negotiator) resolve(proposalID string, status Status, replyType envelope.Type, payload map[string]interface{}) (Record, error) {
	n.mu.Lock()
	record, ok := n.records[proposalID]
	if !ok {
		n.mu.Unlock()
		return Record{}, errors.Wrapf(ErrNotFound, "proposal_id=%s", proposalID)
	}
	if isTerminal(record.Status) {
		n.mu.Unlock()
		return record, ErrTerminal
	}
	now := n.clock.Now()
	record.Status = status
	record.ResolvedAt = &now
	n.records[proposalID] = record
	n.mu.Unlock()

	other := record.Proposer
	if other == n.agentID {
		other = record.Target
	}
	payload["proposal_id"] = proposalID
	env := envelope.Envelope{
		ID:            uuid.NewString(),
		Type:          replyType,
		From:          n.agentID,
		To:            other,
		CorrelationID: record.CorrelationID,
		Payload:       payload,
		TimestampMs:   now.UnixMilli(),
	}
	if n.router != nil {
		_, _ = n.router.Send(env, router.SendOptions{})
	}
	return record, nil
}

// HandleIncomingProposal stores a new record for an incoming task-
// proposal envelope, arms its deadline, and notifies listeners.
func (n *Negotiator) HandleIncomingProposal(env envelope.Envelope, deadlineMs int64) Record {
	record := Record{
		ProposalID:    env.ID,
		CorrelationID: env.CorrelationID,
		Proposal:      env.Payload,
		Status:        StatusPending,
		Proposer:      env.From,
		Target:        env.To,
		CreatedAt:     n.clock.Now(),
	}
	n.store(record)
	n.armDeadline(record.ProposalID, deadlineMs)

	n.mu.Lock()
	listeners := append([]Listener(nil), n.listeners...)
	n.mu.Unlock()
	for _, fn := range listeners {
		if fn != nil {
			fn(record)
		}
	}
	return record
}

// GetThread returns every record sharing correlationID, ordered by
// creation (spec §4.14).
func (n *Negotiator) GetThread(correlationID string) []Record {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := n.threads[correlationID]
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, n.records[id])
	}
	return out
}

// OnProposalReceived registers a listener for incoming proposals.
func (n *Negotiator) OnProposalReceived(fn Listener) Unsubscribe {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	idx := len(n.listeners) - 1
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if idx < len(n.listeners) {
			n.listeners[idx] = nil
		}
	}
}

func (n *Negotiator) store(record Record) {
	n.mu.Lock()
	n.records[record.ProposalID] = record
	n.threads[record.CorrelationID] = append(n.threads[record.CorrelationID], record.ProposalID)
	n.mu.Unlock()
}

// armDeadline schedules a goroutine that flips a still-pending record to
// timed-out once deadlineMs elapses, per the injected clock.
func (n *Negotiator) armDeadline(proposalID string, deadlineMs int64) {
	if deadlineMs <= 0 {
		return
	}
	ch := n.clock.After(time.Duration(deadlineMs) * time.Millisecond)
	go func() {
		<-ch
		n.mu.Lock()
		defer n.mu.Unlock()
		record, ok := n.records[proposalID]
		if !ok || isTerminal(record.Status) {
			return
		}
		now := n.clock.Now()
		record.Status = StatusTimedOut
		record.ResolvedAt = &now
		n.records[proposalID] = record
	}()
}

// GetRecord returns the current record for proposalID.
func (n *Negotiator) GetRecord(proposalID string) (Record, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	record, ok := n.records[proposalID]
	if !ok {
		return Record{}, errors.Wrapf(ErrNotFound, "proposal_id=%s", proposalID)
	}
	return record, nil
}
