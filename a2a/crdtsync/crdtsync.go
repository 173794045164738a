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

// Package crdtsync is the C17 CRDTSyncChannel: broadcasts CRDT updates
// over the A2A router tagged with a per-agent vector clock, merging
// remote clocks on receipt without ever deriving a total order (spec
// §4.17).
package crdtsync

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/nova26/hypercore/a2a/envelope"
	"github.com/nova26/hypercore/a2a/router"
	"github.com/nova26/hypercore/clock"
	"github.com/nova26/hypercore/vclock"
)

// Update is the wire payload carried on a stream-data envelope.
type Update struct {
	OperationID string                 `json:"operation_id"`
	LogName     string                 `json:"log_name"`
	Seq         uint64                 `json:"seq"`
	VectorClock vclock.Clock           `json:"vector_clock"`
	Payload     map[string]interface{} `json:"payload"`
}

// Listener receives every successfully-merged Update.
type Listener func(Update)

// Unsubscribe removes a previously registered listener.
type Unsubscribe func()

// ErrMalformedUpdate is recorded in the error log rather than returned,
// since ApplyUpdate must not abort a sync stream over one bad message.
var ErrMalformedUpdate = errors.New("crdtsync: malformed update")

// RejectedEntry records one update that failed to apply.
type RejectedEntry struct {
	Reason string
	Raw    envelope.Envelope
}

const defaultErrorLogSize = 256

// Channel is the C17 CRDTSyncChannel, scoped to one agent and one
// logical log name.
type Channel struct {
	mu sync.Mutex

	agentID string
	logName string
	router  *router.Router
	clock   clock.Clock

	local   vclock.Clock
	seq     uint64
	nextOp  uint64

	listeners []Listener
	errorLog  *lru.Cache[string, RejectedEntry]
}

// New constructs a Channel for agentID, syncing updates tagged logName
// over r.
func New(agentID, logName string, r *router.Router, c clock.Clock) *Channel {
	if c == nil {
		c = clock.System{}
	}
	errLog, _ := lru.New[string, RejectedEntry](defaultErrorLogSize)
	return &Channel{
		agentID:  agentID,
		logName:  logName,
		router:   r,
		clock:    c,
		local:    vclock.Clock{},
		errorLog: errLog,
	}
}

// Broadcast increments this agent's vector-clock component, wraps
// payload in an Update, and sends it as a stream-data envelope
// addressed to everyone (spec §4.17).
func (c *Channel) Broadcast(payload map[string]interface{}) (Update, error) {
	c.mu.Lock()
	c.local = c.local.Increment(c.agentID)
	c.seq++
	c.nextOp++
	update := Update{
		OperationID: c.opID(c.nextOp),
		LogName:     c.logName,
		Seq:         c.seq,
		VectorClock: c.local.Clone(),
		Payload:     payload,
	}
	c.mu.Unlock()

	env := envelope.Envelope{
		ID:          update.OperationID,
		Type:        envelope.TypeStreamData,
		From:        c.agentID,
		To:          envelope.Broadcast,
		Payload:     updateToPayload(update),
		TimestampMs: c.clock.Now().UnixMilli(),
	}
	if c.router != nil {
		if _, err := c.router.Send(env, router.SendOptions{}); err != nil {
			return update, err
		}
	}
	return update, nil
}

func (c *Channel) opID(n uint64) string {
	return c.agentID + "-" + c.logName + "-" + uintToString(n)
}

func uintToString(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// ApplyUpdate validates and merges an incoming stream-data envelope's
// Update into the local vector clock, notifying listeners. Malformed
// envelopes are recorded in the bounded error log instead of returned
// as an error, so one bad message never halts the sync stream.
func (c *Channel) ApplyUpdate(env envelope.Envelope) {
	update, err := payloadToUpdate(env.Payload)
	if err != nil {
		c.reject(env, err.Error())
		return
	}

	c.mu.Lock()
	c.local = c.local.Merge(update.VectorClock)
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		if fn != nil {
			fn(update)
		}
	}
}

func (c *Channel) reject(env envelope.Envelope, reason string) {
	if c.errorLog == nil {
		return
	}
	c.errorLog.Add(env.ID, RejectedEntry{Reason: reason, Raw: env})
}

// RejectedUpdates returns every currently retained malformed-update
// entry, for diagnostics.
func (c *Channel) RejectedUpdates() []RejectedEntry {
	if c.errorLog == nil {
		return nil
	}
	out := make([]RejectedEntry, 0, c.errorLog.Len())
	for _, k := range c.errorLog.Keys() {
		if v, ok := c.errorLog.Peek(k); ok {
			out = append(out, v)
		}
	}
	return out
}

// OnUpdate registers a listener invoked on every successfully merged
// update.
func (c *Channel) OnUpdate(fn Listener) Unsubscribe {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	idx := len(c.listeners) - 1
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < len(c.listeners) {
			c.listeners[idx] = nil
		}
	}
}

// LocalClock returns a snapshot of this channel's current vector clock.
func (c *Channel) LocalClock() vclock.Clock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local.Clone()
}

func updateToPayload(u Update) map[string]interface{} {
	vc := make(map[string]interface{}, len(u.VectorClock))
	for k, v := range u.VectorClock {
		vc[k] = v
	}
	return map[string]interface{}{
		"operation_id": u.OperationID,
		"log_name":     u.LogName,
		"seq":          u.Seq,
		"vector_clock": vc,
		"payload":      u.Payload,
	}
}

func payloadToUpdate(payload map[string]interface{}) (Update, error) {
	opID, ok := payload["operation_id"].(string)
	if !ok || opID == "" {
		return Update{}, errors.Wrap(ErrMalformedUpdate, "missing operation_id")
	}
	logName, _ := payload["log_name"].(string)

	vcRaw, ok := payload["vector_clock"].(map[string]interface{})
	if !ok {
		return Update{}, errors.Wrap(ErrMalformedUpdate, "missing vector_clock")
	}
	vc := make(vclock.Clock, len(vcRaw))
	for k, v := range vcRaw {
		n, err := toUint64(v)
		if err != nil {
			return Update{}, errors.Wrap(ErrMalformedUpdate, "vector_clock component not a number")
		}
		vc[k] = n
	}

	var seq uint64
	if v, ok := payload["seq"]; ok {
		n, err := toUint64(v)
		if err != nil {
			return Update{}, errors.Wrap(ErrMalformedUpdate, "seq not a number")
		}
		seq = n
	}

	inner, _ := payload["payload"].(map[string]interface{})

	return Update{
		OperationID: opID,
		LogName:     logName,
		Seq:         seq,
		VectorClock: vc,
		Payload:     inner,
	}, nil
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	default:
		return 0, errors.New("crdtsync: value is not numeric")
	}
}
