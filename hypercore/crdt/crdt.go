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

// Package crdt is the C5 CRDTBridge: CRDT-tagged updates layered on one
// LogStore. The bridge neither resolves conflicts nor reorders entries;
// ordering in the log is accept-order, CRDT merge semantics live in the
// consumer (spec §4.5).
package crdt

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nova26/hypercore/canonical"
	"github.com/nova26/hypercore/clock"
	"github.com/nova26/hypercore/hypercore/logstore"
	"github.com/nova26/hypercore/observability"
	"github.com/nova26/hypercore/vclock"
)

// Operation enumerates CRDT operation kinds (spec §3).
type Operation string

const (
	OpInsert Operation = "insert"
	OpDelete Operation = "delete"
	OpUpdate Operation = "update"
	OpMove   Operation = "move"
)

// Update is the C5/spec §3 CRDTUpdate.
type Update struct {
	OperationID  string
	PeerID       string
	TargetNodeID string
	Operation    Operation
	Payload      map[string]interface{}
	VectorClock  vclock.Clock
	Timestamp    time.Time
}

// BroadcastResult is returned by Broadcast.
type BroadcastResult struct {
	Seq         uint64
	OperationID string
	ByteLength  uint32
}

// Listener receives every successfully-applied Update.
type Listener func(Update)

// Unsubscribe removes a previously registered listener.
type Unsubscribe func()

// Bridge is the C5 CRDTBridge.
type Bridge struct {
	log       *logstore.LogStore
	clock     clock.Clock
	obs       *observability.Logger
	cursor    uint64
	listeners map[int]Listener
	nextID    int
}

// Options configures a Bridge.
type Options struct {
	Clock clock.Clock
	Obs   *observability.Logger
}

// New wraps log with CRDT broadcast/poll semantics.
func New(log *logstore.LogStore, opts Options) *Bridge {
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	return &Bridge{log: log, clock: c, obs: opts.Obs, listeners: make(map[int]Listener)}
}

func validate(u Update) error {
	if u.PeerID == "" {
		return errors.New("crdt: update missing peer_id")
	}
	if u.TargetNodeID == "" {
		return errors.New("crdt: update missing target_node_id")
	}
	switch u.Operation {
	case OpInsert, OpDelete, OpUpdate, OpMove:
	default:
		return errors.Errorf("crdt: unknown operation %q", u.Operation)
	}
	return nil
}

// Broadcast validates and appends update, firing on_update listeners.
func (b *Bridge) Broadcast(u Update) (BroadcastResult, error) {
	if err := validate(u); err != nil {
		return BroadcastResult{}, err
	}
	if u.OperationID == "" {
		u.OperationID = uuid.NewString()
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = b.clock.Now()
	}

	data, err := canonical.Marshal(wireUpdate(u))
	if err != nil {
		return BroadcastResult{}, errors.Wrap(err, "crdt: encode update")
	}
	res, err := b.log.Append(data)
	if err != nil {
		return BroadcastResult{}, err
	}
	// Broadcast already notifies listeners directly below, so advance the
	// poll cursor past it too: Poll only needs to catch up on entries that
	// arrived some other way (replication import).
	b.cursor = res.Seq + 1

	if b.obs != nil {
		b.obs.Record(observability.Event{Type: observability.EventAppend, LogName: b.log.Name(), Bytes: int(res.ByteLength)})
	}

	b.notify(u)
	return BroadcastResult{Seq: res.Seq, OperationID: u.OperationID, ByteLength: res.ByteLength}, nil
}

// Poll reads entries appended since the last poll cursor, dispatching
// valid updates to listeners. Malformed entries are skipped and counted
// in observability rather than aborting the poll (spec §4.5, §7).
func (b *Bridge) Poll() int {
	entries := b.log.GetRange(b.cursor, nil)
	processed := 0
	for _, e := range entries {
		b.cursor = e.Seq + 1
		u, err := decodeUpdate(e.Data)
		if err != nil {
			if b.obs != nil {
				b.obs.Record(observability.Event{Type: observability.EventError, LogName: b.log.Name(), Err: "malformed CRDT update at seq " + itoa(e.Seq)})
			}
			continue
		}
		b.notify(u)
		processed++
	}
	return processed
}

// On registers a listener and returns its Unsubscribe.
func (b *Bridge) On(fn Listener) Unsubscribe {
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() { delete(b.listeners, id) }
}

func (b *Bridge) notify(u Update) {
	for _, fn := range b.listeners {
		fn(u)
	}
}

// wireUpdate / decodeUpdate isolate the canonical-encoding boundary so
// Update can keep idiomatic Go field types (time.Time, vclock.Clock)
// while the log only ever sees plain JSON-able values.
type wireForm struct {
	OperationID  string                 `json:"operation_id"`
	PeerID       string                 `json:"peer_id"`
	TargetNodeID string                 `json:"target_node_id"`
	Operation    string                 `json:"operation"`
	Payload      map[string]interface{} `json:"payload"`
	VectorClock  map[string]uint64      `json:"vector_clock"`
	TimestampMs  int64                  `json:"timestamp_ms"`
}

func wireUpdate(u Update) wireForm {
	return wireForm{
		OperationID:  u.OperationID,
		PeerID:       u.PeerID,
		TargetNodeID: u.TargetNodeID,
		Operation:    string(u.Operation),
		Payload:      u.Payload,
		VectorClock:  map[string]uint64(u.VectorClock),
		TimestampMs:  u.Timestamp.UnixMilli(),
	}
}

func decodeUpdate(data []byte) (Update, error) {
	var w wireForm
	if err := canonical.Unmarshal(data, &w); err != nil {
		return Update{}, err
	}
	if w.OperationID == "" || w.PeerID == "" || w.TargetNodeID == "" {
		return Update{}, errors.New("crdt: missing required field")
	}
	return Update{
		OperationID:  w.OperationID,
		PeerID:       w.PeerID,
		TargetNodeID: w.TargetNodeID,
		Operation:    Operation(w.Operation),
		Payload:      w.Payload,
		VectorClock:  vclock.Clock(w.VectorClock),
		Timestamp:    time.UnixMilli(w.TimestampMs),
	}, nil
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
