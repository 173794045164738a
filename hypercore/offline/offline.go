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

// Package offline is the C7 OfflineQueue: absorbs writes to one LogStore
// while disconnected, draining them in FIFO order on reconnect (spec
// §4.7).
package offline

import (
	"sync"

	"github.com/golang/snappy"

	"github.com/nova26/hypercore/hypercore/logstore"
)

// DrainResult is returned by Drain and by SetOnline(true).
type DrainResult struct {
	Replayed int
	Failed   int
}

type queuedItem struct {
	compressed []byte
}

// Queue is the C7 OfflineQueue.
type Queue struct {
	mu sync.Mutex

	log    *logstore.LogStore
	online bool
	pending []queuedItem

	totalDrained int64

	onOnline  []func()
	onOffline []func()

	// last_synced_seq[log_name][peer_id] = seq
	lastSynced map[string]map[string]int64
}

// New wraps log. The queue starts online.
func New(log *logstore.LogStore) *Queue {
	return &Queue{
		log:        log,
		online:     true,
		lastSynced: make(map[string]map[string]int64),
	}
}

// Append appends data to the log when online, returning its result.
// When offline, data is buffered (snappy-compressed) and nil is
// returned instead of an error, matching the spec's "append returns
// null while offline, queued instead" contract.
func (q *Queue) Append(data []byte) (*logstore.AppendResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.online {
		q.pending = append(q.pending, queuedItem{compressed: snappy.Encode(nil, data)})
		return nil, nil
	}

	res, err := q.log.Append(data)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Get always reads directly from the wrapped store, bypassing the
// pending queue.
func (q *Queue) Get(seq uint64) (logstore.LogEntry, error) {
	return q.log.Get(seq)
}

// Length returns the wrapped store's length (queued-but-undrained items
// are not yet part of the log).
func (q *Queue) Length() uint64 {
	return q.log.Length()
}

// SetOnline transitions the queue's connectivity state. Going offline
// fires on_offline listeners; coming online drains the pending queue and
// fires on_online listeners, returning the drain result (nil if the
// transition was a no-op or going offline).
func (q *Queue) SetOnline(online bool) *DrainResult {
	q.mu.Lock()
	was := q.online
	q.online = online
	q.mu.Unlock()

	if was == online {
		return nil
	}

	if online {
		result := q.Drain()
		q.fire(q.onOnline)
		return &result
	}
	q.fire(q.onOffline)
	return nil
}

// Drain replays every pending item into the log in FIFO order. Each
// item is drained atomically: a failure on one item leaves every
// subsequent item queued rather than aborting silently (spec §4.7).
func (q *Queue) Drain() DrainResult {
	q.mu.Lock()
	items := q.pending
	q.pending = nil
	q.mu.Unlock()

	var result DrainResult
	var failedRemainder []queuedItem
	failing := false

	for _, item := range items {
		if failing {
			failedRemainder = append(failedRemainder, item)
			continue
		}
		data, err := snappy.Decode(nil, item.compressed)
		if err != nil {
			result.Failed++
			failing = true
			failedRemainder = append(failedRemainder, item)
			continue
		}
		if _, err := q.log.Append(data); err != nil {
			result.Failed++
			failing = true
			failedRemainder = append(failedRemainder, item)
			continue
		}
		result.Replayed++
	}

	q.mu.Lock()
	q.pending = append(failedRemainder, q.pending...)
	q.totalDrained += int64(result.Replayed)
	q.mu.Unlock()

	return result
}

// TotalDrained returns the monotonically non-decreasing count of items
// ever successfully drained.
func (q *Queue) TotalDrained() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalDrained
}

// PendingCount returns the number of items still queued.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// RecordSyncState records that peer has synced log through seq.
func (q *Queue) RecordSyncState(logName, peer string, seq int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	perPeer, ok := q.lastSynced[logName]
	if !ok {
		perPeer = make(map[string]int64)
		q.lastSynced[logName] = perPeer
	}
	perPeer[peer] = seq
}

// GetLastSyncedSeq returns the last recorded seq for (logName, peer), or
// -1 if unknown.
func (q *Queue) GetLastSyncedSeq(logName, peer string) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	perPeer, ok := q.lastSynced[logName]
	if !ok {
		return -1
	}
	seq, ok := perPeer[peer]
	if !ok {
		return -1
	}
	return seq
}

// OnOnline registers a listener fired on the offline->online edge.
func (q *Queue) OnOnline(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onOnline = append(q.onOnline, fn)
}

// OnOffline registers a listener fired on the online->offline edge.
func (q *Queue) OnOffline(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onOffline = append(q.onOffline, fn)
}

func (q *Queue) fire(listeners []func()) {
	q.mu.Lock()
	snapshot := make([]func(), len(listeners))
	copy(snapshot, listeners)
	q.mu.Unlock()
	for _, fn := range snapshot {
		fn()
	}
}
