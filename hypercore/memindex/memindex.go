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

// Package memindex is the C6 IndexedMemoryAdapter: four derived indices
// (by_node_id, by_agent, by_time, by_tag) kept atop a LogStore. The
// indices are purely derivative — RebuildIndex must always agree with
// the incrementally streamed view (spec §4.6).
package memindex

import (
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/btree"

	"github.com/nova26/hypercore/canonical"
	"github.com/nova26/hypercore/hypercore/logstore"
	"github.com/nova26/hypercore/vclock"
)

// Node is the spec §3 MemoryNode.
type Node struct {
	NodeID      string                 `json:"node_id"`
	AgentID     string                 `json:"agent_id"`
	Content     map[string]interface{} `json:"content"`
	Tags        []string               `json:"tags"`
	TasteScore  float64                `json:"taste_score"`
	TimestampMs int64                  `json:"timestamp_ms"`
	VectorClock map[string]uint64      `json:"vector_clock"`
}

func (n Node) timestamp() time.Time { return time.UnixMilli(n.TimestampMs) }

// RebuildResult is returned by RebuildIndex.
type RebuildResult struct {
	ValidNodes     int
	InvalidEntries int
	TotalEntries   int
}

type timeKey struct {
	timestampMs int64
	nodeID      string
}

func timeLess(a, b timeKey) bool {
	if a.timestampMs != b.timestampMs {
		return a.timestampMs < b.timestampMs
	}
	return a.nodeID < b.nodeID
}

// Adapter is the C6 IndexedMemoryAdapter.
type Adapter struct {
	log *logstore.LogStore

	byNodeID map[string]Node
	byAgent  map[string][]string // agent_id -> node_ids, insertion order
	byTag    map[string][]string // tag -> node_ids, insertion order
	byTime   *btree.BTreeG[timeKey]

	cursor uint64
}

// New wraps log with derived secondary indices.
func New(log *logstore.LogStore) *Adapter {
	a := &Adapter{log: log}
	a.reset()
	return a
}

func (a *Adapter) reset() {
	a.byNodeID = make(map[string]Node)
	a.byAgent = make(map[string][]string)
	a.byTag = make(map[string][]string)
	a.byTime = btree.NewBTreeG(timeLess)
	a.cursor = 0
}

// StoreNode appends node to the underlying log and updates every index.
func (a *Adapter) StoreNode(node Node) (logstore.AppendResult, error) {
	data, err := canonical.Marshal(node)
	if err != nil {
		return logstore.AppendResult{}, errors.Wrap(err, "memindex: encode node")
	}
	res, err := a.log.Append(data)
	if err != nil {
		return logstore.AppendResult{}, err
	}
	a.cursor = res.Seq + 1
	a.index(node)
	return res, nil
}

func (a *Adapter) index(node Node) {
	a.byNodeID[node.NodeID] = node
	a.byAgent[node.AgentID] = append(a.byAgent[node.AgentID], node.NodeID)
	for _, tag := range node.Tags {
		a.byTag[tag] = append(a.byTag[tag], node.NodeID)
	}
	a.byTime.Set(timeKey{timestampMs: node.TimestampMs, nodeID: node.NodeID})
}

// GetByID returns the node with id, if present.
func (a *Adapter) GetByID(id string) (Node, bool) {
	n, ok := a.byNodeID[id]
	return n, ok
}

// QueryByAgentOptions bounds QueryByAgent.
type QueryByAgentOptions struct {
	AgentID string
	Limit   int // 0 means unbounded
}

// QueryByAgent returns agent_id's nodes in insertion order, optionally
// capped at Limit.
func (a *Adapter) QueryByAgent(opts QueryByAgentOptions) []Node {
	ids := a.byAgent[opts.AgentID]
	if opts.Limit > 0 && opts.Limit < len(ids) {
		ids = ids[:opts.Limit]
	}
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := a.byNodeID[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// QueryByTimeRangeOptions bounds QueryByTimeRange.
type QueryByTimeRangeOptions struct {
	From    time.Time
	To      time.Time
	AgentID string // optional filter
}

// QueryByTimeRange returns nodes with timestamp in [From, To], ascending.
func (a *Adapter) QueryByTimeRange(opts QueryByTimeRangeOptions) []Node {
	var out []Node
	fromMs := opts.From.UnixMilli()
	toMs := opts.To.UnixMilli()
	a.byTime.Ascend(timeKey{timestampMs: fromMs}, func(k timeKey) bool {
		if k.timestampMs > toMs {
			return false
		}
		n, ok := a.byNodeID[k.nodeID]
		if !ok {
			return true
		}
		if opts.AgentID != "" && n.AgentID != opts.AgentID {
			return true
		}
		out = append(out, n)
		return true
	})
	return out
}

// QueryByTag returns every node carrying tag, in insertion order.
func (a *Adapter) QueryByTag(tag string) []Node {
	ids := a.byTag[tag]
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := a.byNodeID[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// RebuildIndex discards every derived index and replays the log from
// seq 0, so it always agrees with the incrementally streamed view
// (spec §4.6 index-consistency invariant). Entries that fail to decode
// are counted as invalid but do not abort the rebuild.
func (a *Adapter) RebuildIndex() RebuildResult {
	a.reset()

	entries := a.log.GetRange(0, nil)
	result := RebuildResult{TotalEntries: len(entries)}
	for _, e := range entries {
		var node Node
		if err := canonical.Unmarshal(e.Data, &node); err != nil || node.NodeID == "" {
			result.InvalidEntries++
			continue
		}
		a.index(node)
		result.ValidNodes++
	}
	a.cursor = uint64(len(entries))
	return result
}

// Clock decodes node's stored vector clock for causal comparison against
// other query results.
func (n Node) Clock() vclock.Clock {
	return vclock.Clock(n.VectorClock)
}
