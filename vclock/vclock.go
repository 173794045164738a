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

// Package vclock is the component-wise-max vector clock shared by
// CRDTBridge (C5) and CRDTSyncChannel (C17). No total order is ever
// derived here — consumers merge and compare, nothing more (spec §4.5,
// §4.17).
package vclock

// Clock maps peer id to that peer's highest seen counter.
type Clock map[string]uint64

// Clone returns an independent copy.
func (c Clock) Clone() Clock {
	out := make(Clock, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Increment returns a clone with peerID's component incremented by one.
func (c Clock) Increment(peerID string) Clock {
	out := c.Clone()
	out[peerID] = out[peerID] + 1
	return out
}

// Merge returns the component-wise max of c and other.
func (c Clock) Merge(other Clock) Clock {
	out := c.Clone()
	for k, v := range other {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

// Dominates reports whether every component of c is >= the matching
// component of other (c has seen everything other has).
func (c Clock) Dominates(other Clock) bool {
	for k, v := range other {
		if c[k] < v {
			return false
		}
	}
	return true
}
