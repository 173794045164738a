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

package replication

import (
	"crypto/sha256"

	merkle "github.com/xsleonard/go-merkle"
)

// ComputeMerkleRoot is the spec §4.3 test helper: a real Merkle tree over
// the supplied leaf hashes, independent of the degenerate
// "hash-of-last-entry" root LogStore.Root() uses for its O(1) chain check.
// Deterministic; an empty input returns an empty slice.
func ComputeMerkleRoot(hashes [][]byte) []byte {
	if len(hashes) == 0 {
		return []byte{}
	}

	tree := merkle.NewTree()
	if err := tree.Generate(hashes, sha256.New()); err != nil {
		return []byte{}
	}
	nodes := tree.Nodes
	if len(nodes) == 0 {
		return []byte{}
	}
	return nodes[len(nodes)-1].Hash
}
