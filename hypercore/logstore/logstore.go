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

// Package logstore implements the append-only, hash-chained,
// optionally-signed log at the bottom of the hypercore layer (spec §4.1).
package logstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/nova26/hypercore/clock"
)

// Error kinds from spec §7.
var (
	ErrOutOfRange      = errors.New("logstore: seq out of range")
	ErrPayloadTooLarge = errors.New("logstore: payload exceeds max_payload_bytes")
	ErrChainCorrupted  = errors.New("logstore: hash chain corrupted")
	ErrSignatureInvalid = errors.New("logstore: signature invalid")
	ErrReadOnly        = errors.New("logstore: store is not writable")
)

const defaultMaxPayloadBytes = 1 << 20 // 1 MiB, spec §6 default

// Signer produces and identifies Ed25519-style signatures. access.KeyPair
// satisfies this interface; logstore never imports the access package so
// the two stay decoupled (spec §9 "cyclic references" design note).
type Signer interface {
	Sign(message []byte) []byte
	PublicKey() []byte
}

// LogEntry is one immutable slot in the chain (spec §3).
type LogEntry struct {
	Seq        uint64
	PrevHash   []byte
	Hash       []byte
	Timestamp  uint64 // unix millis
	ByteLength uint32
	Data       []byte
	Signature  []byte // optional, 64 bytes when present
}

// AppendResult is returned by Append.
type AppendResult struct {
	Seq        uint64
	Hash       []byte
	ByteLength uint32
}

// Options configures a LogStore.
type Options struct {
	Writable        bool
	MaxPayloadBytes uint32
	Signer          Signer // optional: if set, every append is signed
	PublicKey       []byte // required to verify signatures from a remote signer
	Clock           clock.Clock
}

// LogStore is the C1 component: a single append-only log.
type LogStore struct {
	mu sync.RWMutex

	name            string
	entries         []LogEntry
	writable        bool
	maxPayloadBytes uint32
	signer          Signer
	publicKey       []byte
	clock           clock.Clock
}

// New constructs an empty LogStore named name.
func New(name string, opts Options) *LogStore {
	maxPayload := opts.MaxPayloadBytes
	if maxPayload == 0 {
		maxPayload = defaultMaxPayloadBytes
	}
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	pub := opts.PublicKey
	if pub == nil && opts.Signer != nil {
		pub = opts.Signer.PublicKey()
	}
	return &LogStore{
		name:            name,
		writable:        opts.Writable,
		maxPayloadBytes: maxPayload,
		signer:          opts.Signer,
		publicKey:       pub,
		clock:           c,
	}
}

// Name returns the store's name.
func (s *LogStore) Name() string { return s.name }

// Writable reports whether Append is permitted.
func (s *LogStore) Writable() bool { return s.writable }

// Append encodes data (expected to already be canonical bytes, see the
// canonical package) as a new entry, chaining it to the current head and
// signing it if the store was constructed with a Signer.
func (s *LogStore) Append(data []byte) (AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.writable {
		return AppendResult{}, errors.Wrapf(ErrReadOnly, "log=%s", s.name)
	}
	if len(data) > int(s.maxPayloadBytes) {
		return AppendResult{}, errors.Wrapf(ErrPayloadTooLarge, "log=%s len=%d max=%d", s.name, len(data), s.maxPayloadBytes)
	}

	seq := uint64(len(s.entries))
	prevHash := []byte{}
	if seq > 0 {
		prevHash = s.entries[seq-1].Hash
	}

	entry := LogEntry{
		Seq:        seq,
		PrevHash:   prevHash,
		Timestamp:  uint64(s.clock.Now().UnixMilli()),
		ByteLength: uint32(len(data)),
		Data:       data,
	}
	entry.Hash = computeHash(seq, prevHash, data)
	if s.signer != nil {
		entry.Signature = s.signer.Sign(signingBytes(entry))
	}

	s.entries = append(s.entries, entry)
	return AppendResult{Seq: seq, Hash: entry.Hash, ByteLength: entry.ByteLength}, nil
}

// Get returns entry seq.
func (s *LogStore) Get(seq uint64) (LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if seq >= uint64(len(s.entries)) {
		return LogEntry{}, errors.Wrapf(ErrOutOfRange, "log=%s seq=%d length=%d", s.name, seq, len(s.entries))
	}
	return s.entries[seq], nil
}

// GetRange returns entries in [start, end), clamped to the current length.
// end == nil means "through the current tail".
func (s *LogStore) GetRange(start uint64, end *uint64) []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	length := uint64(len(s.entries))
	if start > length {
		start = length
	}
	stop := length
	if end != nil && *end < stop {
		stop = *end
	}
	if stop < start {
		stop = start
	}
	out := make([]LogEntry, stop-start)
	copy(out, s.entries[start:stop])
	return out
}

// Length returns the number of appended entries.
func (s *LogStore) Length() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries))
}

// Root returns the degenerate Merkle root: the hash of the last entry, or
// an empty slice for an empty log (spec §4.3, §6).
func (s *LogStore) Root() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return []byte{}
	}
	return s.entries[len(s.entries)-1].Hash
}

// VerifyChain recomputes every hash from the head, returning false at the
// first mismatch.
func (s *LogStore) VerifyChain() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prevHash := []byte{}
	for _, e := range s.entries {
		want := computeHash(e.Seq, prevHash, e.Data)
		if !bytes.Equal(want, e.Hash) {
			return false
		}
		prevHash = e.Hash
	}
	return true
}

// VerifySignature re-verifies the signature over entry seq, if one was
// recorded. A store with no public key (unsigned) reports true for any
// entry lacking a signature, and false for one that unexpectedly has one.
func (s *LogStore) VerifySignature(seq uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if seq >= uint64(len(s.entries)) {
		return false
	}
	e := s.entries[seq]
	if len(e.Signature) == 0 {
		return s.publicKey == nil
	}
	if s.publicKey == nil {
		return false
	}
	return verifySignature(s.publicKey, signingBytes(e), e.Signature)
}

// ExportEntries returns every entry from fromSeq to the tail, for shipping
// to a peer (spec §4.1, §6 replication wire protocol step 3).
func (s *LogStore) ExportEntries(fromSeq uint64) []LogEntry {
	return s.GetRange(fromSeq, nil)
}

// ImportEntries appends entries that are contiguous with the current tail
// and chain correctly, skipping (not erroring on) any gap or prev-hash
// mismatch, and returns the count actually appended (spec §4.1).
func (s *LogStore) ImportEntries(entries []LogEntry) (int, error) {
	if !s.writable {
		return 0, ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, e := range entries {
		length := uint64(len(s.entries))
		if e.Seq != length {
			continue
		}
		prevHash := []byte{}
		if length > 0 {
			prevHash = s.entries[length-1].Hash
		}
		if !bytes.Equal(e.PrevHash, prevHash) {
			continue
		}
		wantHash := computeHash(e.Seq, prevHash, e.Data)
		if !bytes.Equal(wantHash, e.Hash) {
			continue
		}
		s.entries = append(s.entries, e)
		added++
	}
	return added, nil
}

func computeHash(seq uint64, prevHash, data []byte) []byte {
	h := sha256.New()
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	h.Write(seqBuf[:])
	h.Write(prevHash)
	h.Write(data)
	return h.Sum(nil)
}

// signingBytes is the canonical byte form signed over and verified
// against: seq, prev_hash, timestamp, byte_length, data (everything but
// the signature itself, per spec §6's persisted entry format).
func signingBytes(e LogEntry) []byte {
	var buf bytes.Buffer
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], e.Seq)
	buf.Write(seqBuf[:])
	buf.Write(e.PrevHash)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], e.Timestamp)
	buf.Write(tsBuf[:])
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], e.ByteLength)
	buf.Write(lenBuf[:])
	buf.Write(e.Data)
	return buf.Bytes()
}
