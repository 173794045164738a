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

// Package canonical provides deterministic byte encoding for values that
// flow into a hash chain. Two independently constructed stores fed the
// same logical inputs must produce byte-identical hashes, so ordinary
// map-keyed JSON (whose key order is unspecified) cannot be used as-is.
package canonical

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// ErrNonFinite is returned when a value contains a NaN or infinite float,
// which has no canonical textual representation.
var ErrNonFinite = errors.New("canonical: non-finite float")

// MaxUint32 is the largest byte_length a LogEntry can carry (spec §6).
const MaxUint32 = 1<<32 - 1

// Marshal encodes v into deterministic bytes: object keys are sorted,
// and JSON numbers are rejected if they are NaN/Inf (they have no stable
// textual form). Anything already canonical (raw bytes, strings) passes
// through a plain JSON encoding, which is already key-order-free.
func Marshal(v interface{}) ([]byte, error) {
	if err := checkFinite(v); err != nil {
		return nil, err
	}
	normalized := normalize(v)
	buf, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(normalized)
	if err != nil {
		return nil, errors.Wrap(err, "canonical: marshal")
	}
	return buf, nil
}

// Unmarshal decodes canonical bytes produced by Marshal.
func Unmarshal(data []byte, v interface{}) error {
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "canonical: unmarshal")
	}
	return nil
}

// Equal reports whether two canonical encodings describe the same value,
// independent of incidental whitespace differences from re-marshaling.
func Equal(a, b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
}

func checkFinite(v interface{}) error {
	switch t := v.(type) {
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return ErrNonFinite
		}
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ErrNonFinite
		}
	case map[string]interface{}:
		for _, vv := range t {
			if err := checkFinite(vv); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, vv := range t {
			if err := checkFinite(vv); err != nil {
				return err
			}
		}
	}
	return nil
}

// normalize recursively rewrites map[string]interface{} into a form whose
// JSON encoding has deterministic key order: jsoniter (like encoding/json)
// already sorts map[string]T keys when marshaling, so normalize's only job
// is to walk into nested maps/slices. Values of any other type, including
// maps with non-string keys, are returned unchanged; normalize reports no
// errors.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = normalize(t[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = normalize(vv)
		}
		return out
	default:
		return t
	}
}

// MustMarshal is Marshal for callers (mostly tests) that already know the
// value is well formed.
func MustMarshal(v interface{}) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("canonical: MustMarshal: %v", err))
	}
	return b
}
