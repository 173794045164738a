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

// Package envelope is the C11 typed message envelope shared across the
// A2A layer, with JSON-iterator-backed wire (de)serialization and
// ingress schema validation (spec §4.11).
package envelope

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Type enumerates envelope kinds (spec §3).
type Type string

const (
	TypeRequest      Type = "request"
	TypeResponse     Type = "response"
	TypeNotification Type = "notification"
	TypeTaskPropose  Type = "task-proposal"
	TypeTaskAccept   Type = "task-accept"
	TypeTaskReject   Type = "task-reject"
	TypeStreamData   Type = "stream-data"
	TypeHeartbeat    Type = "heartbeat"
	TypeError        Type = "error"
)

// Broadcast is the "to" value denoting delivery to every registered
// agent except the sender.
const Broadcast = "*"

// Envelope is the spec §3 Envelope.
type Envelope struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	From          string                 `json:"from"`
	To            string                 `json:"to"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	TimestampMs   int64                  `json:"timestamp"`
	TTLMs         int64                  `json:"ttl_ms,omitempty"`
	SandboxID     string                 `json:"sandbox_id,omitempty"`
}

func validType(t Type) bool {
	switch t {
	case TypeRequest, TypeResponse, TypeNotification, TypeTaskPropose, TypeTaskAccept, TypeTaskReject, TypeStreamData, TypeHeartbeat, TypeError:
		return true
	default:
		return false
	}
}

// requiresCorrelation reports whether envelopes of type t must carry a
// CorrelationID pointing back to the request they answer (spec §3
// invariant).
func requiresCorrelation(t Type) bool {
	return t == TypeResponse || t == TypeTaskAccept || t == TypeTaskReject
}

// Validate enforces the schema every envelope must satisfy on ingress
// (spec §4.11): invalid envelopes are rejected outright, never merely
// logged.
func Validate(e Envelope) error {
	if e.ID == "" {
		return errors.New("envelope: missing id")
	}
	if !validType(e.Type) {
		return errors.Errorf("envelope: unknown type %q", e.Type)
	}
	if e.From == "" {
		return errors.New("envelope: missing from")
	}
	if e.To == "" {
		return errors.New("envelope: missing to")
	}
	if requiresCorrelation(e.Type) && e.CorrelationID == "" {
		return errors.Errorf("envelope: type %q requires correlation_id", e.Type)
	}
	return nil
}

// Marshal encodes e to its wire JSON form.
func Marshal(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes and validates an envelope from its wire JSON form.
func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, errors.Wrap(err, "envelope: decode")
	}
	if err := Validate(e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
