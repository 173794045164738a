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

// Package observability is the sink components emit structured events into:
// a bounded ring buffer, aggregate counters, and a health view derived from
// an error-rate window. ReplicationManager (C3), CRDTBridge (C5) and
// A2ARouter (C12) emit into one of these; LogStore (C1), Channel (C13)
// and TaskNegotiator (C14) record no events.
package observability

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nova26/hypercore/clock"
)

// EventType enumerates the event categories from spec.md §4.9.
type EventType string

const (
	EventAppend          EventType = "append"
	EventReplicate       EventType = "replicate"
	EventError           EventType = "error"
	EventMessageSent     EventType = "message-sent"
	EventMessageReceived EventType = "message-received"
	EventRoutingFailed   EventType = "routing-failed"
	EventToolInvoked     EventType = "tool-invoked"
	EventChannelOpened   EventType = "channel-opened"
	EventChannelClosed   EventType = "channel-closed"
	EventTaskProposed    EventType = "task-proposed"
	EventTaskAccepted    EventType = "task-accepted"
	EventTaskRejected    EventType = "task-rejected"
)

// Direction qualifies EventReplicate.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Event is a single structured record appended to the ring buffer.
type Event struct {
	Type      EventType
	LogName   string
	AgentID   string
	PeerID    string
	Bytes     int
	Direction Direction
	Err       string
	Timestamp time.Time
	Fields    map[string]interface{}
}

// Metrics is the aggregate view returned by GetMetrics.
type Metrics struct {
	EventCounts  map[EventType]int64
	AppendsByLog map[string]int64
	BytesByLog   map[string]int64
	TotalErrors  int64
}

// Health is the threshold-derived view returned by GetHealth.
type Health struct {
	Healthy  bool
	Warnings []string
}

// Options configures a Logger. Zero value uses the spec.md §6 defaults.
type Options struct {
	MaxEvents int
	MaxErrors int
	WindowMs  int64
	Clock     clock.Clock
	Zap       *zap.Logger
}

const (
	defaultMaxEvents = 500
	defaultMaxErrors = 10
	defaultWindowMs  = 60_000
)

// Listener receives every recorded event. Unsubscribe removes it.
type Listener func(Event)

// Unsubscribe removes a previously registered listener.
type Unsubscribe func()

// Logger is the C9 ObservabilityLogger.
type Logger struct {
	mu sync.Mutex

	maxEvents int
	maxErrors int
	window    time.Duration

	clock clock.Clock
	zap   *zap.Logger

	ring     []Event
	counts   map[EventType]int64
	appends  map[string]int64
	bytes    map[string]int64
	errTimes []time.Time

	listeners   map[int]Listener
	nextHandle  int
}

// New constructs a Logger. A nil/zero Options uses spec.md §6 defaults.
func New(opts Options) *Logger {
	maxEvents := opts.MaxEvents
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	maxErrors := opts.MaxErrors
	if maxErrors <= 0 {
		maxErrors = defaultMaxErrors
	}
	windowMs := opts.WindowMs
	if windowMs <= 0 {
		windowMs = defaultWindowMs
	}
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	z := opts.Zap
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{
		maxEvents: maxEvents,
		maxErrors: maxErrors,
		window:    time.Duration(windowMs) * time.Millisecond,
		clock:     c,
		zap:       z,
		counts:    make(map[EventType]int64),
		appends:   make(map[string]int64),
		bytes:     make(map[string]int64),
		listeners: make(map[int]Listener),
	}
}

// Record appends ev to the ring buffer (evicting the oldest entry once
// full), updates counters, and notifies listeners.
func (l *Logger) Record(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.clock.Now()
	}

	l.mu.Lock()
	l.ring = append(l.ring, ev)
	if len(l.ring) > l.maxEvents {
		l.ring = l.ring[len(l.ring)-l.maxEvents:]
	}
	l.counts[ev.Type]++
	if ev.LogName != "" {
		if ev.Type == EventAppend || ev.Type == EventReplicate {
			l.appends[ev.LogName]++
			l.bytes[ev.LogName] += int64(ev.Bytes)
		}
	}
	if ev.Type == EventError {
		l.errTimes = append(l.errTimes, ev.Timestamp)
		l.errTimes = pruneWindow(l.errTimes, ev.Timestamp, l.window)
	}
	listeners := make([]Listener, 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	if ev.Type == EventError {
		l.zap.Error("observability event", zap.String("type", string(ev.Type)), zap.String("log", ev.LogName), zap.String("err", ev.Err))
	} else {
		l.zap.Debug("observability event", zap.String("type", string(ev.Type)), zap.String("log", ev.LogName), zap.Int("bytes", ev.Bytes))
	}

	for _, fn := range listeners {
		fn(ev)
	}
}

func pruneWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(times); i++ {
		if times[i].After(cutoff) {
			break
		}
	}
	return times[i:]
}

// GetMetrics returns a snapshot of aggregate counters.
func (l *Logger) GetMetrics() Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()

	m := Metrics{
		EventCounts:  make(map[EventType]int64, len(l.counts)),
		AppendsByLog: make(map[string]int64, len(l.appends)),
		BytesByLog:   make(map[string]int64, len(l.bytes)),
	}
	for k, v := range l.counts {
		m.EventCounts[k] = v
	}
	for k, v := range l.appends {
		m.AppendsByLog[k] = v
	}
	for k, v := range l.bytes {
		m.BytesByLog[k] = v
	}
	m.TotalErrors = l.counts[EventError]
	return m
}

// GetHealth reports whether the error-rate window is within max_errors.
func (l *Logger) GetHealth() Health {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.errTimes = pruneWindow(l.errTimes, now, l.window)
	h := Health{Healthy: true}
	if len(l.errTimes) > l.maxErrors {
		h.Healthy = false
		h.Warnings = append(h.Warnings, "error rate exceeds threshold within window")
	}
	return h
}

// GetRecentEvents returns up to limit most recent events, newest last.
func (l *Logger) GetRecentEvents(limit int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 || limit > len(l.ring) {
		limit = len(l.ring)
	}
	out := make([]Event, limit)
	copy(out, l.ring[len(l.ring)-limit:])
	return out
}

// On registers a listener and returns its Unsubscribe.
func (l *Logger) On(fn Listener) Unsubscribe {
	l.mu.Lock()
	handle := l.nextHandle
	l.nextHandle++
	l.listeners[handle] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.listeners, handle)
		l.mu.Unlock()
	}
}

// Reset clears the ring buffer, counters, and error window. Listeners
// remain registered.
func (l *Logger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ring = nil
	l.counts = make(map[EventType]int64)
	l.appends = make(map[string]int64)
	l.bytes = make(map[string]int64)
	l.errTimes = nil
}
