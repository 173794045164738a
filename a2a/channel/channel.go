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

// Package channel is the C13 Channel & ChannelManager: a unidirectional,
// ordered, in-process queue between two agents with a connect/retry
// state machine (spec §4.13).
package channel

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/nova26/hypercore/a2a/envelope"
	"github.com/nova26/hypercore/clock"
)

// State is a Channel's connection state.
type State string

const (
	StateConnecting  State = "connecting"
	StateOpen        State = "open"
	StateReconnecting State = "reconnecting"
	StateClosed      State = "closed"
)

// ErrQueueFull is returned by Send when max_queue_size is reached.
var ErrQueueFull = errors.New("channel: queue full")

// ErrClosed is returned by Send on a closed channel.
var ErrClosed = errors.New("channel: closed")

// Handler processes one delivered envelope.
type Handler func(envelope.Envelope) error

// Options configures a Channel.
type Options struct {
	MaxRetries   int
	RetryBaseMs  int64
	MaxQueueSize int
	Clock        clock.Clock
}

const (
	defaultMaxRetries   = 3
	defaultRetryBaseMs  = 100
	defaultMaxQueueSize = 100
)

// Channel is the C13 Channel.
type Channel struct {
	mu sync.Mutex

	from, to string
	state    State
	handlers []Handler

	maxRetries   int
	retryBaseMs  int64
	maxQueueSize int
	queued       int

	clock clock.Clock

	// orderMu serializes the deliver-with-retry critical section so
	// concurrent Send calls preserve submission order (spec §4.13).
	orderMu sync.Mutex
}

// New constructs a Channel from -> to, starting in the connecting state.
func New(from, to string, opts Options) *Channel {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryBase := opts.RetryBaseMs
	if retryBase <= 0 {
		retryBase = defaultRetryBaseMs
	}
	maxQueue := opts.MaxQueueSize
	if maxQueue <= 0 {
		maxQueue = defaultMaxQueueSize
	}
	c := opts.Clock
	if c == nil {
		c = clock.System{}
	}
	return &Channel{
		from:         from,
		to:           to,
		state:        StateConnecting,
		maxRetries:   maxRetries,
		retryBaseMs:  retryBase,
		maxQueueSize: maxQueue,
		clock:        c,
	}
}

// From returns the channel's sender id.
func (c *Channel) From() string { return c.from }

// To returns the channel's recipient id.
func (c *Channel) To() string { return c.to }

// State returns the channel's current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RegisterHandler subscribes fn to every envelope this channel delivers.
func (c *Channel) RegisterHandler(fn Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

// Send delivers env to every registered handler, retrying on failure up
// to max_retries with exponential backoff (base × 2^(n-1)). Concurrent
// Send calls are serialized so handler invocations preserve submission
// order (spec §4.13).
func (c *Channel) Send(env envelope.Envelope) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.queued >= c.maxQueueSize {
		c.mu.Unlock()
		return ErrQueueFull
	}
	c.queued++
	c.mu.Unlock()

	c.orderMu.Lock()
	defer c.orderMu.Unlock()
	defer func() {
		c.mu.Lock()
		c.queued--
		c.mu.Unlock()
	}()

	return c.deliverWithRetry(env)
}

func (c *Channel) deliverWithRetry(env envelope.Envelope) error {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     time.Duration(c.retryBaseMs) * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Hour,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := c.invokeHandlers(env)
		if err == nil {
			c.setState(StateOpen)
			return nil
		}
		lastErr = err
		if attempt == c.maxRetries {
			break
		}
		c.setState(StateReconnecting)
		delay := b.NextBackOff()
		<-c.clock.After(delay)
	}
	c.setState(StateOpen)
	return errors.Wrapf(lastErr, "channel: delivery failed after %d retries", c.maxRetries)
}

func (c *Channel) invokeHandlers(env envelope.Envelope) error {
	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers...)
	c.mu.Unlock()

	if len(handlers) == 0 {
		return errors.New("channel: no handler registered")
	}
	var firstErr error
	for _, h := range handlers {
		if err := h(env); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Close transitions the channel to closed. Further Send calls fail.
func (c *Channel) Close() {
	c.setState(StateClosed)
}
