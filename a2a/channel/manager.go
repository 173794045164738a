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

package channel

import "sync"

type channelKey struct {
	from, to string
}

// Manager is the C13 ChannelManager: keys Channels by (from, to),
// returning the existing one or creating it on demand.
type Manager struct {
	mu       sync.Mutex
	options  Options
	channels map[channelKey]*Channel
}

// NewManager constructs a Manager that creates Channels with opts.
func NewManager(opts Options) *Manager {
	return &Manager{options: opts, channels: make(map[channelKey]*Channel)}
}

// Get returns the existing (from, to) Channel, creating one if absent.
func (m *Manager) Get(from, to string) *Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := channelKey{from: from, to: to}
	if c, ok := m.channels[key]; ok {
		return c
	}
	c := New(from, to, m.options)
	m.channels[key] = c
	return c
}

// CloseAll destroys every channel and clears the manager's map.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.channels {
		c.Close()
	}
	m.channels = make(map[channelKey]*Channel)
}

// Channels returns every currently tracked channel.
func (m *Manager) Channels() []*Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Channel, 0, len(m.channels))
	for _, c := range m.channels {
		out = append(out, c)
	}
	return out
}
