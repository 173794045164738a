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

// Package swarm is the C15 SwarmCoordinator: recruits capable agents,
// distributes sub-tasks across a session, and handles reassignment on
// failure (spec §4.15).
package swarm

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nova26/hypercore/a2a/envelope"
	"github.com/nova26/hypercore/a2a/registry"
	"github.com/nova26/hypercore/a2a/router"
	"github.com/nova26/hypercore/clock"
)

// SessionStatus is a SwarmSession's lifecycle state.
type SessionStatus string

const (
	SessionRecruiting SessionStatus = "recruiting"
	SessionActive     SessionStatus = "active"
	SessionCompleting SessionStatus = "completing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
)

// SubTaskStatus is a SubTask's lifecycle state.
type SubTaskStatus string

const (
	SubTaskPending   SubTaskStatus = "pending"
	SubTaskRunning   SubTaskStatus = "running"
	SubTaskCompleted SubTaskStatus = "completed"
	SubTaskFailed    SubTaskStatus = "failed"
)

// SubTask is one unit of work within a SwarmSession.
type SubTask struct {
	ID             string
	Description    string
	Status         SubTaskStatus
	AssignedAgent  string
	Result         interface{}
	FailedAgents   []string // agents that already failed or declined this sub-task
}

// Session is the spec §3 SwarmSession.
type Session struct {
	ID           string
	Description  string
	Participants []string
	SubTasks     []SubTask
	Status       SessionStatus
	SharedState  map[string]interface{}
}

// ErrNoCapableAgents is returned when no registered agent advertises
// any of the required capabilities.
var ErrNoCapableAgents = errors.New("swarm: no capable agents found")

// ErrSessionNotFound / ErrSubTaskNotFound report lookup failures.
var (
	ErrSessionNotFound = errors.New("swarm: session not found")
	ErrSubTaskNotFound = errors.New("swarm: sub-task not found")
)

// Coordinator is the C15 SwarmCoordinator.
type Coordinator struct {
	mu sync.Mutex

	coordinatorAgentID string
	reg                *registry.Registry
	router             *router.Router
	clock              clock.Clock

	sessions map[string]*Session
}

// New constructs a Coordinator that recruits via reg and sends proposals
// through r, acting as coordinatorAgentID.
func New(coordinatorAgentID string, reg *registry.Registry, r *router.Router, c clock.Clock) *Coordinator {
	if c == nil {
		c = clock.System{}
	}
	return &Coordinator{
		coordinatorAgentID: coordinatorAgentID,
		reg:                reg,
		router:             r,
		clock:              c,
		sessions:           make(map[string]*Session),
	}
}

// CreateSwarm finds capable agents, creates a recruiting session with
// all sub-tasks pending, and broadcasts a task-proposal to each capable
// agent concurrently (spec §4.15).
func (c *Coordinator) CreateSwarm(ctx context.Context, description string, requiredCapabilities, subTaskDescriptions []string) (*Session, error) {
	candidates := c.findCapableAgents(requiredCapabilities)
	if len(candidates) == 0 {
		return nil, ErrNoCapableAgents
	}

	subTasks := make([]SubTask, len(subTaskDescriptions))
	for i, desc := range subTaskDescriptions {
		subTasks[i] = SubTask{ID: uuid.NewString(), Description: desc, Status: SubTaskPending}
	}

	session := &Session{
		ID:          uuid.NewString(),
		Description: description,
		SubTasks:    subTasks,
		Status:      SessionRecruiting,
		SharedState: make(map[string]interface{}),
	}
	c.mu.Lock()
	c.sessions[session.ID] = session
	c.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, agentID := range candidates {
		agentID := agentID
		g.Go(func() error {
			env := envelope.Envelope{
				ID:            uuid.NewString(),
				Type:          envelope.TypeTaskPropose,
				From:          c.coordinatorAgentID,
				To:            agentID,
				CorrelationID: session.ID,
				Payload:       map[string]interface{}{"swarm_id": session.ID, "description": description},
				TimestampMs:   c.clock.Now().UnixMilli(),
			}
			_, err := c.router.Send(env, router.SendOptions{})
			return err
		})
	}
	_ = g.Wait() // a proposal failing to reach one candidate does not abort swarm creation

	return session, nil
}

func (c *Coordinator) findCapableAgents(capabilities []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, cap := range capabilities {
		for _, card := range c.reg.FindByCapability(cap) {
			if !seen[card.ID] {
				seen[card.ID] = true
				out = append(out, card.ID)
			}
		}
	}
	return out
}

// JoinSwarm adds agentID to the session's participants, assigns it the
// first pending sub-task (switching that sub-task to running), and
// transitions the session to active on its first participant.
func (c *Coordinator) JoinSwarm(swarmID, agentID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[swarmID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	session.Participants = append(session.Participants, agentID)
	if session.Status == SessionRecruiting {
		session.Status = SessionActive
	}

	for i := range session.SubTasks {
		if session.SubTasks[i].Status == SubTaskPending {
			session.SubTasks[i].Status = SubTaskRunning
			session.SubTasks[i].AssignedAgent = agentID
			break
		}
	}
	return session, nil
}

// CompleteSubTask marks subTaskID completed, stores result in the
// session's shared state, and finalizes the session once every sub-task
// reaches a terminal state.
func (c *Coordinator) CompleteSubTask(swarmID, subTaskID string, result interface{}) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[swarmID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	idx := findSubTask(session.SubTasks, subTaskID)
	if idx < 0 {
		return nil, ErrSubTaskNotFound
	}
	session.SubTasks[idx].Status = SubTaskCompleted
	session.SubTasks[idx].Result = result
	session.SharedState[subTaskID] = result

	c.finalizeIfTerminal(session)
	return session, nil
}

// FailSubTask attempts to reassign subTaskID to another participant not
// currently running any sub-task; if none is available, the sub-task
// becomes failed (spec §4.15).
func (c *Coordinator) FailSubTask(swarmID, subTaskID, reason string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[swarmID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	idx := findSubTask(session.SubTasks, subTaskID)
	if idx < 0 {
		return nil, ErrSubTaskNotFound
	}
	task := &session.SubTasks[idx]
	task.FailedAgents = append(task.FailedAgents, task.AssignedAgent)

	busy := make(map[string]bool)
	for _, t := range session.SubTasks {
		if t.Status == SubTaskRunning {
			busy[t.AssignedAgent] = true
		}
	}
	var replacement string
	for _, p := range session.Participants {
		if busy[p] || contains(task.FailedAgents, p) {
			continue
		}
		replacement = p
		break
	}

	if replacement == "" {
		task.Status = SubTaskFailed
		task.AssignedAgent = ""
	} else {
		task.Status = SubTaskRunning
		task.AssignedAgent = replacement
	}

	c.finalizeIfTerminal(session)
	return session, nil
}

func (c *Coordinator) finalizeIfTerminal(session *Session) {
	allTerminal := true
	anyFailed := false
	for _, t := range session.SubTasks {
		if t.Status != SubTaskCompleted && t.Status != SubTaskFailed {
			allTerminal = false
			break
		}
		if t.Status == SubTaskFailed {
			anyFailed = true
		}
	}
	if !allTerminal {
		return
	}
	if anyFailed {
		session.Status = SessionFailed
	} else {
		session.Status = SessionCompleted
	}
}

func findSubTask(tasks []SubTask, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// GetSession returns the session identified by swarmID.
func (c *Coordinator) GetSession(swarmID string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[swarmID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
