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

// Package mcp is the C16 MCPBridge: namespaces tool/resource/prompt
// registrations per agent and never lets a handler panic or error
// escape InvokeTool (spec §4.16).
package mcp

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/nova26/hypercore/clock"
)

// ToolHandler executes a tool invocation and returns its raw output.
type ToolHandler func(args map[string]interface{}) (interface{}, error)

// PromptTemplate is a prompt body containing {{arg}} placeholders.
type PromptTemplate struct {
	Template  string
	ArgNames  []string
}

// ToolResult is always returned by InvokeTool, never an error: handler
// panics and errors both collapse into Success=false (spec §4.16).
type ToolResult struct {
	Success    bool
	Output     interface{}
	Error      string
	DurationMs int64
	ToolName   string
	AgentID    string
}

// Error codes returned for ReadResource / GetPrompt lookup failures.
const (
	ErrCodeResourceNotFound = "RESOURCE_NOT_FOUND"
	ErrCodePromptNotFound   = "PROMPT_NOT_FOUND"
)

// ErrDuplicateRegistration is returned when the same namespaced name is
// registered twice.
var ErrDuplicateRegistration = errors.New("mcp: name already registered")

// NotFoundError reports a missing resource or prompt by code.
type NotFoundError struct {
	Code string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mcp: %s: %s", e.Code, e.Name)
}

// Bridge is the C16 MCPBridge.
type Bridge struct {
	mu sync.Mutex

	clock clock.Clock

	tools     map[string]ToolHandler
	resources map[string]interface{}
	prompts   map[string]PromptTemplate
}

// New constructs an empty Bridge.
func New(c clock.Clock) *Bridge {
	if c == nil {
		c = clock.System{}
	}
	return &Bridge{
		clock:     c,
		tools:     make(map[string]ToolHandler),
		resources: make(map[string]interface{}),
		prompts:   make(map[string]PromptTemplate),
	}
}

// namespacedName builds the "{agent_id}.{name}" key spec §4.16 requires.
func namespacedName(agentID, name string) string {
	return agentID + "." + name
}

// RegisterTool namespaces toolName under agentID; a duplicate namespaced
// name fails rather than overwriting the existing handler.
func (b *Bridge) RegisterTool(agentID, toolName string, handler ToolHandler) error {
	key := namespacedName(agentID, toolName)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.tools[key]; exists {
		return errors.Wrapf(ErrDuplicateRegistration, "tool=%s", key)
	}
	b.tools[key] = handler
	return nil
}

// InvokeTool runs the namespaced tool, converting any handler error or
// panic into a failed ToolResult rather than propagating it (spec
// §4.16).
func (b *Bridge) InvokeTool(agentID, toolName string, args map[string]interface{}) ToolResult {
	key := namespacedName(agentID, toolName)
	b.mu.Lock()
	handler, ok := b.tools[key]
	b.mu.Unlock()

	result := ToolResult{ToolName: toolName, AgentID: agentID}
	if !ok {
		result.Error = "tool not registered: " + key
		return result
	}

	start := b.clock.Now()
	result.Output, result.Success = safeInvoke(handler, args, &result.Error)
	result.DurationMs = b.clock.Now().Sub(start).Milliseconds()
	return result
}

func safeInvoke(handler ToolHandler, args map[string]interface{}, errOut *string) (out interface{}, success bool) {
	defer func() {
		if r := recover(); r != nil {
			success = false
			*errOut = fmt.Sprintf("panic: %v", r)
		}
	}()
	output, err := handler(args)
	if err != nil {
		*errOut = err.Error()
		return nil, false
	}
	return output, true
}

// RegisterResource stores a resource under its URI.
func (b *Bridge) RegisterResource(uri string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resources[uri] = value
}

// ReadResource returns the resource at uri, or a NotFoundError.
func (b *Bridge) ReadResource(uri string) (interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.resources[uri]
	if !ok {
		return nil, &NotFoundError{Code: ErrCodeResourceNotFound, Name: uri}
	}
	return v, nil
}

// RegisterPrompt stores a prompt template under name.
func (b *Bridge) RegisterPrompt(name string, tmpl PromptTemplate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompts[name] = tmpl
}

// GetPrompt substitutes {{arg}} placeholders in the named prompt's
// template with the provided args; unrecognized placeholders are left
// untouched.
func (b *Bridge) GetPrompt(name string, args map[string]string) (string, error) {
	b.mu.Lock()
	tmpl, ok := b.prompts[name]
	b.mu.Unlock()
	if !ok {
		return "", &NotFoundError{Code: ErrCodePromptNotFound, Name: name}
	}

	out := tmpl.Template
	for _, argName := range tmpl.ArgNames {
		value, provided := args[argName]
		if !provided {
			continue
		}
		out = strings.ReplaceAll(out, "{{"+argName+"}}", value)
	}
	return out, nil
}
