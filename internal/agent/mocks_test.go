// internal/agent/mocks_test.go
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
)

// scriptedClient returns canned responses in order and records every
// request it saw.
type scriptedClient struct {
	mu        sync.Mutex
	responses []*schemas.ModelResponse
	errs      []error
	requests  []schemas.ModelRequest
}

func (c *scriptedClient) CreateResponse(_ context.Context, req schemas.ModelRequest) (*schemas.ModelResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	idx := len(c.requests) - 1

	if idx < len(c.errs) && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	if idx >= len(c.responses) {
		return nil, fmt.Errorf("scripted client exhausted after %d responses", len(c.responses))
	}
	return c.responses[idx], nil
}

// recordingExecutor executes nothing; it records descriptors and returns
// the configured outcome or error per call.
type recordingExecutor struct {
	mu       sync.Mutex
	actions  []schemas.ActionDescriptor
	outcomes []*schemas.ActionOutcome
	errs     []error
}

func (e *recordingExecutor) Execute(_ context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.actions = append(e.actions, *a)
	idx := len(e.actions) - 1

	if idx < len(e.errs) && e.errs[idx] != nil {
		return nil, e.errs[idx]
	}
	if idx < len(e.outcomes) && e.outcomes[idx] != nil {
		return e.outcomes[idx], nil
	}
	return &schemas.ActionOutcome{ScreenshotB64: "c2hvdA=="}, nil
}

// collectingSink keeps emitted telemetry events for assertions.
type collectingSink struct {
	mu     sync.Mutex
	events []schemas.ToolCallEvent
}

func (s *collectingSink) Emit(event schemas.ToolCallEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectingSink) all() []schemas.ToolCallEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schemas.ToolCallEvent(nil), s.events...)
}

// -- Response builders --

func textResponse(text string, stop schemas.StopReason) *schemas.ModelResponse {
	return &schemas.ModelResponse{
		Content:    []schemas.ContentBlock{schemas.TextBlock(text)},
		StopReason: stop,
	}
}

func toolUseResponse(id string, action schemas.ActionDescriptor, checks ...schemas.PendingSafetyCheck) *schemas.ModelResponse {
	return &schemas.ModelResponse{
		Content: []schemas.ContentBlock{
			schemas.TextBlock("Working on it."),
			{
				Type:         schemas.BlockActionRequest,
				ID:           id,
				ToolName:     "computer",
				Action:       &action,
				SafetyChecks: checks,
			},
		},
		StopReason: schemas.StopToolUse,
	}
}
