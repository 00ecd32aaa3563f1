// internal/agent/loop_test.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
	"github.com/xkilldash9x/marionette-cli/internal/agent/tools"
	"github.com/xkilldash9x/marionette-cli/internal/config"
)

func testAgentConfig() config.AgentConfig {
	cfg := config.NewDefaultConfig().Agent
	cfg.ToolVersion = tools.Version20250124
	return cfg
}

func newTestLoop(t *testing.T, client *scriptedClient, exec *recordingExecutor) *Loop {
	t.Helper()
	loop, err := NewLoop(Options{
		Config:    testAgentConfig(),
		Client:    client,
		Executor:  exec,
		Telemetry: noopTelemetry{},
	})
	require.NoError(t, err)
	return loop
}

func clickAction(x, y int) schemas.ActionDescriptor {
	return schemas.ActionDescriptor{
		Kind:       schemas.ActionLeftClick,
		Coordinate: &schemas.Coordinate{X: x, Y: y},
	}
}

func TestNewLoopRejectsUnknownToolVersion(t *testing.T) {
	cfg := testAgentConfig()
	cfg.ToolVersion = "computer_use_20300101"

	_, err := NewLoop(Options{
		Config:   cfg,
		Client:   &scriptedClient{},
		Executor: &recordingExecutor{},
	})
	require.Error(t, err)

	var unknownErr *schemas.UnknownToolVersionError
	assert.True(t, errors.As(err, &unknownErr))
}

func TestNewLoopRequiresCollaborators(t *testing.T) {
	_, err := NewLoop(Options{Config: testAgentConfig(), Executor: &recordingExecutor{}})
	require.Error(t, err)

	_, err = NewLoop(Options{Config: testAgentConfig(), Client: &scriptedClient{}})
	require.Error(t, err)
}

func TestRunSingleActionRoundTrip(t *testing.T) {
	client := &scriptedClient{responses: []*schemas.ModelResponse{
		toolUseResponse("toolu_1", clickAction(100, 100)),
		textResponse("Clicked the button, task complete.", schemas.StopEndTurn),
	}}
	exec := &recordingExecutor{}
	loop := newTestLoop(t, client, exec)

	result, err := loop.Run(context.Background(), "click the button")
	require.NoError(t, err)

	// Task, assistant, tool results, final assistant.
	require.Len(t, result.Conversation, 4)
	assert.Equal(t, schemas.RoleUser, result.Conversation[0].Role)
	assert.Equal(t, schemas.RoleAssistant, result.Conversation[1].Role)
	assert.Equal(t, schemas.RoleUser, result.Conversation[2].Role)
	assert.Equal(t, schemas.RoleAssistant, result.Conversation[3].Role)

	// The tool result correlates with the request and carries a screenshot.
	resultBlock := result.Conversation[2].Blocks[0]
	assert.Equal(t, schemas.BlockActionResult, resultBlock.Type)
	assert.Equal(t, "toolu_1", resultBlock.ToolUseID)
	assert.False(t, resultBlock.IsError)
	require.NotEmpty(t, resultBlock.Content)
	assert.Equal(t, schemas.BlockImage, resultBlock.Content[len(resultBlock.Content)-1].Type)

	require.Len(t, exec.actions, 1)
	assert.Equal(t, schemas.ActionLeftClick, exec.actions[0].Kind)
	assert.Equal(t, "Clicked the button, task complete.", result.FinalText)
	assert.Equal(t, StateTerminal, loop.State())
}

func TestRunEndTurnSkipsDispatch(t *testing.T) {
	// A response carrying tool_use blocks but stop_reason end_turn must not
	// execute anything.
	resp := toolUseResponse("toolu_1", clickAction(5, 5))
	resp.StopReason = schemas.StopEndTurn

	client := &scriptedClient{responses: []*schemas.ModelResponse{resp}}
	exec := &recordingExecutor{}
	loop := newTestLoop(t, client, exec)

	result, err := loop.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Empty(t, exec.actions)
	assert.Len(t, result.Conversation, 2)
}

func TestRunNoActionRequestsTerminates(t *testing.T) {
	client := &scriptedClient{responses: []*schemas.ModelResponse{
		textResponse("I cannot proceed further.", schemas.StopMaxTokens),
	}}
	exec := &recordingExecutor{}
	loop := newTestLoop(t, client, exec)

	result, err := loop.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Len(t, result.Conversation, 2)
	assert.Equal(t, "I cannot proceed further.", result.FinalText)
}

func TestRunRecoverableErrorFedBack(t *testing.T) {
	badAction := schemas.ActionDescriptor{Kind: schemas.ActionLeftClick} // no coordinate

	client := &scriptedClient{responses: []*schemas.ModelResponse{
		toolUseResponse("toolu_1", badAction),
		textResponse("Understood, stopping.", schemas.StopEndTurn),
	}}
	exec := &recordingExecutor{errs: []error{
		&schemas.InvalidArgumentError{Action: schemas.ActionLeftClick, Reason: "coordinate is required"},
	}}
	loop := newTestLoop(t, client, exec)

	result, err := loop.Run(context.Background(), "task")
	require.NoError(t, err)

	resultBlock := result.Conversation[2].Blocks[0]
	assert.True(t, resultBlock.IsError)
	require.NotEmpty(t, resultBlock.Content)
	assert.Contains(t, resultBlock.Content[0].Text, "coordinate is required")

	// The loop continued: the second sampling request included the error.
	require.Len(t, client.requests, 2)
}

func TestRunFatalExecutionErrorEndsLoop(t *testing.T) {
	client := &scriptedClient{responses: []*schemas.ModelResponse{
		toolUseResponse("toolu_1", clickAction(1, 1)),
	}}
	exec := &recordingExecutor{errs: []error{fmt.Errorf("websocket closed")}}
	loop := newTestLoop(t, client, exec)

	result, err := loop.Run(context.Background(), "task")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket closed")
	// The transcript up to the failure is preserved.
	require.NotNil(t, result)
	assert.GreaterOrEqual(t, len(result.Conversation), 2)
}

func TestRunTransportErrorReturnsPartialConversation(t *testing.T) {
	client := &scriptedClient{
		responses: []*schemas.ModelResponse{
			toolUseResponse("toolu_1", clickAction(1, 1)),
		},
		errs: []error{nil, fmt.Errorf("connection refused")},
	}
	exec := &recordingExecutor{}
	loop := newTestLoop(t, client, exec)

	result, err := loop.Run(context.Background(), "task")
	require.Error(t, err)

	var transportErr *schemas.ModelTransportError
	require.True(t, errors.As(err, &transportErr))

	// One full iteration happened before the failure.
	require.NotNil(t, result)
	assert.Len(t, result.Conversation, 3)
}

func TestRunSafetyCheckRejected(t *testing.T) {
	check := schemas.PendingSafetyCheck{ID: "sc_1", Message: "about to submit a form"}
	client := &scriptedClient{responses: []*schemas.ModelResponse{
		toolUseResponse("toolu_1", clickAction(1, 1), check),
	}}
	exec := &recordingExecutor{}

	loop, err := NewLoop(Options{
		Config:       testAgentConfig(),
		Client:       client,
		Executor:     exec,
		Telemetry:    noopTelemetry{},
		Acknowledger: func(string) bool { return false },
	})
	require.NoError(t, err)

	_, err = loop.Run(context.Background(), "task")
	require.Error(t, err)

	var safetyErr *schemas.SafetyRejectedError
	require.True(t, errors.As(err, &safetyErr))
	assert.Equal(t, "sc_1", safetyErr.CheckID)
	assert.Empty(t, exec.actions)
}

func TestRunSafetyCheckWithoutAcknowledgerRejects(t *testing.T) {
	check := schemas.PendingSafetyCheck{ID: "sc_2", Message: "risky"}
	client := &scriptedClient{responses: []*schemas.ModelResponse{
		toolUseResponse("toolu_1", clickAction(1, 1), check),
	}}
	loop := newTestLoop(t, client, &recordingExecutor{})

	_, err := loop.Run(context.Background(), "task")
	var safetyErr *schemas.SafetyRejectedError
	require.True(t, errors.As(err, &safetyErr))
}

func TestRunSafetyCheckAcknowledgedProceeds(t *testing.T) {
	check := schemas.PendingSafetyCheck{ID: "sc_3", Message: "proceed?"}
	client := &scriptedClient{responses: []*schemas.ModelResponse{
		toolUseResponse("toolu_1", clickAction(1, 1), check),
		textResponse("done", schemas.StopEndTurn),
	}}
	exec := &recordingExecutor{}

	var asked []string
	loop, err := NewLoop(Options{
		Config:    testAgentConfig(),
		Client:    client,
		Executor:  exec,
		Telemetry: noopTelemetry{},
		Acknowledger: func(msg string) bool {
			asked = append(asked, msg)
			return true
		},
	})
	require.NoError(t, err)

	_, err = loop.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, []string{"proceed?"}, asked)
	assert.Len(t, exec.actions, 1)
}

func TestRunRequestCarriesToolsAndBetaFlags(t *testing.T) {
	client := &scriptedClient{responses: []*schemas.ModelResponse{
		textResponse("done", schemas.StopEndTurn),
	}}
	loop := newTestLoop(t, client, &recordingExecutor{})

	_, err := loop.Run(context.Background(), "task")
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	req := client.requests[0]

	assert.True(t, req.SystemCached)
	assert.Contains(t, req.System, "browser tab")
	assert.Contains(t, req.BetaFlags, "computer-use-2025-01-24")
	assert.Contains(t, req.BetaFlags, tools.PromptCachingBetaFlag)

	require.Len(t, req.Tools, 2)
	assert.Equal(t, "computer", req.Tools[0].Name)
	assert.Equal(t, 1024, req.Tools[0].DisplayWidthPx)
	assert.Equal(t, "navigate", req.Tools[1].Name)
}

func TestRunEmitsTelemetry(t *testing.T) {
	client := &scriptedClient{responses: []*schemas.ModelResponse{
		toolUseResponse("toolu_1", clickAction(2, 3)),
		textResponse("done", schemas.StopEndTurn),
	}}
	sink := &collectingSink{}

	loop, err := NewLoop(Options{
		Config:    testAgentConfig(),
		Client:    client,
		Executor:  &recordingExecutor{},
		Telemetry: sink,
	})
	require.NoError(t, err)

	_, err = loop.Run(context.Background(), "task")
	require.NoError(t, err)

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "toolu_1", events[0].ToolUseID)
	assert.Equal(t, schemas.ActionLeftClick, events[0].Action)
	assert.True(t, events[0].Succeeded)
}

func TestSystemPromptInterpolatesDateAndSuffix(t *testing.T) {
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	prompt := SystemPrompt(now, "")
	assert.Contains(t, prompt, "Saturday, March 14, 2026")

	withSuffix := SystemPrompt(now, "Prefer the staging environment.")
	assert.Contains(t, withSuffix, "Prefer the staging environment.")
	assert.Greater(t, len(withSuffix), len(prompt))
}
