// internal/agent/loop.go

// Package agent implements the sampling loop that lets a vision model drive
// a browser: sample, record the reply, dispatch requested actions, feed the
// results back, repeat until the model stops asking.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
	"github.com/xkilldash9x/marionette-cli/internal/agent/display"
	"github.com/xkilldash9x/marionette-cli/internal/agent/history"
	"github.com/xkilldash9x/marionette-cli/internal/agent/tools"
	"github.com/xkilldash9x/marionette-cli/internal/config"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
)

// ActionExecutor is the dispatch collaborator. tools.Executor is the real
// implementation; tests substitute their own.
type ActionExecutor interface {
	Execute(ctx context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error)
}

// Options carries everything a Loop needs. Client and Executor are
// required; the rest defaults sensibly.
type Options struct {
	Config       config.AgentConfig
	Client       schemas.ModelClient
	Executor     ActionExecutor
	Acknowledger schemas.SafetyAcknowledger
	Telemetry    schemas.TelemetrySink
	// Now is injectable so the system prompt's date is testable.
	Now func() time.Time
}

// Loop runs the agent conversation. It owns no retries and no iteration
// cap: the model decides when the task is done, and transport failures end
// the run with whatever transcript exists.
type Loop struct {
	client       schemas.ModelClient
	executor     ActionExecutor
	history      *history.Manager
	version      *tools.Version
	display      config.DisplayConfig
	acknowledger schemas.SafetyAcknowledger
	telemetry    schemas.TelemetrySink
	systemPrompt string
	maxTokens    int
	thinking     int
	log          *zap.Logger

	state LoopState
}

// NewLoop validates the options and resolves the tool version. An unknown
// version fails here, never mid-run.
func NewLoop(opts Options) (*Loop, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("action executor is required")
	}

	version, err := tools.ResolveVersion(opts.Config.ToolVersion)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	telemetry := opts.Telemetry
	if telemetry == nil {
		telemetry = NewLogTelemetrySink()
	}

	return &Loop{
		client:       opts.Client,
		executor:     opts.Executor,
		history:      history.NewManager(opts.Config.ImageBudget, opts.Config.ImageRemovalBatch),
		version:      version,
		display:      opts.Config.Display,
		acknowledger: opts.Acknowledger,
		telemetry:    telemetry,
		systemPrompt: SystemPrompt(now(), opts.Config.SystemPromptSuffix),
		maxTokens:    opts.Config.LLM.MaxTokens,
		thinking:     opts.Config.LLM.ThinkingBudget,
		log:          observability.GetLogger().Named("loop"),
		state:        StateAwaitingModel,
	}, nil
}

// State reports the loop's current phase.
func (l *Loop) State() LoopState {
	return l.state
}

// Run executes the conversation for one task until the model stops
// requesting actions or a fatal error occurs. The returned Result carries
// the transcript in both cases.
func (l *Loop) Run(ctx context.Context, task string) (*Result, error) {
	conv := schemas.Conversation{
		{Role: schemas.RoleUser, Blocks: []schemas.ContentBlock{schemas.TextBlock(task)}},
	}
	result := &Result{}

	defer func() { l.state = StateTerminal }()

	for iteration := 1; ; iteration++ {
		l.state = StateAwaitingModel
		l.history.Maintain(conv)

		resp, err := l.client.CreateResponse(ctx, schemas.ModelRequest{
			System:         l.systemPrompt,
			SystemCached:   true,
			Turns:          conv,
			Tools:          l.version.Schemas(l.display.Width, l.display.Height),
			BetaFlags:      []string{l.version.BetaFlag, tools.PromptCachingBetaFlag},
			MaxTokens:      l.maxTokens,
			ThinkingBudget: l.thinking,
		})
		if err != nil {
			result.Conversation = conv
			return result, &schemas.ModelTransportError{Err: err}
		}

		l.state = StateProcessingResponse
		conv = append(conv, schemas.Turn{Role: schemas.RoleAssistant, Blocks: resp.Content})

		for _, block := range resp.Content {
			if block.Type == schemas.BlockText && block.Text != "" {
				result.FinalText = block.Text
			}
		}

		l.log.Debug("Model response processed.",
			zap.Int("iteration", iteration),
			zap.String("stop_reason", string(resp.StopReason)),
			zap.Int("blocks", len(resp.Content)),
		)

		if resp.StopReason == schemas.StopEndTurn {
			result.Conversation = conv
			return result, nil
		}

		requests := actionRequests(resp.Content)
		if len(requests) == 0 {
			result.Conversation = conv
			return result, nil
		}

		l.state = StateDispatchingActions
		resultBlocks := make([]schemas.ContentBlock, 0, len(requests))
		for _, req := range requests {
			block, err := l.dispatch(ctx, req)
			if err != nil {
				if len(resultBlocks) > 0 {
					conv = append(conv, schemas.Turn{Role: schemas.RoleUser, Blocks: resultBlocks})
				}
				result.Conversation = conv
				return result, err
			}
			resultBlocks = append(resultBlocks, block)
		}

		conv = append(conv, schemas.Turn{Role: schemas.RoleUser, Blocks: resultBlocks})
	}
}

func actionRequests(blocks []schemas.ContentBlock) []schemas.ContentBlock {
	var out []schemas.ContentBlock
	for _, b := range blocks {
		if b.Type == schemas.BlockActionRequest {
			out = append(out, b)
		}
	}
	return out
}

// dispatch runs one requested action and shapes its tool result. A nil
// error with an is_error result block means the failure was recoverable
// and the model gets to react to it.
func (l *Loop) dispatch(ctx context.Context, req schemas.ContentBlock) (schemas.ContentBlock, error) {
	for _, check := range req.SafetyChecks {
		if l.acknowledger == nil || !l.acknowledger(check.Message) {
			return schemas.ContentBlock{}, &schemas.SafetyRejectedError{
				CheckID: check.ID,
				Message: check.Message,
			}
		}
		l.log.Warn("Safety check acknowledged.",
			zap.String("check_id", check.ID),
			zap.String("message", check.Message),
		)
	}

	if req.Action == nil {
		return errorResult(req.ID, fmt.Errorf("tool call %q carried no arguments", req.ToolName)), nil
	}

	start := time.Now()
	outcome, err := l.executor.Execute(ctx, req.Action)
	elapsed := time.Since(start)

	l.telemetry.Emit(schemas.ToolCallEvent{
		ToolUseID: req.ID,
		Action:    req.Action.Kind,
		Arguments: *req.Action,
		Succeeded: err == nil,
		Error:     errString(err),
		Duration:  elapsed,
	})

	if err != nil {
		if isRecoverable(err) {
			l.log.Warn("Action failed recoverably.",
				zap.String("action", string(req.Action.Kind)),
				zap.Error(err),
			)
			return errorResult(req.ID, err), nil
		}
		return schemas.ContentBlock{}, fmt.Errorf("action %s failed fatally: %w", req.Action.Kind, err)
	}

	return successResult(req.ID, outcome), nil
}

// isRecoverable classifies an execution error. Bad arguments, unsupported
// actions and out-of-bounds coordinates are the model's mistakes to correct;
// everything else means the browser or transport is broken.
func isRecoverable(err error) bool {
	var invalidErr *schemas.InvalidArgumentError
	var unsupportedErr *schemas.UnsupportedInVersionError
	var oobErr *display.ErrOutOfBounds
	return errors.As(err, &invalidErr) ||
		errors.As(err, &unsupportedErr) ||
		errors.As(err, &oobErr)
}

func errorResult(toolUseID string, err error) schemas.ContentBlock {
	return schemas.ContentBlock{
		Type:      schemas.BlockActionResult,
		ToolUseID: toolUseID,
		IsError:   true,
		Content:   []schemas.ContentBlock{schemas.TextBlock(err.Error())},
	}
}

func successResult(toolUseID string, outcome *schemas.ActionOutcome) schemas.ContentBlock {
	var content []schemas.ContentBlock

	text := outcome.Output
	if outcome.System != "" {
		text = "<system>" + outcome.System + "</system>\n" + text
	}
	if text != "" {
		content = append(content, schemas.TextBlock(text))
	}
	if outcome.ScreenshotB64 != "" {
		content = append(content, schemas.ImageBlock(outcome.ScreenshotB64))
	}
	if len(content) == 0 {
		content = append(content, schemas.TextBlock("Tool executed successfully."))
	}

	return schemas.ContentBlock{
		Type:      schemas.BlockActionResult,
		ToolUseID: toolUseID,
		Content:   content,
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
