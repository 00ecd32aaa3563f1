package schemas

import (
	"context"
	"time"
)

// -- Collaborator Interfaces --

// PageSession is the live page handle the action executor drives. The
// executor borrows it for the duration of one action and retains nothing
// between calls; ownership stays with the session manager.
type PageSession interface {
	// Navigate loads targetURL in the page. Destinations denied by the
	// session's network policy load as blocked/empty pages rather than
	// returning an error.
	Navigate(ctx context.Context, targetURL string) error
	// DispatchMouseEvent sends one raw mouse event in device pixels.
	DispatchMouseEvent(ctx context.Context, data MouseEventData) error
	// DispatchKeyEvent sends a key down/up pair for a single chord.
	DispatchKeyEvent(ctx context.Context, data KeyEventData) error
	// KeyDown / KeyUp hold and release a single key.
	KeyDown(ctx context.Context, data KeyEventData) error
	KeyUp(ctx context.Context, data KeyEventData) error
	// TypeText inserts literal text at the current focus, pausing perKeyDelay
	// between synthetic keystrokes.
	TypeText(ctx context.Context, text string, perKeyDelay time.Duration) error
	// CaptureScreenshot returns the viewport as a base64-encoded PNG.
	CaptureScreenshot(ctx context.Context) (string, error)
	// CurrentURL reports the page's current location.
	CurrentURL(ctx context.Context) (string, error)
	// Title reports the current document title.
	Title(ctx context.Context) (string, error)
	// Viewport reports the physical rendered size in device pixels.
	Viewport() Viewport
	// Sleep pauses for d, respecting ctx and the session lifetime.
	Sleep(ctx context.Context, d time.Duration) error
	// Close releases the page. In-flight actions fail fast afterwards.
	Close(ctx context.Context) error
}

// StopReason signals why the model ended its response.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// ToolSchema is one advertised tool definition, sent verbatim so the model
// knows the action surface. For versioned computer tools the Type/display
// fields apply; custom tools carry an InputSchema instead.
type ToolSchema struct {
	Name            string         `json:"name"`
	Type            string         `json:"type,omitempty"`
	Description     string         `json:"description,omitempty"`
	DisplayWidthPx  int            `json:"display_width_px,omitempty"`
	DisplayHeightPx int            `json:"display_height_px,omitempty"`
	InputSchema     map[string]any `json:"input_schema,omitempty"`
}

// ModelRequest is one outbound sampling request.
type ModelRequest struct {
	System         string
	SystemCached   bool
	Turns          Conversation
	Tools          []ToolSchema
	BetaFlags      []string
	MaxTokens      int
	ThinkingBudget int
}

// ModelResponse is the model's reply for one request.
type ModelResponse struct {
	Content    []ContentBlock
	StopReason StopReason
}

// ModelClient is the external model collaborator. Implementations own their
// transport concerns (retries, rate limits); the sampling loop treats any
// returned error as terminal.
type ModelClient interface {
	CreateResponse(ctx context.Context, req ModelRequest) (*ModelResponse, error)
}

// SafetyAcknowledger resolves a pending safety check. Returning false
// rejects the check and aborts the whole loop.
type SafetyAcknowledger func(message string) bool

// ToolCallEvent is per-tool-call telemetry, emitted after each dispatch.
type ToolCallEvent struct {
	ToolUseID string
	Action    ActionKind
	Arguments ActionDescriptor
	Succeeded bool
	Error     string
	Duration  time.Duration
}

// TelemetrySink receives tool-call events for external logging. Emit must
// not block the loop.
type TelemetrySink interface {
	Emit(event ToolCallEvent)
}
