// internal/agent/models.go
package agent

import "github.com/xkilldash9x/marionette-cli/api/schemas"

// LoopState tracks where the sampling loop is within one iteration. States
// exist for observability; transitions are linear and never skip.
type LoopState string

const (
	// StateAwaitingModel means a sampling request is in flight.
	StateAwaitingModel LoopState = "AWAITING_MODEL"
	// StateProcessingResponse means the reply is being recorded and scanned
	// for action requests.
	StateProcessingResponse LoopState = "PROCESSING_RESPONSE"
	// StateDispatchingActions means requested actions are executing against
	// the browser.
	StateDispatchingActions LoopState = "DISPATCHING_ACTIONS"
	// StateTerminal means the loop has ended, successfully or not.
	StateTerminal LoopState = "TERMINAL"
)

// Result is what a finished run hands back: the complete conversation and
// the model's final prose. The conversation is populated even on error so
// callers can inspect or export the partial transcript.
type Result struct {
	Conversation schemas.Conversation
	// FinalText is the last text block the model produced, usually its
	// summary of what it accomplished.
	FinalText string
}
