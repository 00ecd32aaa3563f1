// internal/agent/telemetry.go
package agent

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
)

// LogTelemetrySink writes tool-call events to the structured log. It is the
// default sink when the caller does not supply one.
type LogTelemetrySink struct {
	log *zap.Logger
}

// NewLogTelemetrySink builds a sink on the global logger.
func NewLogTelemetrySink() *LogTelemetrySink {
	return &LogTelemetrySink{log: observability.GetLogger().Named("telemetry")}
}

var _ schemas.TelemetrySink = (*LogTelemetrySink)(nil)

// Emit records one tool call.
func (s *LogTelemetrySink) Emit(event schemas.ToolCallEvent) {
	fields := []zap.Field{
		zap.String("tool_use_id", event.ToolUseID),
		zap.String("action", string(event.Action)),
		zap.Bool("succeeded", event.Succeeded),
		zap.Duration("duration", event.Duration),
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	s.log.Info("Tool call completed.", fields...)
}

// noopTelemetry drops events. Used in tests that do not care about them.
type noopTelemetry struct{}

func (noopTelemetry) Emit(schemas.ToolCallEvent) {}
