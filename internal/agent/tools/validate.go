// internal/agent/tools/validate.go
package tools

import (
	"fmt"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
)

const maxDurationSec = 100.0

func invalid(kind schemas.ActionKind, format string, args ...any) error {
	return &schemas.InvalidArgumentError{Action: kind, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks an action descriptor against the per-kind argument rules
// before any browser work happens. Validation is version independent;
// version gating is a separate check in the executor.
func Validate(a *schemas.ActionDescriptor) error {
	switch a.Kind {
	case schemas.ActionKey:
		if a.Text == "" {
			return invalid(a.Kind, "text is required")
		}
		if a.Coordinate != nil {
			return invalid(a.Kind, "coordinate is not accepted")
		}

	case schemas.ActionType:
		if a.Text == "" {
			return invalid(a.Kind, "text is required")
		}
		if a.Coordinate != nil {
			return invalid(a.Kind, "coordinate is not accepted")
		}

	case schemas.ActionHoldKey:
		if a.Text == "" {
			return invalid(a.Kind, "text is required")
		}
		if a.Coordinate != nil {
			return invalid(a.Kind, "coordinate is not accepted")
		}
		if err := checkDuration(a); err != nil {
			return err
		}

	case schemas.ActionWait:
		if a.Text != "" {
			return invalid(a.Kind, "text is not accepted")
		}
		if err := checkDuration(a); err != nil {
			return err
		}

	case schemas.ActionMouseMove, schemas.ActionLeftClickDrag,
		schemas.ActionLeftMouseDown, schemas.ActionLeftMouseUp:
		if a.Coordinate == nil {
			return invalid(a.Kind, "coordinate is required")
		}
		if a.Text != "" {
			return invalid(a.Kind, "text is not accepted")
		}

	case schemas.ActionLeftClick, schemas.ActionRightClick,
		schemas.ActionMiddleClick, schemas.ActionDoubleClick,
		schemas.ActionTripleClick:
		// Clicks accept an optional text chord for held modifier keys.
		if a.Coordinate == nil {
			return invalid(a.Kind, "coordinate is required")
		}

	case schemas.ActionScroll:
		if a.Coordinate == nil {
			return invalid(a.Kind, "coordinate is required")
		}
		switch a.ScrollDirection {
		case schemas.ScrollUp, schemas.ScrollDown, schemas.ScrollLeft, schemas.ScrollRight:
		default:
			return invalid(a.Kind, "scroll_direction must be up, down, left or right")
		}
		if a.ScrollAmount == nil || *a.ScrollAmount < 0 {
			return invalid(a.Kind, "scroll_amount must be a non-negative integer")
		}

	case schemas.ActionScreenshot, schemas.ActionCursorPosition:
		if a.Coordinate != nil {
			return invalid(a.Kind, "coordinate is not accepted")
		}
		if a.Text != "" {
			return invalid(a.Kind, "text is not accepted")
		}

	case schemas.ActionGoto:
		if a.URL == "" {
			return invalid(a.Kind, "url is required")
		}

	default:
		return invalid(a.Kind, "unknown action")
	}

	if a.Coordinate != nil {
		if a.Coordinate.X < 0 || a.Coordinate.Y < 0 {
			return invalid(a.Kind, "coordinate must be non-negative")
		}
	}
	return nil
}

func checkDuration(a *schemas.ActionDescriptor) error {
	if a.DurationSec == nil {
		return invalid(a.Kind, "duration is required")
	}
	d := *a.DurationSec
	if d < 0 {
		return invalid(a.Kind, "duration must be non-negative")
	}
	if d > maxDurationSec {
		return invalid(a.Kind, "duration must not exceed %v seconds", maxDurationSec)
	}
	return nil
}
