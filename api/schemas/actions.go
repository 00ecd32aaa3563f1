package schemas

import (
	"encoding/json"
	"fmt"
)

// -- Action Schemas --

// ActionKind enumerates every input-device operation a model may request.
// A closed enumeration (rather than lookup-by-name) keeps dispatch
// exhaustive at compile time.
type ActionKind string

const (
	ActionKey            ActionKind = "key"
	ActionType           ActionKind = "type"
	ActionMouseMove      ActionKind = "mouse_move"
	ActionLeftClick      ActionKind = "left_click"
	ActionLeftClickDrag  ActionKind = "left_click_drag"
	ActionRightClick     ActionKind = "right_click"
	ActionMiddleClick    ActionKind = "middle_click"
	ActionDoubleClick    ActionKind = "double_click"
	ActionTripleClick    ActionKind = "triple_click"
	ActionLeftMouseDown  ActionKind = "left_mouse_down"
	ActionLeftMouseUp    ActionKind = "left_mouse_up"
	ActionScroll         ActionKind = "scroll"
	ActionHoldKey        ActionKind = "hold_key"
	ActionWait           ActionKind = "wait"
	ActionScreenshot     ActionKind = "screenshot"
	ActionCursorPosition ActionKind = "cursor_position"
	ActionGoto           ActionKind = "goto"
)

// ScrollDirection constrains the scroll action.
type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// Coordinate is an (x, y) pair in the model's logical display space. On the
// wire it is a two-element array, which is how the computer tool emits it.
type Coordinate struct {
	X int
	Y int
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.X, c.Y})
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var arr [2]int
	if err := json.Unmarshal(data, &arr); err == nil {
		c.X, c.Y = arr[0], arr[1]
		return nil
	}
	var obj struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("coordinate must be [x, y] or {x, y}: %w", err)
	}
	c.X, c.Y = obj.X, obj.Y
	return nil
}

// ActionDescriptor is the normalized form of one model-issued action.
// Which fields are required or forbidden depends on Kind; the executor
// validates before touching the page.
type ActionDescriptor struct {
	Kind            ActionKind      `json:"action"`
	Coordinate      *Coordinate     `json:"coordinate,omitempty"`
	Text            string          `json:"text,omitempty"`
	ScrollDirection ScrollDirection `json:"scroll_direction,omitempty"`
	ScrollAmount    *int            `json:"scroll_amount,omitempty"`
	DurationSec     *float64        `json:"duration,omitempty"`
	// Key is an optional modifier held during click actions.
	Key string `json:"key,omitempty"`
	// URL is the goto destination.
	URL string `json:"url,omitempty"`
}

// ActionOutcome is what the executor hands back for one action.
type ActionOutcome struct {
	// ScreenshotB64 is a base64 PNG of the viewport after the action settled.
	ScreenshotB64 string
	// Output is a textual note for the model (navigation summaries,
	// cursor reports).
	Output string
	// System is prepended to the result inside a <system> tag, invisible
	// framing for the model rather than page content.
	System string
}

// PendingSafetyCheck is attached to an action request by the model and must
// be acknowledged before the action executes.
type PendingSafetyCheck struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// MouseButton names a pointer button in CDP terms.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)
