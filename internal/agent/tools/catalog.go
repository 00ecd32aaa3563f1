// internal/agent/tools/catalog.go
package tools

import (
	"github.com/xkilldash9x/marionette-cli/api/schemas"
)

// -- Tool version catalog --
//
// Versions are plain data records rather than behavior subclasses. A record
// names the wire type the API expects, the beta flag the request must carry,
// and the set of actions the version accepts. Gating an action is a set
// lookup, not a type switch.

const (
	// Version20241022 is the original computer use tool.
	Version20241022 = "computer_use_20241022"
	// Version20250124 adds scroll, hold_key, wait, triple_click and the
	// split mouse press/release actions.
	Version20250124 = "computer_use_20250124"

	// PromptCachingBetaFlag enables cache_control markers on requests.
	PromptCachingBetaFlag = "prompt-caching-2024-07-31"

	// NavigateToolName is the custom URL navigation tool offered alongside
	// the computer tool in every version.
	NavigateToolName = "navigate"
	// ComputerToolName is the name both computer tool versions share.
	ComputerToolName = "computer"
)

// Version describes one published revision of the computer tool.
type Version struct {
	// ID is the configuration name, e.g. "computer_use_20250124".
	ID string
	// APIType is the "type" field sent in the tool schema.
	APIType string
	// BetaFlag is the anthropic-beta header value this version requires.
	BetaFlag string
	// Actions is the closed set of action kinds this version accepts.
	Actions map[schemas.ActionKind]struct{}
}

// Supports reports whether the version accepts the given action kind.
func (v *Version) Supports(kind schemas.ActionKind) bool {
	_, ok := v.Actions[kind]
	return ok
}

func actionSet(kinds ...schemas.ActionKind) map[schemas.ActionKind]struct{} {
	set := make(map[schemas.ActionKind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return set
}

var baseActions = []schemas.ActionKind{
	schemas.ActionKey,
	schemas.ActionType,
	schemas.ActionMouseMove,
	schemas.ActionLeftClick,
	schemas.ActionLeftClickDrag,
	schemas.ActionRightClick,
	schemas.ActionMiddleClick,
	schemas.ActionDoubleClick,
	schemas.ActionScreenshot,
	schemas.ActionCursorPosition,
}

var extendedActions = append([]schemas.ActionKind{
	schemas.ActionScroll,
	schemas.ActionHoldKey,
	schemas.ActionWait,
	schemas.ActionTripleClick,
	schemas.ActionLeftMouseDown,
	schemas.ActionLeftMouseUp,
}, baseActions...)

var catalog = map[string]*Version{
	Version20241022: {
		ID:       Version20241022,
		APIType:  "computer_20241022",
		BetaFlag: "computer-use-2024-10-22",
		Actions:  actionSet(baseActions...),
	},
	Version20250124: {
		ID:       Version20250124,
		APIType:  "computer_20250124",
		BetaFlag: "computer-use-2025-01-24",
		Actions:  actionSet(extendedActions...),
	},
}

// ResolveVersion looks up a tool version by its configuration name.
func ResolveVersion(id string) (*Version, error) {
	v, ok := catalog[id]
	if !ok {
		return nil, &schemas.UnknownToolVersionError{Version: id}
	}
	return v, nil
}

// Schemas returns the tool definitions advertised to the model for this
// version at the given logical display size.
func (v *Version) Schemas(width, height int) []schemas.ToolSchema {
	return []schemas.ToolSchema{
		{
			Name:            ComputerToolName,
			Type:            v.APIType,
			DisplayWidthPx:  width,
			DisplayHeightPx: height,
		},
		{
			Name:        NavigateToolName,
			Description: "Navigate the browser tab to a URL.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "The URL to open.",
					},
				},
				"required": []string{"url"},
			},
		},
	}
}
