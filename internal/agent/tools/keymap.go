// internal/agent/tools/keymap.go
package tools

import (
	"strings"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
)

// KeyMap translates the key names models emit (xdotool-flavored) into CDP
// key names. Instances are immutable after construction and injected into
// the executor, so tests and parallel loops can carry independent maps.
type KeyMap struct {
	keys      map[string]string
	modifiers map[string]string
}

// NewDefaultKeyMap returns the standard translation table.
func NewDefaultKeyMap() *KeyMap {
	return &KeyMap{
		modifiers: map[string]string{
			"ctrl":    "Control",
			"control": "Control",
			"alt":     "Alt",
			"shift":   "Shift",
			"command": "Meta",
			"cmd":     "Meta",
			"win":     "Meta",
			"super":   "Meta",
			"super_l": "Meta",
		},
		keys: map[string]string{
			"return":    "Enter",
			"enter":     "Enter",
			"space":     " ",
			"left":      "ArrowLeft",
			"right":     "ArrowRight",
			"up":        "ArrowUp",
			"down":      "ArrowDown",
			"home":      "Home",
			"end":       "End",
			"pageup":    "PageUp",
			"page_up":   "PageUp",
			"pagedown":  "PageDown",
			"page_down": "PageDown",
			"delete":    "Delete",
			"backspace": "Backspace",
			"tab":       "Tab",
			"esc":       "Escape",
			"escape":    "Escape",
			"insert":    "Insert",
			"f1":        "F1",
			"f2":        "F2",
			"f3":        "F3",
			"f4":        "F4",
			"f5":        "F5",
			"f6":        "F6",
			"f7":        "F7",
			"f8":        "F8",
			"f9":        "F9",
			"f10":       "F10",
			"f11":       "F11",
			"f12":       "F12",
		},
	}
}

// Resolve maps a key expression, possibly a "+"-joined chord like "ctrl+a",
// into a KeyEventData with the modifiers split out.
func (m *KeyMap) Resolve(expr string) schemas.KeyEventData {
	parts := strings.Split(expr, "+")

	var data schemas.KeyEventData
	for i, part := range parts {
		lower := strings.ToLower(strings.TrimSpace(part))
		if mod, ok := m.modifiers[lower]; ok && i < len(parts)-1 {
			switch mod {
			case "Control":
				data.Modifiers |= schemas.ModCtrl
			case "Alt":
				data.Modifiers |= schemas.ModAlt
			case "Shift":
				data.Modifiers |= schemas.ModShift
			case "Meta":
				data.Modifiers |= schemas.ModMeta
			}
			continue
		}
		data.Key = m.mapSingle(part)
	}
	return data
}

// Modifiers resolves a chord consisting solely of modifier names, e.g.
// "ctrl+shift" held across a click. Unknown names are ignored.
func (m *KeyMap) Modifiers(expr string) schemas.KeyModifier {
	var mods schemas.KeyModifier
	for _, part := range strings.Split(expr, "+") {
		switch m.mapSingle(part) {
		case "Control":
			mods |= schemas.ModCtrl
		case "Alt":
			mods |= schemas.ModAlt
		case "Shift":
			mods |= schemas.ModShift
		case "Meta":
			mods |= schemas.ModMeta
		}
	}
	return mods
}

func (m *KeyMap) mapSingle(key string) string {
	lower := strings.ToLower(strings.TrimSpace(key))
	if mapped, ok := m.modifiers[lower]; ok {
		return mapped
	}
	if mapped, ok := m.keys[lower]; ok {
		return mapped
	}
	return key
}

// MouseButtons maps click kinds to CDP button names. Immutable.
var MouseButtons = map[schemas.ActionKind]schemas.MouseButton{
	schemas.ActionLeftClick:   schemas.ButtonLeft,
	schemas.ActionRightClick:  schemas.ButtonRight,
	schemas.ActionMiddleClick: schemas.ButtonMiddle,
	schemas.ActionDoubleClick: schemas.ButtonLeft,
	schemas.ActionTripleClick: schemas.ButtonLeft,
}
