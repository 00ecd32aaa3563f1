package schemas

// -- Browser Input Schemas --

// MouseEventType mirrors the CDP Input.dispatchMouseEvent type field.
type MouseEventType string

const (
	MousePressed  MouseEventType = "mousePressed"
	MouseReleased MouseEventType = "mouseReleased"
	MouseMoved    MouseEventType = "mouseMoved"
	MouseWheel    MouseEventType = "mouseWheel"
)

// MouseEventData represents a single raw mouse event in device pixels.
type MouseEventData struct {
	Type       MouseEventType
	X          float64
	Y          float64
	Button     MouseButton
	ClickCount int
	Modifiers  KeyModifier
	// DeltaX/DeltaY apply to MouseWheel events only.
	DeltaX float64
	DeltaY float64
}

// KeyEventData represents a structured key event: the main key plus any
// active modifiers. Key uses CDP naming (e.g. "a", "Enter", "ArrowLeft").
type KeyEventData struct {
	Key       string
	Modifiers KeyModifier
}

// KeyModifier is a bitmask matching the CDP Input domain modifier field.
type KeyModifier int

const (
	ModNone  KeyModifier = 0
	ModAlt   KeyModifier = 1
	ModCtrl  KeyModifier = 2
	ModMeta  KeyModifier = 4
	ModShift KeyModifier = 8
)

// Viewport is the physical rendered size of the page in device pixels.
type Viewport struct {
	Width  int
	Height int
}
