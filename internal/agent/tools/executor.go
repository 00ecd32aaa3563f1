// internal/agent/tools/executor.go
package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
	"github.com/xkilldash9x/marionette-cli/internal/agent/display"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
)

// -- Timing constants --
//
// Pacing mirrors what the pages we drive can actually absorb. Typing is
// chunked so a long paste does not starve the event loop, and every state
// changing action settles before the follow-up screenshot.

const (
	// settleDelay follows discrete input actions before capturing.
	settleDelay = 500 * time.Millisecond
	// navigateSettleDelay follows a navigation before capturing.
	navigateSettleDelay = 1 * time.Second
	// typingChunkSize is the number of characters sent per insertText batch.
	typingChunkSize = 50
	// typingDelay separates synthetic keystrokes within a chunk.
	typingDelay = 12 * time.Millisecond
)

// Executor turns validated action descriptors into browser input. It owns
// the coordinate scaler and the cursor position; the session underneath is
// a dumb pipe to the DevTools protocol.
type Executor struct {
	session schemas.PageSession
	scaler  *display.Scaler
	keymap  *KeyMap
	version *Version
	log     *zap.Logger

	// cursor is the last commanded position in logical coordinates.
	cursor schemas.Coordinate
}

// NewExecutor wires an executor for one page session and tool version.
func NewExecutor(session schemas.PageSession, scaler *display.Scaler, keymap *KeyMap, version *Version) *Executor {
	return &Executor{
		session: session,
		scaler:  scaler,
		keymap:  keymap,
		version: version,
		log:     observability.GetLogger().Named("executor"),
	}
}

// Execute runs a single action and returns its outcome. Validation and
// version gating failures come back as errors; the caller decides whether
// they are recoverable.
func (e *Executor) Execute(ctx context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error) {
	if a.Kind != schemas.ActionGoto && !e.version.Supports(a.Kind) {
		return nil, &schemas.UnsupportedInVersionError{Action: a.Kind, Version: e.version.ID}
	}
	if err := Validate(a); err != nil {
		return nil, err
	}

	e.log.Debug("executing action",
		zap.String("action", string(a.Kind)),
		zap.Any("coordinate", a.Coordinate),
	)

	switch a.Kind {
	case schemas.ActionScreenshot:
		return e.screenshotOutcome(ctx, nil)

	case schemas.ActionCursorPosition:
		return &schemas.ActionOutcome{
			Output: fmt.Sprintf("X=%d,Y=%d", e.cursor.X, e.cursor.Y),
		}, nil

	case schemas.ActionKey:
		return e.doKey(ctx, a)

	case schemas.ActionHoldKey:
		return e.doHoldKey(ctx, a)

	case schemas.ActionType:
		return e.doType(ctx, a)

	case schemas.ActionMouseMove:
		return e.doMouseMove(ctx, a)

	case schemas.ActionLeftClick, schemas.ActionRightClick,
		schemas.ActionMiddleClick, schemas.ActionDoubleClick,
		schemas.ActionTripleClick:
		return e.doClick(ctx, a)

	case schemas.ActionLeftClickDrag:
		return e.doDrag(ctx, a)

	case schemas.ActionLeftMouseDown:
		return e.doMousePress(ctx, a, schemas.MousePressed)

	case schemas.ActionLeftMouseUp:
		return e.doMousePress(ctx, a, schemas.MouseReleased)

	case schemas.ActionScroll:
		return e.doScroll(ctx, a)

	case schemas.ActionWait:
		return e.doWait(ctx, a)

	case schemas.ActionGoto:
		return e.doGoto(ctx, a)
	}

	return nil, &schemas.InvalidArgumentError{Action: a.Kind, Reason: "unknown action"}
}

// -- Keyboard actions --

func (e *Executor) doKey(ctx context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error) {
	data := e.keymap.Resolve(a.Text)
	if err := e.session.DispatchKeyEvent(ctx, data); err != nil {
		return nil, err
	}
	return e.settleAndCapture(ctx, settleDelay)
}

func (e *Executor) doHoldKey(ctx context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error) {
	data := e.keymap.Resolve(a.Text)
	if err := e.session.KeyDown(ctx, data); err != nil {
		return nil, err
	}
	hold := time.Duration(*a.DurationSec * float64(time.Second))
	if err := e.session.Sleep(ctx, hold); err != nil {
		e.session.KeyUp(ctx, data) //nolint:errcheck
		return nil, err
	}
	if err := e.session.KeyUp(ctx, data); err != nil {
		return nil, err
	}
	return e.settleAndCapture(ctx, settleDelay)
}

func (e *Executor) doType(ctx context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error) {
	// Chunk on runes: a byte split would tear multi-byte characters apart
	// and the session types the halves as replacement garbage.
	runes := []rune(a.Text)
	for len(runes) > 0 {
		chunk := runes
		if len(chunk) > typingChunkSize {
			chunk = chunk[:typingChunkSize]
		}
		runes = runes[len(chunk):]
		if err := e.session.TypeText(ctx, string(chunk), typingDelay); err != nil {
			return nil, err
		}
	}
	return e.settleAndCapture(ctx, settleDelay)
}

// -- Mouse actions --

func (e *Executor) doMouseMove(ctx context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error) {
	dx, dy, err := e.scaler.ToDevice(a.Coordinate.X, a.Coordinate.Y)
	if err != nil {
		return nil, err
	}
	ev := schemas.MouseEventData{Type: schemas.MouseMoved, X: float64(dx), Y: float64(dy)}
	if err := e.session.DispatchMouseEvent(ctx, ev); err != nil {
		return nil, err
	}
	e.cursor = *a.Coordinate
	return e.settleAndCapture(ctx, settleDelay)
}

func (e *Executor) doClick(ctx context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error) {
	dx, dy, err := e.scaler.ToDevice(a.Coordinate.X, a.Coordinate.Y)
	if err != nil {
		return nil, err
	}

	button := MouseButtons[a.Kind]
	clicks := 1
	switch a.Kind {
	case schemas.ActionDoubleClick:
		clicks = 2
	case schemas.ActionTripleClick:
		clicks = 3
	}

	// Optional modifier chord held across the click, e.g. "ctrl+shift".
	// Models emit it under either the text or key field.
	var mods schemas.KeyModifier
	if chord := firstNonEmpty(a.Text, a.Key); chord != "" {
		mods = e.keymap.Modifiers(chord)
	}

	fx, fy := float64(dx), float64(dy)
	events := []schemas.MouseEventData{
		{Type: schemas.MouseMoved, X: fx, Y: fy},
	}
	for i := 1; i <= clicks; i++ {
		events = append(events,
			schemas.MouseEventData{Type: schemas.MousePressed, X: fx, Y: fy, Button: button, ClickCount: i, Modifiers: mods},
			schemas.MouseEventData{Type: schemas.MouseReleased, X: fx, Y: fy, Button: button, ClickCount: i, Modifiers: mods},
		)
	}
	for _, ev := range events {
		if err := e.session.DispatchMouseEvent(ctx, ev); err != nil {
			return nil, err
		}
	}
	e.cursor = *a.Coordinate
	return e.settleAndCapture(ctx, settleDelay)
}

func (e *Executor) doDrag(ctx context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error) {
	sx, sy, err := e.scaler.ToDevice(e.cursor.X, e.cursor.Y)
	if err != nil {
		// Cursor has never been placed; start the drag at the target.
		sx, sy, err = e.scaler.ToDevice(a.Coordinate.X, a.Coordinate.Y)
		if err != nil {
			return nil, err
		}
	}
	tx, ty, err := e.scaler.ToDevice(a.Coordinate.X, a.Coordinate.Y)
	if err != nil {
		return nil, err
	}

	events := []schemas.MouseEventData{
		{Type: schemas.MousePressed, X: float64(sx), Y: float64(sy), Button: schemas.ButtonLeft, ClickCount: 1},
		{Type: schemas.MouseMoved, X: float64(tx), Y: float64(ty), Button: schemas.ButtonLeft},
		{Type: schemas.MouseReleased, X: float64(tx), Y: float64(ty), Button: schemas.ButtonLeft, ClickCount: 1},
	}
	for _, ev := range events {
		if err := e.session.DispatchMouseEvent(ctx, ev); err != nil {
			return nil, err
		}
	}
	e.cursor = *a.Coordinate
	return e.settleAndCapture(ctx, settleDelay)
}

func (e *Executor) doMousePress(ctx context.Context, a *schemas.ActionDescriptor, evType schemas.MouseEventType) (*schemas.ActionOutcome, error) {
	dx, dy, err := e.scaler.ToDevice(a.Coordinate.X, a.Coordinate.Y)
	if err != nil {
		return nil, err
	}
	ev := schemas.MouseEventData{
		Type:       evType,
		X:          float64(dx),
		Y:          float64(dy),
		Button:     schemas.ButtonLeft,
		ClickCount: 1,
	}
	if err := e.session.DispatchMouseEvent(ctx, ev); err != nil {
		return nil, err
	}
	e.cursor = *a.Coordinate
	return e.settleAndCapture(ctx, settleDelay)
}

func (e *Executor) doScroll(ctx context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error) {
	dx, dy, err := e.scaler.ToDevice(a.Coordinate.X, a.Coordinate.Y)
	if err != nil {
		return nil, err
	}

	vp := e.session.Viewport()
	var deltaX, deltaY float64
	switch a.ScrollDirection {
	case schemas.ScrollUp:
		deltaY = -float64(*a.ScrollAmount) / 25.0 * float64(vp.Height)
	case schemas.ScrollDown:
		deltaY = float64(*a.ScrollAmount) / 25.0 * float64(vp.Height)
	case schemas.ScrollLeft:
		deltaX = -float64(*a.ScrollAmount) / 25.0 * float64(vp.Width)
	case schemas.ScrollRight:
		deltaX = float64(*a.ScrollAmount) / 25.0 * float64(vp.Width)
	}

	ev := schemas.MouseEventData{
		Type:   schemas.MouseWheel,
		X:      float64(dx),
		Y:      float64(dy),
		DeltaX: deltaX,
		DeltaY: deltaY,
	}
	if err := e.session.DispatchMouseEvent(ctx, ev); err != nil {
		return nil, err
	}
	e.cursor = *a.Coordinate
	return e.settleAndCapture(ctx, settleDelay)
}

// -- Control actions --

func (e *Executor) doWait(ctx context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error) {
	hold := time.Duration(*a.DurationSec * float64(time.Second))
	if err := e.session.Sleep(ctx, hold); err != nil {
		return nil, err
	}
	return e.screenshotOutcome(ctx, nil)
}

func (e *Executor) doGoto(ctx context.Context, a *schemas.ActionDescriptor) (*schemas.ActionOutcome, error) {
	target := NormalizeURL(a.URL)
	if err := e.session.Navigate(ctx, target); err != nil {
		return nil, err
	}
	if err := e.session.Sleep(ctx, navigateSettleDelay); err != nil {
		return nil, err
	}

	title, err := e.session.Title(ctx)
	if err != nil {
		title = ""
	}
	output := fmt.Sprintf("Navigated to %s.", target)
	if title != "" {
		output = fmt.Sprintf("%s Page title: %s", output, title)
	}
	return e.screenshotOutcome(ctx, &output)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// NormalizeURL prepends https:// when the target has no scheme. Models
// routinely emit bare hostnames.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.Contains(trimmed, "://") {
		return trimmed
	}
	return "https://" + trimmed
}

// -- Capture helpers --

func (e *Executor) settleAndCapture(ctx context.Context, delay time.Duration) (*schemas.ActionOutcome, error) {
	if err := e.session.Sleep(ctx, delay); err != nil {
		return nil, err
	}
	return e.screenshotOutcome(ctx, nil)
}

func (e *Executor) screenshotOutcome(ctx context.Context, output *string) (*schemas.ActionOutcome, error) {
	shot, err := e.session.CaptureScreenshot(ctx)
	if err != nil {
		return nil, err
	}
	outcome := &schemas.ActionOutcome{ScreenshotB64: shot}
	if output != nil {
		outcome.Output = *output
	}
	return outcome, nil
}
