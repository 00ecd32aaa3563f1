// internal/browser/session/session.go

// Package session owns the chromedp browser lifecycle and exposes a live
// page handle for raw input dispatch. The manager launches (or attaches to)
// one browser process; each Session is one tab derived from it.
package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
	"github.com/xkilldash9x/marionette-cli/internal/config"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
)

const (
	// inputTimeout bounds a single input dispatch over the websocket.
	inputTimeout = 10 * time.Second
	// captureTimeout bounds one screenshot round trip.
	captureTimeout = 30 * time.Second
	// defaultNavigationTimeout applies when the config leaves it zero.
	defaultNavigationTimeout = 30 * time.Second
)

// Manager handles the browser process. All session contexts derive from
// its allocator context.
type Manager struct {
	log *zap.Logger
	cfg config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewManager launches a browser process, or attaches to a remote one when
// the config names a debugging URL, and verifies it responds.
func NewManager(ctx context.Context, cfg config.BrowserConfig) (*Manager, error) {
	m := &Manager{
		log: observability.GetLogger().Named("browser_manager"),
		cfg: cfg,
	}

	if cfg.RemoteDebuggingURL != "" {
		m.log.Info("Attaching to remote browser.", zap.String("url", cfg.RemoteDebuggingURL))
		m.allocatorCtx, m.allocatorCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteDebuggingURL)
	} else {
		m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	}

	// Confirm the browser is alive before handing out sessions.
	testCtx, cancelTest := context.WithTimeout(m.allocatorCtx, 30*time.Second)
	testCtx, cancelTarget := chromedp.NewContext(testCtx)
	defer cancelTarget()
	defer cancelTest()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.log.Info("Browser launched and responsive.")
	return m, nil
}

func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		// ExecAllocatorOption is opaque, so the default enable-automation
		// flag cannot be filtered out; overriding it to false makes the
		// allocator omit it from the command line.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
	)
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}
	return opts
}

// Close tears down the browser process after active sessions finish.
func (m *Manager) Close() {
	m.wg.Wait()
	if m.allocatorCancel != nil {
		m.allocatorCancel()
	}
	m.log.Info("Browser manager closed.")
}

// -- Session --

// Session is one browser tab implementing schemas.PageSession. The master
// context carries the CDP target; per-operation contexts only bound
// individual calls.
type Session struct {
	id         string
	ctx        context.Context
	cancel     context.CancelFunc
	viewport   schemas.Viewport
	navTimeout time.Duration
	log        *zap.Logger

	closeOnce sync.Once
	onClose   func()
}

var _ schemas.PageSession = (*Session)(nil)

// NewSession opens a fresh tab sized to the requested viewport and attaches
// the network guard when one is active.
func (m *Manager) NewSession(display config.DisplayConfig, netCfg config.NetworkConfig) (*Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(m.allocatorCtx)

	id := uuid.NewString()
	s := &Session{
		id:         id,
		ctx:        tabCtx,
		cancel:     tabCancel,
		viewport:   schemas.Viewport{Width: display.Width, Height: display.Height},
		navTimeout: netCfg.NavigationTimeout,
		log:        observability.GetLogger().Named("session").With(zap.String("session_id", id)),
	}
	if s.navTimeout <= 0 {
		s.navTimeout = defaultNavigationTimeout
	}

	// Materialize the target and pin the viewport before any capture.
	if err := chromedp.Run(tabCtx,
		emulation.SetDeviceMetricsOverride(int64(display.Width), int64(display.Height), 1, false),
		chromedp.Navigate("about:blank"),
	); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open session tab: %w", err)
	}

	guard := NewNetworkGuard(netCfg)
	if guard.Active() {
		if err := guard.Attach(tabCtx); err != nil {
			tabCancel()
			return nil, fmt.Errorf("failed to attach network guard: %w", err)
		}
	}

	m.wg.Add(1)
	s.onClose = m.wg.Done

	s.log.Info("Session opened.",
		zap.Int("width", display.Width),
		zap.Int("height", display.Height),
		zap.Bool("netguard", guard.Active()),
	)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// RunActions executes chromedp actions against this session's target while
// honoring the caller's context.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	combined, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(combined, actions...)
}

// Navigate loads targetURL. A destination the network guard denies renders
// as a blocked page; that is a successful navigation from the agent's
// point of view, the model will see the error page in the screenshot.
func (s *Session) Navigate(ctx context.Context, targetURL string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()

	err := s.RunActions(opCtx, chromedp.Navigate(targetURL))
	if err != nil {
		if strings.Contains(err.Error(), "ERR_BLOCKED_BY_CLIENT") {
			s.log.Warn("Navigation blocked by network policy.", zap.String("url", targetURL))
			return nil
		}
		if opCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation to %s timed out after %v: %w", targetURL, s.navTimeout, opCtx.Err())
		}
		return fmt.Errorf("navigation to %s failed: %w", targetURL, err)
	}
	return nil
}

// DispatchMouseEvent sends one raw mouse event via the CDP Input domain.
func (s *Session) DispatchMouseEvent(ctx context.Context, data schemas.MouseEventData) error {
	p := input.DispatchMouseEvent(input.MouseType(data.Type), data.X, data.Y).
		WithButton(input.MouseButton(data.Button)).
		WithClickCount(int64(data.ClickCount)).
		WithModifiers(cdpModifiers(data.Modifiers))

	if data.Type == schemas.MouseWheel {
		p = p.WithDeltaX(data.DeltaX).WithDeltaY(data.DeltaY)
	}

	opCtx, cancel := context.WithTimeout(ctx, inputTimeout)
	defer cancel()
	if err := s.RunActions(opCtx, p); err != nil {
		return fmt.Errorf("mouse event %s failed: %w", data.Type, err)
	}
	return nil
}

// DispatchKeyEvent sends a key down/up pair for one chord.
func (s *Session) DispatchKeyEvent(ctx context.Context, data schemas.KeyEventData) error {
	mods := cdpModifiers(data.Modifiers)
	keyDown := input.DispatchKeyEvent(input.KeyDown).WithModifiers(mods).WithKey(data.Key)
	keyUp := input.DispatchKeyEvent(input.KeyUp).WithModifiers(mods).WithKey(data.Key)

	opCtx, cancel := context.WithTimeout(ctx, inputTimeout)
	defer cancel()
	if err := s.RunActions(opCtx, keyDown, keyUp); err != nil {
		return fmt.Errorf("key event %q failed: %w", data.Key, err)
	}
	return nil
}

// KeyDown presses and holds a key.
func (s *Session) KeyDown(ctx context.Context, data schemas.KeyEventData) error {
	p := input.DispatchKeyEvent(input.KeyDown).
		WithModifiers(cdpModifiers(data.Modifiers)).
		WithKey(data.Key)

	opCtx, cancel := context.WithTimeout(ctx, inputTimeout)
	defer cancel()
	return s.RunActions(opCtx, p)
}

// KeyUp releases a held key.
func (s *Session) KeyUp(ctx context.Context, data schemas.KeyEventData) error {
	p := input.DispatchKeyEvent(input.KeyUp).
		WithModifiers(cdpModifiers(data.Modifiers)).
		WithKey(data.Key)

	opCtx, cancel := context.WithTimeout(ctx, inputTimeout)
	defer cancel()
	return s.RunActions(opCtx, p)
}

// TypeText inserts text at the current focus one keystroke at a time.
func (s *Session) TypeText(ctx context.Context, text string, perKeyDelay time.Duration) error {
	actions := make([]chromedp.Action, 0, len(text)*2)
	for _, r := range text {
		actions = append(actions, chromedp.KeyEvent(string(r)))
		if perKeyDelay > 0 {
			actions = append(actions, chromedp.Sleep(perKeyDelay))
		}
	}
	if err := s.RunActions(ctx, actions...); err != nil {
		return fmt.Errorf("typing failed: %w", err)
	}
	return nil
}

// CaptureScreenshot returns the viewport as base64-encoded PNG.
func (s *Session) CaptureScreenshot(ctx context.Context) (string, error) {
	var buf []byte
	capture := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			Do(ctx)
		return err
	})

	opCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()
	if err := s.RunActions(opCtx, capture); err != nil {
		return "", fmt.Errorf("screenshot capture failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// CurrentURL reports the page's location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	opCtx, cancel := context.WithTimeout(ctx, inputTimeout)
	defer cancel()
	if err := s.RunActions(opCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// Title reports the current document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	opCtx, cancel := context.WithTimeout(ctx, inputTimeout)
	defer cancel()
	if err := s.RunActions(opCtx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// Viewport reports the emulated device size.
func (s *Session) Viewport() schemas.Viewport {
	return s.viewport
}

// Sleep pauses for d while staying responsive to both the operation
// context and the session lifetime.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	combined, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-combined.Done():
		return combined.Err()
	}
}

// Close releases the tab. Safe to call more than once.
func (s *Session) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		s.log.Info("Closing session.")
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

func cdpModifiers(mods schemas.KeyModifier) input.Modifier {
	var out input.Modifier
	if mods&schemas.ModAlt != 0 {
		out |= input.ModifierAlt
	}
	if mods&schemas.ModCtrl != 0 {
		out |= input.ModifierCtrl
	}
	if mods&schemas.ModMeta != 0 {
		out |= input.ModifierMeta
	}
	if mods&schemas.ModShift != 0 {
		out |= input.ModifierShift
	}
	return out
}
