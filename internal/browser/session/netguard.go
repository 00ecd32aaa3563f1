// internal/browser/session/netguard.go
package session

import (
	"context"
	"net/url"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/internal/config"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
)

// NetworkGuard enforces a hostname policy on everything the page requests,
// not just top-level navigations. Denials happen at the network layer, so
// the agent sees a blocked page and keeps going instead of crashing.
type NetworkGuard struct {
	allowed []string
	blocked []string
	log     *zap.Logger
}

// NewNetworkGuard builds a guard from the network configuration. Hostnames
// are normalized to lowercase; matching is exact or by subdomain.
func NewNetworkGuard(cfg config.NetworkConfig) *NetworkGuard {
	return &NetworkGuard{
		allowed: normalizeHosts(cfg.AllowedDomains),
		blocked: normalizeHosts(cfg.BlockedDomains),
		log:     observability.GetLogger().Named("netguard"),
	}
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

// Active reports whether the guard has any rules worth intercepting for.
func (g *NetworkGuard) Active() bool {
	return len(g.allowed) > 0 || len(g.blocked) > 0
}

// Allows decides the fate of one hostname. The deny list wins over the
// allow list; a non-empty allow list turns the policy into default-deny.
func (g *NetworkGuard) Allows(host string) bool {
	host = strings.ToLower(host)

	for _, b := range g.blocked {
		if hostMatches(host, b) {
			return false
		}
	}
	if len(g.allowed) == 0 {
		return true
	}
	for _, a := range g.allowed {
		if hostMatches(host, a) {
			return true
		}
	}
	return false
}

// AllowsURL parses raw and applies Allows to its hostname. Unparseable
// URLs are denied.
func (g *NetworkGuard) AllowsURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return g.Allows(u.Hostname())
}

// hostMatches reports whether host equals pattern or is a subdomain of it.
func hostMatches(host, pattern string) bool {
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

// Attach enables request interception on the target behind ctx and wires
// the pause handler. Every paused request is either continued or failed
// with net::ERR_BLOCKED_BY_CLIENT; leaving one paused would hang the page.
func (g *NetworkGuard) Attach(ctx context.Context) error {
	c := chromedp.FromContext(ctx)

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		pause, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		// Resolve off the listener goroutine; Do blocks on the websocket.
		go func() {
			execCtx := cdp.WithExecutor(ctx, c.Target)
			if g.AllowsURL(pause.Request.URL) {
				if err := fetch.ContinueRequest(pause.RequestID).Do(execCtx); err != nil && ctx.Err() == nil {
					g.log.Debug("failed to continue request", zap.String("url", pause.Request.URL), zap.Error(err))
				}
				return
			}

			g.log.Warn("blocked request by network policy", zap.String("url", pause.Request.URL))
			if err := fetch.FailRequest(pause.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx); err != nil && ctx.Err() == nil {
				g.log.Debug("failed to fail request", zap.String("url", pause.Request.URL), zap.Error(err))
			}
		}()
	})

	return chromedp.Run(ctx, fetch.Enable())
}
