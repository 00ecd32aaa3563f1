// internal/browser/session/context_utils.go
package session

import (
	"context"
)

// CombineContext derives a context from ctx1 (the session master context,
// which carries the CDP target) that is also canceled when ctx2 (the
// per-operation context) is done. Values and deadline come from ctx1.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
