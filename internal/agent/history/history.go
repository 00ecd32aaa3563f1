// internal/agent/history/history.go

// Package history owns the conversation maintenance passes that run between
// sampling iterations: cache breakpoint placement and image retention. Both
// are pure in-place slice passes over the conversation; neither reorders or
// drops turns.
package history

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
)

// maxCacheBreakpoints is the number of user turns that carry a cache marker.
// The API allows four breakpoints per request; one is reserved for the
// system prompt.
const maxCacheBreakpoints = 3

// Manager applies the maintenance passes with a fixed retention policy.
type Manager struct {
	// imageBudget is the number of screenshots kept in history. Zero or
	// negative disables pruning.
	imageBudget int
	// removalBatch rounds the prune count down to a multiple of itself so
	// cache prefixes are invalidated in batches, not on every iteration.
	removalBatch int

	log *zap.Logger
}

// NewManager builds a history manager. A removalBatch below 1 is treated
// as 1.
func NewManager(imageBudget, removalBatch int) *Manager {
	if removalBatch < 1 {
		removalBatch = 1
	}
	return &Manager{
		imageBudget:  imageBudget,
		removalBatch: removalBatch,
		log:          observability.GetLogger().Named("history"),
	}
}

// Maintain runs both passes in order: prune images first, then re-place
// cache markers so the breakpoints land on the post-prune shape.
func (m *Manager) Maintain(conv schemas.Conversation) {
	m.PruneImages(conv)
	m.AnnotateCache(conv)
}

// -- Cache breakpoint placement --

// AnnotateCache marks the final block of the newest user turns, up to the
// breakpoint limit, and strips markers everywhere else. Repeated
// application converges on the same markup.
func (m *Manager) AnnotateCache(conv schemas.Conversation) {
	remaining := maxCacheBreakpoints

	for i := len(conv) - 1; i >= 0; i-- {
		turn := &conv[i]
		clearMarkers(turn.Blocks)

		if turn.Role != schemas.RoleUser || len(turn.Blocks) == 0 {
			continue
		}
		if remaining > 0 {
			turn.Blocks[len(turn.Blocks)-1].CacheMarker = true
			remaining--
		}
	}
}

func clearMarkers(blocks []schemas.ContentBlock) {
	for i := range blocks {
		blocks[i].CacheMarker = false
		clearMarkers(blocks[i].Content)
	}
}

// -- Image retention --

// PruneImages removes the oldest screenshots once the total exceeds the
// budget. Removal counts are rounded down to a multiple of the batch size;
// a conversation at or under budget is untouched. Only images nested in
// action results are candidates, and sibling blocks in the same result
// survive.
func (m *Manager) PruneImages(conv schemas.Conversation) {
	if m.imageBudget <= 0 {
		return
	}

	total := countResultImages(conv)
	excess := total - m.imageBudget
	if excess <= 0 {
		return
	}
	toRemove := excess - excess%m.removalBatch
	if toRemove == 0 {
		return
	}

	m.log.Debug("pruning screenshots from history",
		zap.Int("total", total),
		zap.Int("removing", toRemove),
	)

	// Oldest first.
	for i := range conv {
		for j := range conv[i].Blocks {
			block := &conv[i].Blocks[j]
			if block.Type != schemas.BlockActionResult {
				continue
			}
			block.Content, toRemove = dropImages(block.Content, toRemove)
			if toRemove == 0 {
				return
			}
		}
	}
}

func countResultImages(conv schemas.Conversation) int {
	total := 0
	for _, turn := range conv {
		for _, block := range turn.Blocks {
			if block.Type != schemas.BlockActionResult {
				continue
			}
			for _, inner := range block.Content {
				if inner.Type == schemas.BlockImage {
					total++
				}
			}
		}
	}
	return total
}

func dropImages(blocks []schemas.ContentBlock, quota int) ([]schemas.ContentBlock, int) {
	if quota == 0 {
		return blocks, 0
	}
	kept := blocks[:0]
	for _, b := range blocks {
		if b.Type == schemas.BlockImage && quota > 0 {
			quota--
			continue
		}
		kept = append(kept, b)
	}
	return kept, quota
}
