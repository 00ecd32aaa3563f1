// internal/agent/prompt.go
package agent

import (
	"fmt"
	"strings"
	"time"
)

// basePrompt orients the model: it is driving a real browser tab through
// screenshots and raw input, and navigation has a dedicated tool.
const basePrompt = `<SYSTEM_CAPABILITY>
* You are utilising a Chromium browser tab at a fixed resolution. You control it through screenshots and mouse/keyboard input.
* You can only interact with the single open tab. To open a different site, use the "navigate" tool with a full URL rather than clicking through search results when the destination is known.
* After each action you will receive a fresh screenshot of the page. Inspect it before deciding on the next action.
* Scrolling is preferred over dragging scrollbars. When a page is still loading, use the wait action and take another screenshot.
* The current date is %s.
</SYSTEM_CAPABILITY>

<IMPORTANT>
* If a page appears blocked or fails to load, it may be disallowed by policy. Report that to the user instead of retrying the same address.
* When you believe the task is complete, describe the final state in plain text and stop requesting actions.
</IMPORTANT>`

// SystemPrompt renders the system prompt for the given moment, appending
// the configured suffix when present.
func SystemPrompt(now time.Time, suffix string) string {
	prompt := fmt.Sprintf(basePrompt, now.Format("Monday, January 2, 2006"))
	if s := strings.TrimSpace(suffix); s != "" {
		prompt = prompt + "\n\n" + s
	}
	return prompt
}
