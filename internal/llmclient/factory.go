// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
	"github.com/xkilldash9x/marionette-cli/internal/config"
)

// NewClient creates a ModelClient based on the configured provider.
func NewClient(cfg config.LLMConfig) (schemas.ModelClient, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic, "":
		return NewAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: %q. Supported: [%s]",
			cfg.Provider, config.ProviderAnthropic)
	}
}
