// internal/config/config.go
package config

import (
	"fmt"
	"time"
)

// -- Top Level --

// Config is the root configuration for marionette-cli. Loaded once at
// startup via viper and treated as immutable afterwards; components receive
// the sub-structs they need at construction rather than reading globals.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
}

// Validate checks cross-field invariants that viper cannot express.
func (c *Config) Validate() error {
	if c.Agent.Display.Width <= 0 || c.Agent.Display.Height <= 0 {
		return fmt.Errorf("agent.display dimensions must be positive (got %dx%d)",
			c.Agent.Display.Width, c.Agent.Display.Height)
	}
	if c.Agent.ImageBudget < 0 {
		return fmt.Errorf("agent.image_budget must be >= 0 (got %d)", c.Agent.ImageBudget)
	}
	if c.Agent.ImageRemovalBatch < 1 {
		return fmt.Errorf("agent.image_removal_batch must be >= 1 (got %d)", c.Agent.ImageRemovalBatch)
	}
	if c.Agent.LLM.Provider != "" && c.Agent.LLM.Provider != ProviderAnthropic {
		return fmt.Errorf("unsupported llm provider %q", c.Agent.LLM.Provider)
	}
	return nil
}

// -- Logger --

// LoggerConfig mirrors the observability package's needs.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console encoder.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// -- Browser --

// BrowserConfig controls the chromedp session.
type BrowserConfig struct {
	Headless        bool   `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool   `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	// RemoteDebuggingURL attaches to an already-running browser over CDP
	// instead of launching one (e.g. a hosted browser's websocket URL).
	RemoteDebuggingURL string `mapstructure:"remote_debugging_url" yaml:"remote_debugging_url"`
	UserAgent          string `mapstructure:"user_agent" yaml:"user_agent"`
}

// NetworkConfig holds the navigation timeout and the hostname policy the
// session's network guard enforces.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// BlockedDomains are denied along with every subdomain.
	BlockedDomains []string `mapstructure:"blocked_domains" yaml:"blocked_domains"`
	// AllowedDomains, when non-empty, inverts the policy: only listed
	// hosts (and their subdomains) may load.
	AllowedDomains []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`
}

// -- Agent --

// LLMProvider identifies a model backend.
type LLMProvider string

const ProviderAnthropic LLMProvider = "anthropic"

// LLMConfig configures the model client collaborator.
type LLMConfig struct {
	Provider   LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model      string        `mapstructure:"model" yaml:"model"`
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxTokens  int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// MaxRetryElapsed bounds transport-level backoff inside the client.
	// The sampling loop itself never retries.
	MaxRetryElapsed time.Duration `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
	// RequestsPerMinute throttles outbound model calls. Zero disables.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	ThinkingBudget    int `mapstructure:"thinking_budget" yaml:"thinking_budget"`
}

// DisplayConfig is the logical display size advertised to the model. The
// coordinate adapter maps it onto the real viewport.
type DisplayConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// AgentConfig drives the sampling loop.
type AgentConfig struct {
	LLM         LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Display     DisplayConfig `mapstructure:"display" yaml:"display"`
	ToolVersion string        `mapstructure:"tool_version" yaml:"tool_version"`
	// ImageBudget caps how many screenshots stay embedded in the
	// conversation. Zero keeps everything.
	ImageBudget int `mapstructure:"image_budget" yaml:"image_budget"`
	// ImageRemovalBatch is the pruning granularity: images are removed in
	// multiples of this, never one at a time, to limit cache churn.
	ImageRemovalBatch int `mapstructure:"image_removal_batch" yaml:"image_removal_batch"`
	// SystemPromptSuffix is appended to the built-in system prompt.
	SystemPromptSuffix string `mapstructure:"system_prompt_suffix" yaml:"system_prompt_suffix"`
}

// NewDefaultConfig returns the canonical defaults, the same values the
// shipped config.yaml documents.
func NewDefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			ServiceName: "marionette-cli",
			MaxSize:     50,
			MaxBackups:  3,
			MaxAge:      14,
			Colors: ColorConfig{
				Debug: "cyan", Info: "green", Warn: "yellow",
				Error: "red", DPanic: "magenta", Panic: "magenta", Fatal: "red",
			},
		},
		Browser: BrowserConfig{
			Headless: true,
		},
		Network: NetworkConfig{
			NavigationTimeout: 30 * time.Second,
		},
		Agent: AgentConfig{
			LLM: LLMConfig{
				Provider:        ProviderAnthropic,
				Model:           "claude-opus-4-20250514",
				APITimeout:      2 * time.Minute,
				MaxTokens:       4096,
				MaxRetryElapsed: 2 * time.Minute,
			},
			Display:           DisplayConfig{Width: 1024, Height: 768},
			ToolVersion:       "computer_use_20250124",
			ImageBudget:       10,
			ImageRemovalBatch: 2,
		},
	}
}
