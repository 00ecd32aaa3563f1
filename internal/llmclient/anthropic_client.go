// internal/llmclient/anthropic_client.go
package llmclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
	"github.com/xkilldash9x/marionette-cli/internal/agent/tools"
	"github.com/xkilldash9x/marionette-cli/internal/config"
	"github.com/xkilldash9x/marionette-cli/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultEndpoint  = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"

	defaultMaxTokens       = 4096
	defaultMaxRetryElapsed = 2 * time.Minute
)

// AnthropicClient implements schemas.ModelClient against the Messages API.
// Transport policy (retries, throttling) lives entirely here; callers see
// one response or one final error.
type AnthropicClient struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	config     config.LLMConfig
}

var _ schemas.ModelClient = (*AnthropicClient)(nil)

// -- Messages API Request/Response Structures (Internal to this file) --

type anthropicCacheControl struct {
	Type string `json:"type"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Source *anthropicImageSource `json:"source,omitempty"`

	ID    string      `json:"id,omitempty"`
	Name  string      `json:"name,omitempty"`
	Input interface{} `json:"input,omitempty"`

	ToolUseID string                  `json:"tool_use_id,omitempty"`
	IsError   bool                    `json:"is_error,omitempty"`
	Content   []anthropicContentBlock `json:"content,omitempty"`

	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	SafetyChecks []schemas.PendingSafetyCheck `json:"safety_checks,omitempty"`

	CacheControl *anthropicCacheControl `json:"cache_control,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicSystemBlock struct {
	Type         string                 `json:"type"`
	Text         string                 `json:"text"`
	CacheControl *anthropicCacheControl `json:"cache_control,omitempty"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicRequestPayload struct {
	Model     string                 `json:"model"`
	MaxTokens int                    `json:"max_tokens"`
	System    []anthropicSystemBlock `json:"system,omitempty"`
	Messages  []anthropicMessage     `json:"messages"`
	Tools     []schemas.ToolSchema   `json:"tools,omitempty"`
	Thinking  *anthropicThinking     `json:"thinking,omitempty"`
}

type anthropicResponsePayload struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	} `json:"usage"`
}

// NewAnthropicClient initializes the client.
func NewAnthropicClient(cfg config.LLMConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute)/60.0, 1)
	}

	return &AnthropicClient{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		model:    cfg.Model,
		config:   cfg,
		limiter:  limiter,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: observability.GetLogger().Named("llm_client.anthropic"),
	}, nil
}

// CreateResponse sends one sampling request and returns the parsed reply,
// retrying transient failures with exponential backoff.
func (c *AnthropicClient) CreateResponse(ctx context.Context, req schemas.ModelRequest) (*schemas.ModelResponse, error) {
	payload := c.buildRequestPayload(req)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	betaHeader := strings.Join(req.BetaFlags, ",")

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.config.MaxRetryElapsed
	if b.MaxElapsedTime == 0 {
		b.MaxElapsedTime = defaultMaxRetryElapsed
	}
	b.MaxInterval = 30 * time.Second

	var response *schemas.ModelResponse

	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
		if betaHeader != "" {
			httpReq.Header.Set("anthropic-beta", betaHeader)
		}

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("Network error during model request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var responsePayload anthropicResponsePayload
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}

		parsed, err := c.parseResponse(&responsePayload)
		if err != nil {
			return backoff.Permanent(err)
		}

		c.logger.Info("Model sampling complete.",
			zap.Duration("duration", duration),
			zap.String("stop_reason", string(parsed.StopReason)),
			zap.Int("input_tokens", responsePayload.Usage.InputTokens),
			zap.Int("output_tokens", responsePayload.Usage.OutputTokens),
			zap.Int("cache_read_tokens", responsePayload.Usage.CacheReadInputTokens),
		)

		response = parsed
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *AnthropicClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Anthropic API returned error status",
		zap.Int("status", statusCode),
		zap.String("response", string(body)),
	)
	err := fmt.Errorf("anthropic API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, 529:
		return err // Transient, retry.
	default:
		return backoff.Permanent(err)
	}
}

// -- Payload construction --

func (c *AnthropicClient) buildRequestPayload(req schemas.ModelRequest) anthropicRequestPayload {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload := anthropicRequestPayload{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  encodeMessages(req.Turns),
		Tools:     req.Tools,
	}

	if req.System != "" {
		block := anthropicSystemBlock{Type: "text", Text: req.System}
		if req.SystemCached {
			block.CacheControl = &anthropicCacheControl{Type: "ephemeral"}
		}
		payload.System = []anthropicSystemBlock{block}
	}

	if req.ThinkingBudget > 0 {
		payload.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: req.ThinkingBudget}
	}

	return payload
}

func encodeMessages(conv schemas.Conversation) []anthropicMessage {
	messages := make([]anthropicMessage, 0, len(conv))
	for _, turn := range conv {
		messages = append(messages, anthropicMessage{
			Role:    string(turn.Role),
			Content: encodeBlocks(turn.Blocks),
		})
	}
	return messages
}

func encodeBlocks(blocks []schemas.ContentBlock) []anthropicContentBlock {
	out := make([]anthropicContentBlock, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, encodeBlock(b))
	}
	return out
}

func encodeBlock(b schemas.ContentBlock) anthropicContentBlock {
	wire := anthropicContentBlock{Type: string(b.Type)}

	switch b.Type {
	case schemas.BlockText:
		wire.Text = b.Text
	case schemas.BlockImage:
		wire.Source = &anthropicImageSource{
			Type:      "base64",
			MediaType: b.MediaType,
			Data:      b.ImageData,
		}
	case schemas.BlockActionRequest:
		wire.ID = b.ID
		wire.Name = b.ToolName
		wire.Input = b.Action
	case schemas.BlockActionResult:
		wire.ToolUseID = b.ToolUseID
		wire.IsError = b.IsError
		wire.Content = encodeBlocks(b.Content)
	case schemas.BlockThinking:
		wire.Thinking = b.Thinking
		wire.Signature = b.Signature
	}

	if b.CacheMarker {
		wire.CacheControl = &anthropicCacheControl{Type: "ephemeral"}
	}
	return wire
}

// -- Response parsing --

func (c *AnthropicClient) parseResponse(payload *anthropicResponsePayload) (*schemas.ModelResponse, error) {
	if len(payload.Content) == 0 && payload.StopReason == "" {
		return nil, fmt.Errorf("anthropic API returned an empty response")
	}

	blocks := make([]schemas.ContentBlock, 0, len(payload.Content))
	for _, wire := range payload.Content {
		block, err := decodeBlock(wire)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	return &schemas.ModelResponse{
		Content:    blocks,
		StopReason: schemas.StopReason(payload.StopReason),
	}, nil
}

func decodeBlock(wire anthropicContentBlock) (schemas.ContentBlock, error) {
	switch wire.Type {
	case "text":
		return schemas.TextBlock(wire.Text), nil

	case "thinking":
		return schemas.ContentBlock{
			Type:      schemas.BlockThinking,
			Thinking:  wire.Thinking,
			Signature: wire.Signature,
		}, nil

	case "tool_use":
		action, err := decodeAction(wire.Name, wire.Input)
		if err != nil {
			return schemas.ContentBlock{}, err
		}
		return schemas.ContentBlock{
			Type:         schemas.BlockActionRequest,
			ID:           wire.ID,
			ToolName:     wire.Name,
			Action:       action,
			SafetyChecks: wire.SafetyChecks,
		}, nil

	default:
		// Unknown block types pass through as text so nothing is lost.
		raw, err := json.Marshal(wire)
		if err != nil {
			return schemas.ContentBlock{}, fmt.Errorf("unknown content block type %q", wire.Type)
		}
		return schemas.TextBlock(string(raw)), nil
	}
}

func decodeAction(toolName string, input interface{}) (*schemas.ActionDescriptor, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode tool input: %w", err)
	}

	var action schemas.ActionDescriptor
	if err := json.Unmarshal(raw, &action); err != nil {
		return nil, fmt.Errorf("failed to decode tool input for %q: %w", toolName, err)
	}

	if toolName == tools.NavigateToolName {
		action.Kind = schemas.ActionGoto
	}
	return &action, nil
}
