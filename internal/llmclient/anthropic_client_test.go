// internal/llmclient/anthropic_client_test.go
package llmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/marionette-cli/api/schemas"
	"github.com/xkilldash9x/marionette-cli/internal/config"
)

func testLLMConfig(endpoint string) config.LLMConfig {
	return config.LLMConfig{
		Provider:        config.ProviderAnthropic,
		Model:           "claude-test",
		APIKey:          "test-key",
		Endpoint:        endpoint,
		APITimeout:      5 * time.Second,
		MaxRetryElapsed: 2 * time.Second,
	}
}

const minimalResponse = `{
	"content": [{"type": "text", "text": "done"}],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 10, "output_tokens": 5}
}`

func TestNewAnthropicClientRequiresKey(t *testing.T) {
	cfg := testLLMConfig("")
	cfg.APIKey = ""
	_, err := NewAnthropicClient(cfg)
	require.Error(t, err)
}

func TestCreateResponseHeaders(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Write([]byte(minimalResponse))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testLLMConfig(server.URL))
	require.NoError(t, err)

	resp, err := client.CreateResponse(context.Background(), schemas.ModelRequest{
		Turns:     schemas.Conversation{{Role: schemas.RoleUser, Blocks: []schemas.ContentBlock{schemas.TextBlock("go")}}},
		BetaFlags: []string{"computer-use-2025-01-24", "prompt-caching-2024-07-31"},
	})
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotHeaders.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", gotHeaders.Get("anthropic-version"))
	assert.Equal(t, "computer-use-2025-01-24,prompt-caching-2024-07-31", gotHeaders.Get("anthropic-beta"))

	assert.Equal(t, schemas.StopEndTurn, resp.StopReason)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "done", resp.Content[0].Text)
}

func TestCreateResponseSerializesCacheControl(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(minimalResponse))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testLLMConfig(server.URL))
	require.NoError(t, err)

	marked := schemas.TextBlock("cached turn")
	marked.CacheMarker = true

	_, err = client.CreateResponse(context.Background(), schemas.ModelRequest{
		System:       "be useful",
		SystemCached: true,
		Turns: schemas.Conversation{
			{Role: schemas.RoleUser, Blocks: []schemas.ContentBlock{marked}},
		},
	})
	require.NoError(t, err)

	system := gotBody["system"].([]any)
	require.Len(t, system, 1)
	assert.Contains(t, system[0].(map[string]any), "cache_control")

	messages := gotBody["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 1)
	cc := content[0].(map[string]any)["cache_control"].(map[string]any)
	assert.Equal(t, "ephemeral", cc["type"])
}

func TestCreateResponseDecodesToolUse(t *testing.T) {
	const toolResponse = `{
		"content": [
			{"type": "text", "text": "Clicking the button."},
			{"type": "tool_use", "id": "toolu_1", "name": "computer",
			 "input": {"action": "left_click", "coordinate": [128, 256]}},
			{"type": "tool_use", "id": "toolu_2", "name": "navigate",
			 "input": {"url": "example.com"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(toolResponse))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testLLMConfig(server.URL))
	require.NoError(t, err)

	resp, err := client.CreateResponse(context.Background(), schemas.ModelRequest{})
	require.NoError(t, err)

	assert.Equal(t, schemas.StopToolUse, resp.StopReason)
	require.Len(t, resp.Content, 3)

	click := resp.Content[1]
	assert.Equal(t, schemas.BlockActionRequest, click.Type)
	assert.Equal(t, "toolu_1", click.ID)
	require.NotNil(t, click.Action)
	assert.Equal(t, schemas.ActionLeftClick, click.Action.Kind)
	require.NotNil(t, click.Action.Coordinate)
	assert.Equal(t, 128, click.Action.Coordinate.X)
	assert.Equal(t, 256, click.Action.Coordinate.Y)

	nav := resp.Content[2]
	require.NotNil(t, nav.Action)
	assert.Equal(t, schemas.ActionGoto, nav.Action.Kind)
	assert.Equal(t, "example.com", nav.Action.URL)
}

func TestCreateResponseRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"type": "rate_limit_error"}}`))
			return
		}
		w.Write([]byte(minimalResponse))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testLLMConfig(server.URL))
	require.NoError(t, err)

	resp, err := client.CreateResponse(context.Background(), schemas.ModelRequest{})
	require.NoError(t, err)
	assert.Equal(t, schemas.StopEndTurn, resp.StopReason)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCreateResponseDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testLLMConfig(server.URL))
	require.NoError(t, err)

	_, err = client.CreateResponse(context.Background(), schemas.ModelRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreateResponseEncodesImagesAndResults(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(minimalResponse))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(testLLMConfig(server.URL))
	require.NoError(t, err)

	result := schemas.ContentBlock{
		Type:      schemas.BlockActionResult,
		ToolUseID: "toolu_9",
		Content: []schemas.ContentBlock{
			schemas.TextBlock("ok"),
			schemas.ImageBlock("cGF5bG9hZA=="),
		},
	}

	_, err = client.CreateResponse(context.Background(), schemas.ModelRequest{
		Turns: schemas.Conversation{{Role: schemas.RoleUser, Blocks: []schemas.ContentBlock{result}}},
	})
	require.NoError(t, err)

	content := gotBody["messages"].([]any)[0].(map[string]any)["content"].([]any)
	wireResult := content[0].(map[string]any)
	assert.Equal(t, "tool_result", wireResult["type"])
	assert.Equal(t, "toolu_9", wireResult["tool_use_id"])

	inner := wireResult["content"].([]any)
	require.Len(t, inner, 2)
	image := inner[1].(map[string]any)
	source := image["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/png", source["media_type"])
	assert.Equal(t, "cGF5bG9hZA==", source["data"])
}

func TestFactory(t *testing.T) {
	cfg := testLLMConfig("")

	client, err := NewClient(cfg)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, client)

	cfg.Provider = "watson"
	_, err = NewClient(cfg)
	require.Error(t, err)
}
