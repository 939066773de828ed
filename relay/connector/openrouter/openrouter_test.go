package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xjp-ai/xjp-gateway/relay/connector"
	"github.com/xjp-ai/xjp-gateway/relay/model"
	"github.com/xjp-ai/xjp-gateway/relay/registry"
)

func testRoute() registry.Route {
	return registry.Route{Provider: registry.ProviderOpenRouter, ProviderModelID: "openai/gpt-4o"}
}

func TestBuildBody(t *testing.T) {
	temp := 0.5
	req := &model.UnifiedRequest{
		LogicalModel: "gpt-smart",
		Messages: []model.UnifiedMessage{
			{Role: "system", Content: []model.ContentPart{model.TextPart("be brief")}},
			{Role: "user", Content: []model.ContentPart{
				model.TextPart("what is this"),
				model.ImageB64Part("aGk=", "image/png"),
				model.VideoURLPart("https://x/v.mp4"),
			}},
		},
		Tools: []model.ToolSpec{
			{Name: "lookup", Description: "find things", JSONSchema: json.RawMessage(`{"type":"object"}`)},
		},
		ToolChoice:      "auto",
		MaxOutputTokens: 64,
		Temperature:     &temp,
		Stream:          true,
		Extra: map[string]json.RawMessage{
			"transforms": json.RawMessage(`["middle-out"]`),
			"model":      json.RawMessage(`"attacker-model"`),
		},
	}

	body := buildBody(testRoute(), req)

	assert.Equal(t, "openai/gpt-4o", body["model"])
	assert.Equal(t, true, body["stream"])
	assert.Equal(t, 64, body["max_tokens"])
	assert.Equal(t, 0.5, body["temperature"])
	assert.Equal(t, "auto", body["tool_choice"])
	assert.Contains(t, body, "transforms")

	messages := body["messages"].([]map[string]any)
	require.Len(t, messages, 2)
	// single text part collapses to a bare string
	assert.Equal(t, "be brief", messages[0]["content"])

	parts := messages[1]["content"].([]map[string]any)
	require.Len(t, parts, 3)
	assert.Equal(t, "text", parts[0]["type"])
	imageURL := parts[1]["image_url"].(map[string]any)
	assert.Equal(t, "data:image/png;base64,aGk=", imageURL["url"])
	assert.Equal(t, "text", parts[2]["type"])
	assert.Equal(t, "[Video: https://x/v.mp4]", parts[2]["text"])

	tools := body["tools"].([]map[string]any)
	require.Len(t, tools, 1)
	fn := tools[0]["function"].(map[string]any)
	assert.Equal(t, "lookup", fn["name"])
}

func TestBuildBodyRouteExtra(t *testing.T) {
	route := testRoute()
	route.Extra = map[string]any{
		"provider":   map[string]any{"order": []any{"openai"}},
		"transforms": []any{"middle-out"},
		"model":      "cannot override",
	}
	req := &model.UnifiedRequest{
		Messages: []model.UnifiedMessage{{Role: "user", Content: []model.ContentPart{model.TextPart("hi")}}},
		Extra: map[string]json.RawMessage{
			"provider": json.RawMessage(`{"order":["anthropic"]}`),
		},
	}

	body := buildBody(route, req)

	// route-pinned parameters land in the body
	assert.Equal(t, []any{"middle-out"}, body["transforms"])
	// request passthrough wins over the route-pinned value
	assert.Equal(t, json.RawMessage(`{"order":["anthropic"]}`), body["provider"])
	// translated keys are never replaced
	assert.Equal(t, "openai/gpt-4o", body["model"])
}

func TestInvokeNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "openai/gpt-4o", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "hello there"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 3}
		}`))
	}))
	defer srv.Close()

	c := &Connector{apiKey: "sk-test", baseURL: srv.URL}
	resp, bizErr := c.Invoke(context.Background(), testRoute(), &model.UnifiedRequest{
		Messages: []model.UnifiedMessage{{Role: "user", Content: []model.ContentPart{model.TextPart("hi")}}},
	})
	require.Nil(t, bizErr)
	require.NotNil(t, resp.Chunk)
	assert.Nil(t, resp.Stream)
	assert.True(t, resp.Chunk.Done)
	assert.Equal(t, "hello there", resp.Chunk.TextDelta)
	assert.Contains(t, string(resp.Chunk.ProviderEvents), "prompt_tokens")
}

func TestInvokeStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"hel\"}}]}\n\n")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}],\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":2}}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := &Connector{apiKey: "sk-test", baseURL: srv.URL}
	resp, bizErr := c.Invoke(context.Background(), testRoute(), &model.UnifiedRequest{
		Stream:   true,
		Messages: []model.UnifiedMessage{{Role: "user", Content: []model.ContentPart{model.TextPart("hi")}}},
	})
	require.Nil(t, bizErr)
	require.NotNil(t, resp.Stream)

	var chunks []model.UnifiedChunk
	for ev := range resp.Stream {
		require.Nil(t, ev.Err)
		chunks = append(chunks, ev.Chunk)
	}
	require.Len(t, chunks, 3)
	assert.Equal(t, "hel", chunks[0].TextDelta)
	assert.Equal(t, "lo", chunks[1].TextDelta)
	assert.Contains(t, string(chunks[1].ProviderEvents), "usage")
	assert.True(t, chunks[2].Done)
	assert.False(t, chunks[0].Done)
}

func TestInvokeUpstreamFailures(t *testing.T) {
	cases := []struct {
		status   int
		wantType string
	}{
		{http.StatusUnauthorized, model.ErrTypeAuth},
		{http.StatusTooManyRequests, model.ErrTypeRateLimited},
		{http.StatusServiceUnavailable, model.ErrTypeUpstream},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte("nope"))
		}))

		c := &Connector{apiKey: "sk-test", baseURL: srv.URL}
		_, bizErr := c.Invoke(context.Background(), testRoute(), &model.UnifiedRequest{
			Messages: []model.UnifiedMessage{{Role: "user", Content: []model.ContentPart{model.TextPart("hi")}}},
		})
		require.NotNil(t, bizErr, tc.status)
		assert.Equal(t, tc.wantType, bizErr.Error.Type, tc.status)
		srv.Close()
	}
}

func TestInvokeWithoutKey(t *testing.T) {
	c := &Connector{baseURL: "http://unused"}
	_, bizErr := c.Invoke(context.Background(), testRoute(), &model.UnifiedRequest{})
	require.NotNil(t, bizErr)
	assert.Equal(t, model.ErrTypeAuth, bizErr.Error.Type)
	assert.Equal(t, http.StatusUnauthorized, bizErr.StatusCode)
}

func TestCapabilities(t *testing.T) {
	caps := New().Capabilities()
	assert.Equal(t, connector.Capabilities{Text: true, Vision: true, Video: true, Tools: true, Stream: true}, caps)
}
