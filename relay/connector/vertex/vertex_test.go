package vertex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xjp-ai/xjp-gateway/relay/model"
	"github.com/xjp-ai/xjp-gateway/relay/registry"
)

func TestMapContents(t *testing.T) {
	messages := []model.UnifiedMessage{
		{Role: "system", Content: []model.ContentPart{model.TextPart("be brief")}},
		{Role: "assistant", Content: []model.ContentPart{model.TextPart("ok")}},
		{Role: "user", Content: []model.ContentPart{
			model.ImageURLPart("https://x/a.png"),
			model.ImageB64Part("aGk=", "image/png"),
			model.VideoURLPart("https://x/v.mp4"),
		}},
		{Role: "user", Content: nil}, // dropped
	}

	contents := mapContents(messages)
	require.Len(t, contents, 3)

	assert.Equal(t, "user", contents[0]["role"])
	assert.Equal(t, "model", contents[1]["role"])

	parts := contents[2]["parts"].([]map[string]any)
	require.Len(t, parts, 3)

	fileData := parts[0]["fileData"].(map[string]any)
	assert.Equal(t, "https://x/a.png", fileData["fileUri"])
	assert.Equal(t, "image/*", fileData["mimeType"])

	inline := parts[1]["inlineData"].(map[string]any)
	assert.Equal(t, "aGk=", inline["data"])
	assert.Equal(t, "image/png", inline["mimeType"])

	video := parts[2]["fileData"].(map[string]any)
	assert.Equal(t, "video/*", video["mimeType"])
}

func TestBuildBodyGenerationConfig(t *testing.T) {
	temp := 0.2
	topP := 0.9
	req := &model.UnifiedRequest{
		Messages:        []model.UnifiedMessage{{Role: "user", Content: []model.ContentPart{model.TextPart("hi")}}},
		MaxOutputTokens: 256,
		Temperature:     &temp,
		TopP:            &topP,
	}

	body := buildBody(registry.Route{}, req)
	genConfig := body["generationConfig"].(map[string]any)
	assert.Equal(t, 256, genConfig["maxOutputTokens"])
	assert.Equal(t, 0.2, genConfig["temperature"])
	assert.Equal(t, 0.9, genConfig["topP"])

	bare := buildBody(registry.Route{}, &model.UnifiedRequest{
		Messages: []model.UnifiedMessage{{Role: "user", Content: []model.ContentPart{model.TextPart("hi")}}},
	})
	assert.NotContains(t, bare, "generationConfig")
}

func TestBuildBodyRouteExtra(t *testing.T) {
	req := &model.UnifiedRequest{
		Messages: []model.UnifiedMessage{{Role: "user", Content: []model.ContentPart{model.TextPart("hi")}}},
	}
	route := registry.Route{Extra: map[string]any{
		"safetySettings": []any{"BLOCK_NONE"},
		"contents":       "cannot override",
	}}

	body := buildBody(route, req)
	assert.Equal(t, []any{"BLOCK_NONE"}, body["safetySettings"])
	assert.NotEqual(t, "cannot override", body["contents"], "route extra never replaces translated keys")
}

func TestEndpointURL(t *testing.T) {
	url := endpointURL("us-central1", "my-project", "gemini-2.0-flash", false)
	assert.Equal(t, "https://us-central1-aiplatform.googleapis.com/v1/projects/my-project/locations/us-central1/gemini-2.0-flash:generateContent", url)

	url = endpointURL("us-central1", "my-project", "gemini-2.0-flash", true)
	assert.Contains(t, url, ":streamGenerateContent")
}

func TestParseStreamFrame(t *testing.T) {
	chunk, emit, stop := parseStreamFrame(`{"candidates":[{"content":{"parts":[{"text":"hel"},{"text":"lo"}]}}]}`)
	require.True(t, emit)
	assert.False(t, stop)
	assert.Equal(t, "hello", chunk.TextDelta)
	assert.False(t, chunk.Done)

	chunk, emit, stop = parseStreamFrame(`{"candidates":[{"content":{"parts":[{"text":"!"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":4,"candidatesTokenCount":9}}`)
	require.True(t, emit)
	assert.True(t, stop)
	assert.True(t, chunk.Done)
	assert.Equal(t, "!", chunk.TextDelta)
	assert.Contains(t, string(chunk.ProviderEvents), "usageMetadata")

	_, emit, stop = parseStreamFrame("not json")
	assert.False(t, emit)
	assert.False(t, stop)
}

func TestInvokeConfigErrors(t *testing.T) {
	req := &model.UnifiedRequest{
		Messages: []model.UnifiedMessage{{Role: "user", Content: []model.ContentPart{model.TextPart("hi")}}},
	}

	// missing project
	c := &Connector{apiKey: "k", region: "us-central1"}
	_, bizErr := c.Invoke(context.Background(), registry.Route{ProviderModelID: "gemini"}, req)
	require.NotNil(t, bizErr)
	assert.Equal(t, model.ErrTypeInvalidRequest, bizErr.Error.Type)

	// missing region
	c = &Connector{apiKey: "k", project: "p"}
	_, bizErr = c.Invoke(context.Background(), registry.Route{ProviderModelID: "gemini"}, req)
	require.NotNil(t, bizErr)
	assert.Equal(t, model.ErrTypeInvalidRequest, bizErr.Error.Type)

	// no credentials at all
	c = &Connector{project: "p", region: "r"}
	_, bizErr = c.Invoke(context.Background(), registry.Route{ProviderModelID: "gemini"}, req)
	require.NotNil(t, bizErr)
	assert.Equal(t, model.ErrTypeAuth, bizErr.Error.Type)

	// route-level overrides satisfy the requirement
	c = &Connector{}
	_, bizErr = c.Invoke(context.Background(), registry.Route{
		ProviderModelID: "gemini", Project: "p", Region: "r",
	}, req)
	require.NotNil(t, bizErr)
	assert.Equal(t, model.ErrTypeAuth, bizErr.Error.Type)
}
