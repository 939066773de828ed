// Package clewdr relays chat completions to a self-hosted Clewdr instance
// exposing an OpenAI-compatible endpoint. The upstream takes no streaming.
package clewdr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Laisky/zap"

	"github.com/xjp-ai/xjp-gateway/common/config"
	"github.com/xjp-ai/xjp-gateway/common/logger"
	"github.com/xjp-ai/xjp-gateway/relay/connector"
	"github.com/xjp-ai/xjp-gateway/relay/model"
	"github.com/xjp-ai/xjp-gateway/relay/registry"
)

type Connector struct {
	baseURL string
	apiKey  string
}

func New() *Connector {
	return &Connector{
		baseURL: config.ClewdrBaseURL,
		apiKey:  config.ClewdrAPIKey,
	}
}

func (c *Connector) Name() string { return "clewdr" }

func (c *Connector) Capabilities() connector.Capabilities {
	return connector.Capabilities{Text: true, Vision: true, Video: false, Tools: false, Stream: false}
}

// mapMessages always emits part arrays; messages with no mappable parts
// are dropped.
func mapMessages(messages []model.UnifiedMessage) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		parts := make([]map[string]any, 0, len(m.Content))
		for _, p := range m.Content {
			switch p.Type {
			case model.ContentTypeText:
				parts = append(parts, map[string]any{"type": "text", "text": p.Text})
			case model.ContentTypeImageURL:
				parts = append(parts, map[string]any{"type": "image_url", "image_url": map[string]any{"url": p.URL}})
			case model.ContentTypeImageB64:
				parts = append(parts, map[string]any{"type": "image_url", "image_url": map[string]any{
					"url": fmt.Sprintf("data:%s;base64,%s", p.Mime, p.B64),
				}})
			case model.ContentTypeVideoURL:
				parts = append(parts, map[string]any{"type": "input_text", "text": fmt.Sprintf("(video) %s", p.URL)})
			}
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, map[string]any{"role": m.Role, "content": parts})
	}
	return out
}

func buildBody(route registry.Route, req *model.UnifiedRequest) map[string]any {
	body := map[string]any{
		"model":    route.ProviderModelID,
		"messages": mapMessages(req.Messages),
		"stream":   false,
	}
	if req.MaxOutputTokens > 0 {
		body["max_tokens"] = req.MaxOutputTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	connector.MergeRouteExtra(body, route)
	return body
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Connector) Invoke(ctx context.Context, route registry.Route, req *model.UnifiedRequest) (*connector.Response, *model.ErrorWithStatusCode) {
	url := c.baseURL + "/v1/chat/completions"
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	logger.Logger.Debug("invoking clewdr", zap.String("model", route.ProviderModelID))

	resp, err := connector.PostJSON(ctx, url, header, buildBody(route, req))
	if err != nil {
		return nil, connector.ClassifyTransportError(c.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, connector.DrainStatusError(c.Name(), resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connector.ClassifyTransportError(c.Name(), err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, model.NewError(model.ErrTypeUpstream, "clewdr: malformed response body", err)
	}

	chunk := model.UnifiedChunk{Done: true, ProviderEvents: raw}
	if len(parsed.Choices) > 0 {
		chunk.TextDelta = parsed.Choices[0].Message.Content
	}
	return &connector.Response{Chunk: &chunk}, nil
}
