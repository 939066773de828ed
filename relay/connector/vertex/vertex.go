// Package vertex relays generation requests to Google Vertex AI's REST API.
package vertex

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
	apiKey      string
	accessToken string
	project     string
	region      string
}

func New() *Connector {
	if config.VertexAPIKey == "" && config.VertexAccessToken == "" {
		logger.Logger.Warn("vertex credentials not configured")
	}
	return &Connector{
		apiKey:      config.VertexAPIKey,
		accessToken: config.VertexAccessToken,
		project:     config.VertexProject,
		region:      config.VertexRegion,
	}
}

func (c *Connector) Name() string { return "vertex" }

func (c *Connector) Capabilities() connector.Capabilities {
	return connector.Capabilities{Text: true, Vision: true, Video: true, Tools: false, Stream: true}
}

// mapContents translates messages to Vertex contents. Assistant turns map
// to role "model", everything else to "user"; messages with no mappable
// parts are dropped.
func mapContents(messages []model.UnifiedMessage) []map[string]any {
	contents := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		parts := make([]map[string]any, 0, len(m.Content))
		for _, p := range m.Content {
			switch p.Type {
			case model.ContentTypeText:
				parts = append(parts, map[string]any{"text": p.Text})
			case model.ContentTypeImageURL:
				mime := p.Mime
				if mime == "" {
					mime = "image/*"
				}
				parts = append(parts, map[string]any{"fileData": map[string]any{"fileUri": p.URL, "mimeType": mime}})
			case model.ContentTypeImageB64:
				parts = append(parts, map[string]any{"inlineData": map[string]any{"data": p.B64, "mimeType": p.Mime}})
			case model.ContentTypeVideoURL:
				mime := p.Mime
				if mime == "" {
					mime = "video/*"
				}
				parts = append(parts, map[string]any{"fileData": map[string]any{"fileUri": p.URL, "mimeType": mime}})
			}
		}
		if len(parts) == 0 {
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, map[string]any{"role": role, "parts": parts})
	}
	return contents
}

func buildBody(route registry.Route, req *model.UnifiedRequest) map[string]any {
	body := map[string]any{
		"contents": mapContents(req.Messages),
	}

	genConfig := map[string]any{}
	if req.MaxOutputTokens > 0 {
		genConfig["maxOutputTokens"] = req.MaxOutputTokens
	}
	if req.Temperature != nil {
		genConfig["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		genConfig["topP"] = *req.TopP
	}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}
	connector.MergeRouteExtra(body, route)
	return body
}

// endpointURL builds the regional REST endpoint. The verb differs for
// streaming and unary calls.
func endpointURL(region, project, modelID string, stream bool) string {
	verb := "generateContent"
	if stream {
		verb = "streamGenerateContent"
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/%s:%s",
		region, project, region, modelID, verb)
}

type candidateContent struct {
	Parts []struct {
		Text string `json:"text"`
	} `json:"parts"`
}

type generateResponse struct {
	Candidates []struct {
		Content      candidateContent `json:"content"`
		FinishReason string           `json:"finishReason"`
	} `json:"candidates"`
}

// candidateText concatenates the text of all parts of the first candidate.
func (r *generateResponse) candidateText() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var out string
	for _, p := range r.Candidates[0].Content.Parts {
		out += p.Text
	}
	return out
}

func (r *generateResponse) finished() bool {
	return len(r.Candidates) > 0 && r.Candidates[0].FinishReason != ""
}

func (c *Connector) Invoke(ctx context.Context, route registry.Route, req *model.UnifiedRequest) (*connector.Response, *model.ErrorWithStatusCode) {
	project := route.Project
	if project == "" {
		project = c.project
	}
	if project == "" {
		return nil, model.InvalidError("vertex: missing project id")
	}

	region := route.Region
	if region == "" {
		region = c.region
	}
	if region == "" {
		return nil, model.InvalidError("vertex: missing region")
	}

	if c.apiKey == "" && c.accessToken == "" {
		return nil, model.NewError(model.ErrTypeAuth, "vertex: neither api key nor access token configured", nil)
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("x-goog-api-key", c.apiKey)
	}
	if c.accessToken != "" {
		header.Set("Authorization", "Bearer "+c.accessToken)
	}

	url := endpointURL(region, project, route.ProviderModelID, req.Stream)
	logger.Logger.Debug("invoking vertex",
		zap.String("model", route.ProviderModelID),
		zap.String("region", region),
		zap.Bool("stream", req.Stream))

	resp, err := connector.PostJSON(ctx, url, header, buildBody(route, req))
	if err != nil {
		return nil, connector.ClassifyTransportError(c.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, connector.DrainStatusError(c.Name(), resp)
	}

	if req.Stream {
		events := connector.StreamSSE(ctx, c.Name(), resp.Body, parseStreamFrame)
		return &connector.Response{Stream: events}, nil
	}

	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connector.ClassifyTransportError(c.Name(), err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, model.NewError(model.ErrTypeUpstream, "vertex: malformed response body", err)
	}

	return &connector.Response{Chunk: &model.UnifiedChunk{
		TextDelta:      parsed.candidateText(),
		Done:           true,
		ProviderEvents: raw,
	}}, nil
}

// parseStreamFrame maps one SSE data payload to a chunk. The frame carrying
// a finishReason is terminal.
func parseStreamFrame(data string) (model.UnifiedChunk, bool, bool) {
	var parsed generateResponse
	if err := json.Unmarshal([]byte(data), &parsed); err != nil {
		return model.UnifiedChunk{}, false, false
	}

	done := parsed.finished()
	return model.UnifiedChunk{
		TextDelta:      parsed.candidateText(),
		Done:           done,
		ProviderEvents: json.RawMessage(data),
	}, true, done
}
