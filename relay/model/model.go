package model

import "encoding/json"

// Content part discriminants. Parts round-trip through JSON keyed on Type.
const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
	ContentTypeImageB64 = "image_b64"
	ContentTypeVideoURL = "video_url"
)

// ContentPart is one element of a message's ordered content sequence.
// Exactly the fields of the discriminated variant are populated.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
	B64  string `json:"b64,omitempty"`
	Mime string `json:"mime,omitempty"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentTypeText, Text: text}
}

func ImageURLPart(url string) ContentPart {
	return ContentPart{Type: ContentTypeImageURL, URL: url}
}

func ImageB64Part(b64, mime string) ContentPart {
	return ContentPart{Type: ContentTypeImageB64, B64: b64, Mime: mime}
}

func VideoURLPart(url string) ContentPart {
	return ContentPart{Type: ContentTypeVideoURL, URL: url}
}

// UnifiedMessage is one conversation turn in the neutral schema.
// Role ordering is preserved exactly as given by the client.
type UnifiedMessage struct {
	Role    string        `json:"role"` // system | user | assistant | tool
	Content []ContentPart `json:"content"`
	Name    string        `json:"name,omitempty"`
}

// TextContent concatenates the text parts of the message.
func (m *UnifiedMessage) TextContent() string {
	var out string
	for _, p := range m.Content {
		if p.Type == ContentTypeText {
			out += p.Text
		}
	}
	return out
}

// ToolSpec describes one callable tool in provider-neutral form.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	JSONSchema  json.RawMessage `json:"json_schema"`
}

// UnifiedRequest is the neutral request every ingress adapter produces and
// every connector consumes. Extra keys are passed through to the upstream
// body verbatim; connector-defined keys win on collision.
type UnifiedRequest struct {
	LogicalModel    string                     `json:"logical_model"`
	Messages        []UnifiedMessage           `json:"messages"`
	Tools           []ToolSpec                 `json:"tools,omitempty"`
	ToolChoice      string                     `json:"tool_choice,omitempty"`
	MaxOutputTokens int                        `json:"max_output_tokens,omitempty"`
	Temperature     *float64                   `json:"temperature,omitempty"`
	TopP            *float64                   `json:"top_p,omitempty"`
	Stream          bool                       `json:"stream,omitempty"`
	Extra           map[string]json.RawMessage `json:"extra,omitempty"`
}

// NeedsVision reports whether any message carries an image part.
func (r *UnifiedRequest) NeedsVision() bool {
	for _, m := range r.Messages {
		for _, p := range m.Content {
			if p.Type == ContentTypeImageURL || p.Type == ContentTypeImageB64 {
				return true
			}
		}
	}
	return false
}

// NeedsVideo reports whether any message carries a video part.
func (r *UnifiedRequest) NeedsVideo() bool {
	for _, m := range r.Messages {
		for _, p := range m.Content {
			if p.Type == ContentTypeVideoURL {
				return true
			}
		}
	}
	return false
}

// UnifiedChunk is one element of a connector's reply sequence. For streaming
// responses exactly one chunk has Done=true and it is the last one; a
// non-streaming reply is a single terminal chunk. ProviderEvents preserves
// the raw upstream JSON so the billing layer can mine usage metadata.
type UnifiedChunk struct {
	TextDelta      string          `json:"text_delta,omitempty"`
	ToolCallDelta  json.RawMessage `json:"tool_call_delta,omitempty"`
	Done           bool            `json:"done"`
	ProviderEvents json.RawMessage `json:"provider_events,omitempty"`
}
