package billing

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/xjp-ai/xjp-gateway/common/logger"
	"github.com/xjp-ai/xjp-gateway/relay/model"
)

// Streaming replies often carry no upstream usage metadata, so prompt
// counts fall back to a local tokenizer estimate keyed by model family.

var (
	encoderOnce    sync.Once
	o200kEncoder   *tiktoken.Tiktoken
	cl100kEncoder  *tiktoken.Tiktoken
	encoderInitErr error
)

func initEncoders() {
	encoderOnce.Do(func() {
		o200kEncoder, encoderInitErr = tiktoken.GetEncoding("o200k_base")
		if encoderInitErr != nil {
			logger.Logger.Warn("failed to load o200k_base encoder; token estimates unavailable")
			return
		}
		cl100kEncoder, encoderInitErr = tiktoken.GetEncoding("cl100k_base")
		if encoderInitErr != nil {
			logger.Logger.Warn("failed to load cl100k_base encoder; token estimates unavailable")
		}
	})
}

// encodingNameForModel picks the tokenizer family for a provider model id.
func encodingNameForModel(providerModelID string) string {
	id := strings.ToLower(providerModelID)
	for _, family := range []string{"gpt-4o", "gpt-4.1", "gpt-5", "o1", "o3", "o4"} {
		if strings.Contains(id, family) {
			return "o200k_base"
		}
	}
	return "cl100k_base"
}

// EstimateTextTokens counts the tokens of a text with the model family's
// tokenizer. Best effort: 0 when no encoder is available.
func EstimateTextTokens(providerModelID, text string) int64 {
	initEncoders()
	if encoderInitErr != nil {
		return 0
	}

	encoder := cl100kEncoder
	if encodingNameForModel(providerModelID) == "o200k_base" {
		encoder = o200kEncoder
	}
	return int64(len(encoder.Encode(text, nil, nil)))
}

// EstimatePromptTokens counts the text tokens of the prompt messages.
func EstimatePromptTokens(providerModelID string, messages []model.UnifiedMessage) int64 {
	var text strings.Builder
	for _, m := range messages {
		for _, p := range m.Content {
			if p.Type == model.ContentTypeText {
				text.WriteString(p.Text)
				text.WriteByte('\n')
			}
		}
	}
	return EstimateTextTokens(providerModelID, text.String())
}
