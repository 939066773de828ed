package billing

import (
	"encoding/json"
)

// TokenUsage is the neutral token count extracted from provider events.
type TokenUsage struct {
	PromptTokens       int64 `json:"prompt_tokens"`
	CompletionTokens   int64 `json:"completion_tokens"`
	ReasoningTokens    int64 `json:"reasoning_tokens"`
	CachedPromptTokens int64 `json:"cached_prompt_tokens"`
}

// openRouterUsage is the OpenAI-family usage envelope.
type openRouterUsage struct {
	Usage *struct {
		PromptTokens            int64 `json:"prompt_tokens"`
		CompletionTokens        int64 `json:"completion_tokens"`
		CompletionTokensDetails *struct {
			ReasoningTokens int64 `json:"reasoning_tokens"`
		} `json:"completion_tokens_details"`
		PromptTokensDetails *struct {
			CachedTokens int64 `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
}

// vertexUsage is the Vertex usageMetadata envelope. Cached prompt tokens
// are not reported.
type vertexUsage struct {
	UsageMetadata *struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
		ThoughtsTokenCount   int64 `json:"thoughts_token_count"`
	} `json:"usageMetadata"`
}

// ExtractUsage mines token usage from a chunk's raw provider events. The
// OpenAI-family `usage` envelope is preferred, then Vertex `usageMetadata`;
// anything else counts as zero.
func ExtractUsage(providerEvents json.RawMessage) TokenUsage {
	if len(providerEvents) == 0 {
		return TokenUsage{}
	}

	var or openRouterUsage
	if err := json.Unmarshal(providerEvents, &or); err == nil && or.Usage != nil {
		usage := TokenUsage{
			PromptTokens:     or.Usage.PromptTokens,
			CompletionTokens: or.Usage.CompletionTokens,
		}
		if or.Usage.CompletionTokensDetails != nil {
			usage.ReasoningTokens = or.Usage.CompletionTokensDetails.ReasoningTokens
		}
		if or.Usage.PromptTokensDetails != nil {
			usage.CachedPromptTokens = or.Usage.PromptTokensDetails.CachedTokens
		}
		return usage
	}

	var vx vertexUsage
	if err := json.Unmarshal(providerEvents, &vx); err == nil && vx.UsageMetadata != nil {
		return TokenUsage{
			PromptTokens:     vx.UsageMetadata.PromptTokenCount,
			CompletionTokens: vx.UsageMetadata.CandidatesTokenCount,
			ReasoningTokens:  vx.UsageMetadata.ThoughtsTokenCount,
		}
	}

	return TokenUsage{}
}
