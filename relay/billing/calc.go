package billing

// CostBreakdown is the per-component cost of one request, in USD.
type CostBreakdown struct {
	PromptTokens       int64   `json:"prompt_tokens"`
	CompletionTokens   int64   `json:"completion_tokens"`
	ReasoningTokens    int64   `json:"reasoning_tokens"`
	CachedPromptTokens int64   `json:"cached_prompt_tokens"`
	PromptCost         float64 `json:"prompt_cost"`
	CompletionCost     float64 `json:"completion_cost"`
	ReasoningCost      float64 `json:"internal_reasoning_cost"`
	CacheReadCost      float64 `json:"cache_read_cost"`
	RequestCost        float64 `json:"request_cost"`
	TotalCost          float64 `json:"total_cost"`
	Unit               string  `json:"unit"`
}

// Compute prices a usage against a pricing entry. Cached prompt tokens are
// billed at the cache-read rate and excluded from the prompt rate; reasoning
// falls back to the completion rate when no reasoning price is listed. The
// total is the sum of the subtotals in declared order.
func Compute(usage TokenUsage, price PricingEntry) CostBreakdown {
	promptNonCached := usage.PromptTokens - usage.CachedPromptTokens
	if promptNonCached < 0 {
		promptNonCached = 0
	}

	promptCost := float64(promptNonCached) * price.Prompt
	cacheReadCost := float64(usage.CachedPromptTokens) * price.InputCacheRead
	completionCost := float64(usage.CompletionTokens) * price.Completion

	reasoningPrice := price.InternalReasoning
	if reasoningPrice <= 0 {
		reasoningPrice = price.Completion
	}
	reasoningCost := float64(usage.ReasoningTokens) * reasoningPrice

	requestCost := price.Request

	totalCost := promptCost + cacheReadCost + completionCost + reasoningCost + requestCost

	return CostBreakdown{
		PromptTokens:       usage.PromptTokens,
		CompletionTokens:   usage.CompletionTokens,
		ReasoningTokens:    usage.ReasoningTokens,
		CachedPromptTokens: usage.CachedPromptTokens,
		PromptCost:         promptCost,
		CompletionCost:     completionCost,
		ReasoningCost:      reasoningCost,
		CacheReadCost:      cacheReadCost,
		RequestCost:        requestCost,
		TotalCost:          totalCost,
		Unit:               "USD",
	}
}
