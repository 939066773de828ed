package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBreakdown(t *testing.T) {
	usage := TokenUsage{
		PromptTokens:       1000,
		CompletionTokens:   500,
		ReasoningTokens:    200,
		CachedPromptTokens: 300,
	}
	price := PricingEntry{
		Prompt:            0.000001,
		Completion:        0.000002,
		Request:           0.0001,
		InternalReasoning: 0.000003,
		InputCacheRead:    0.0000005,
	}

	got := Compute(usage, price)

	assert.InDelta(t, 700*0.000001, got.PromptCost, 1e-12, "cached tokens excluded from prompt rate")
	assert.InDelta(t, 300*0.0000005, got.CacheReadCost, 1e-12)
	assert.InDelta(t, 500*0.000002, got.CompletionCost, 1e-12)
	assert.InDelta(t, 200*0.000003, got.ReasoningCost, 1e-12)
	assert.InDelta(t, 0.0001, got.RequestCost, 1e-12)

	sum := got.PromptCost + got.CacheReadCost + got.CompletionCost + got.ReasoningCost + got.RequestCost
	assert.Equal(t, sum, got.TotalCost, "total is the exact IEEE-754 sum in declared order")
	assert.Equal(t, "USD", got.Unit)
}

func TestComputeReasoningFallsBackToCompletionPrice(t *testing.T) {
	usage := TokenUsage{ReasoningTokens: 100}
	price := PricingEntry{Completion: 0.00002}

	got := Compute(usage, price)
	assert.InDelta(t, 100*0.00002, got.ReasoningCost, 1e-12)
}

func TestComputeCachedExceedsPrompt(t *testing.T) {
	// cached > prompt clamps the non-cached count at zero
	usage := TokenUsage{PromptTokens: 10, CachedPromptTokens: 50}
	price := PricingEntry{Prompt: 1, InputCacheRead: 0.1}

	got := Compute(usage, price)
	assert.Equal(t, 0.0, got.PromptCost)
	assert.InDelta(t, 5.0, got.CacheReadCost, 1e-12)
}

func TestComputeZeroUsage(t *testing.T) {
	price := PricingEntry{
		Prompt:     0.001,
		Completion: 0.002,
		Request:    0.05,
	}

	got := Compute(TokenUsage{}, price)
	assert.Equal(t, price.Request, got.TotalCost, "zero usage costs exactly the request price")
}
