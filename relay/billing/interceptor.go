package billing

import (
	"context"
	"time"

	"github.com/Laisky/zap"
	"github.com/google/uuid"

	"github.com/xjp-ai/xjp-gateway/common/helper"
	"github.com/xjp-ai/xjp-gateway/common/logger"
	"github.com/xjp-ai/xjp-gateway/common/metrics"
	dbmodel "github.com/xjp-ai/xjp-gateway/model"
	relaymodel "github.com/xjp-ai/xjp-gateway/relay/model"
)

// Context carries the identifiers captured before dispatch that billing
// needs after the response completes.
type Context struct {
	RequestID       string
	TenantID        string
	ApiKeyID        string
	LogicalModel    string
	Provider        string
	ProviderModelID string
	Start           time.Time
}

// Interceptor observes requests and persists billing transactions. After
// runs off the request path: its failures are logged, never surfaced.
type Interceptor struct {
	pricing *PricingCache
}

func NewInterceptor(pricing *PricingCache) *Interceptor {
	return &Interceptor{pricing: pricing}
}

// Before mints the billing context for one request, including the fresh
// request id used as the idempotency key.
func (i *Interceptor) Before(req *relaymodel.UnifiedRequest, tenantID, apiKeyID, provider, providerModelID string) *Context {
	return &Context{
		RequestID:       uuid.NewString(),
		TenantID:        tenantID,
		ApiKeyID:        apiKeyID,
		LogicalModel:    req.LogicalModel,
		Provider:        provider,
		ProviderModelID: providerModelID,
		Start:           time.Now(),
	}
}

// After extracts usage from the terminal chunk, prices it, and persists the
// transaction plus a usage log row. Designed to run on its own goroutine;
// a pricing failure drops this transaction with an error log.
func (i *Interceptor) After(ctx context.Context, bctx *Context, terminal *relaymodel.UnifiedChunk, status string, errMessage string) {
	var usage TokenUsage
	if terminal != nil {
		usage = ExtractUsage(terminal.ProviderEvents)
	}
	elapsedMs := helper.CalcElapsedTime(bctx.Start)

	i.logUsage(bctx, usage, elapsedMs, status, errMessage)

	price, err := i.pricing.Get(ctx, bctx.ProviderModelID)
	if err != nil {
		logger.Logger.Error("pricing fetch failed, dropping billing transaction",
			zap.Error(err),
			zap.String("request_id", bctx.RequestID),
			zap.String("provider_model_id", bctx.ProviderModelID))
		return
	}

	breakdown := Compute(usage, price)
	tx := &dbmodel.BillingTransaction{
		Id:                 uuid.NewString(),
		TenantId:           bctx.TenantID,
		ApiKeyId:           bctx.ApiKeyID,
		RequestId:          bctx.RequestID,
		LogicalModel:       bctx.LogicalModel,
		Provider:           bctx.Provider,
		ProviderModelId:    bctx.ProviderModelID,
		PromptTokens:       breakdown.PromptTokens,
		CompletionTokens:   breakdown.CompletionTokens,
		ReasoningTokens:    breakdown.ReasoningTokens,
		CachedPromptTokens: breakdown.CachedPromptTokens,
		TotalTokens:        breakdown.PromptTokens + breakdown.CompletionTokens,
		PromptCost:         breakdown.PromptCost,
		CompletionCost:     breakdown.CompletionCost,
		ReasoningCost:      breakdown.ReasoningCost,
		CacheReadCost:      breakdown.CacheReadCost,
		RequestCost:        breakdown.RequestCost,
		TotalCost:          breakdown.TotalCost,
		PricingSnapshot:    Snapshot(price),
		ResponseTimeMs:     elapsedMs,
		Status:             status,
		ErrorMessage:       errMessage,
		CreatedAt:          time.Now(),
	}

	if err := dbmodel.InsertTransaction(tx); err != nil {
		logger.Logger.Error("failed to persist billing transaction",
			zap.Error(err),
			zap.String("request_id", bctx.RequestID))
		return
	}

	metrics.RecordUsage(bctx.TenantID, bctx.LogicalModel, bctx.Provider,
		usage.PromptTokens, usage.CompletionTokens, usage.ReasoningTokens, usage.CachedPromptTokens)
}

func (i *Interceptor) logUsage(bctx *Context, usage TokenUsage, elapsedMs int64, status, errMessage string) {
	statusCode := 200
	if status != dbmodel.TxStatusSuccess {
		statusCode = 502
	}
	err := dbmodel.InsertUsageLog(&dbmodel.UsageLog{
		RequestId:       bctx.RequestID,
		ApiKeyId:        bctx.ApiKeyID,
		TenantId:        bctx.TenantID,
		LogicalModel:    bctx.LogicalModel,
		Provider:        bctx.Provider,
		ProviderModelId: bctx.ProviderModelID,
		InputTokens:     usage.PromptTokens,
		OutputTokens:    usage.CompletionTokens,
		TotalTokens:     usage.PromptTokens + usage.CompletionTokens,
		LatencyMs:       elapsedMs,
		StatusCode:      statusCode,
		ErrorMessage:    errMessage,
		CreatedAt:       time.Now(),
	})
	if err != nil {
		logger.Logger.Warn("failed to insert usage log",
			zap.Error(err),
			zap.String("request_id", bctx.RequestID))
	}
}
