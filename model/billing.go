package model

import (
	"encoding/json"
	"time"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm/clause"
)

// Transaction statuses persisted in the status column.
const (
	TxStatusSuccess = "success"
	TxStatusError   = "error"
)

// BillingTransaction is the persisted cost record for one request. The
// pricing snapshot is stored alongside the amounts so historical cost stays
// reproducible after catalog prices change.
type BillingTransaction struct {
	Id                 string          `json:"id" gorm:"type:char(36);primaryKey"`
	TenantId           string          `json:"tenant_id" gorm:"index"`
	ApiKeyId           string          `json:"api_key_id" gorm:"type:char(36);index"`
	RequestId          string          `json:"request_id" gorm:"type:char(36);uniqueIndex"`
	LogicalModel       string          `json:"logical_model"`
	Provider           string          `json:"provider"`
	ProviderModelId    string          `json:"provider_model_id"`
	PromptTokens       int64           `json:"prompt_tokens"`
	CompletionTokens   int64           `json:"completion_tokens"`
	ReasoningTokens    int64           `json:"reasoning_tokens"`
	CachedPromptTokens int64           `json:"cached_prompt_tokens"`
	TotalTokens        int64           `json:"total_tokens"`
	PromptCost         float64         `json:"prompt_cost"`
	CompletionCost     float64         `json:"completion_cost"`
	ReasoningCost      float64         `json:"reasoning_cost"`
	CacheReadCost      float64         `json:"cache_read_cost"`
	RequestCost        float64         `json:"request_cost"`
	TotalCost          float64         `json:"total_cost"`
	PricingSnapshot    json.RawMessage `json:"pricing_snapshot" gorm:"type:text"`
	ResponseTimeMs     int64           `json:"response_time_ms"`
	Status             string          `json:"status"`
	ErrorMessage       string          `json:"error_message"`
	CreatedAt          time.Time       `json:"created_at" gorm:"index"`
}

// CostSummary aggregates transactions over a time range.
type CostSummary struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	TotalTokens        int64   `json:"total_tokens"`
	TotalCost          float64 `json:"total_cost"`
}

// InsertTransaction persists one transaction. Idempotent on request_id: a
// second insert with the same request id is a silent no-op.
func InsertTransaction(tx *BillingTransaction) error {
	err := DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoNothing: true,
	}).Create(tx).Error
	if err != nil {
		return errors.Wrap(err, "insert billing transaction")
	}
	return nil
}

// GetTransactionsByTenant pages a tenant's transactions, newest first.
func GetTransactionsByTenant(tenantId string, limit, offset int) ([]*BillingTransaction, error) {
	var txs []*BillingTransaction
	err := DB.Where("tenant_id = ?", tenantId).
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, errors.Wrap(err, "query transactions by tenant")
	}
	return txs, nil
}

// GetTransactionsByApiKey pages one key's transactions, newest first.
func GetTransactionsByApiKey(apiKeyId string, limit, offset int) ([]*BillingTransaction, error) {
	var txs []*BillingTransaction
	err := DB.Where("api_key_id = ?", apiKeyId).
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, errors.Wrap(err, "query transactions by api key")
	}
	return txs, nil
}

// GetCostSummary aggregates a tenant's transactions over [start, end).
func GetCostSummary(tenantId string, start, end time.Time) (*CostSummary, error) {
	var summary CostSummary
	err := DB.Model(&BillingTransaction{}).
		Select(
			"COUNT(*) as total_requests, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as successful_requests, "+
				"COALESCE(SUM(CASE WHEN status != ? THEN 1 ELSE 0 END), 0) as failed_requests, "+
				"COALESCE(SUM(total_tokens), 0) as total_tokens, "+
				"COALESCE(SUM(total_cost), 0) as total_cost",
			TxStatusSuccess, TxStatusSuccess).
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantId, start, end).
		Scan(&summary).Error
	if err != nil {
		return nil, errors.Wrap(err, "query cost summary")
	}
	return &summary, nil
}
