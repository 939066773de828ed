package model

import (
	"time"

	"github.com/Laisky/errors/v2"
)

// UsageLog is per-request telemetry, one row per relay attempt including
// failures. Coarser than BillingTransaction and kept even when billing is
// dropped.
type UsageLog struct {
	Id              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestId       string    `json:"request_id" gorm:"type:char(36);index"`
	ApiKeyId        string    `json:"api_key_id" gorm:"type:char(36);index"`
	TenantId        string    `json:"tenant_id" gorm:"index"`
	LogicalModel    string    `json:"logical_model"`
	Provider        string    `json:"provider"`
	ProviderModelId string    `json:"provider_model_id"`
	InputTokens     int64     `json:"input_tokens"`
	OutputTokens    int64     `json:"output_tokens"`
	TotalTokens     int64     `json:"total_tokens"`
	LatencyMs       int64     `json:"latency_ms"`
	StatusCode      int       `json:"status_code"`
	ErrorMessage    string    `json:"error_message"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
}

// InsertUsageLog records one request's telemetry.
func InsertUsageLog(log *UsageLog) error {
	if err := DB.Create(log).Error; err != nil {
		return errors.Wrap(err, "insert usage log")
	}
	return nil
}

// GetTenantUsage pages a tenant's usage rows over [start, end), newest
// first.
func GetTenantUsage(tenantId string, start, end time.Time, limit, offset int) ([]*UsageLog, error) {
	var logs []*UsageLog
	err := DB.Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantId, start, end).
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&logs).Error
	if err != nil {
		return nil, errors.Wrap(err, "query tenant usage")
	}
	return logs, nil
}
