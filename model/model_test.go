package model

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xjp-ai/xjp-gateway/common/random"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, InitTestDB(path))
	t.Cleanup(func() { _ = CloseDB() })
}

func TestCreateAndVerifyKey(t *testing.T) {
	setupTestDB(t)

	key, rawKey, err := CreateKey("tenant-a", "ci key", 30, 500)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rawKey, random.KeyPrefix))
	assert.NotContains(t, key.KeyHash, rawKey, "only the hash is stored")

	got, err := VerifyKey(rawKey)
	require.NoError(t, err)
	assert.Equal(t, key.Id, got.Id)
	assert.Equal(t, "tenant-a", got.TenantId)
	assert.Equal(t, 30, got.RateLimitRPM)
	assert.Equal(t, 500, got.RateLimitRPD)
}

func TestCreateKeyDefaults(t *testing.T) {
	setupTestDB(t)

	key, _, err := CreateKey("tenant-a", "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 60, key.RateLimitRPM)
	assert.Equal(t, 1000, key.RateLimitRPD)
}

func TestVerifyKeyFailures(t *testing.T) {
	setupTestDB(t)

	_, err := VerifyKey("sk-wrong-prefix")
	assert.True(t, errors.Is(err, ErrKeyInvalidFormat))

	_, err = VerifyKey(random.KeyPrefix + "does-not-exist")
	assert.True(t, errors.Is(err, ErrKeyNotFound))

	key, rawKey, err := CreateKey("tenant-a", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, DeactivateKey(key.Id))
	_, err = VerifyKey(rawKey)
	assert.True(t, errors.Is(err, ErrKeyInactive))

	_, expiredRaw, err := CreateKey("tenant-a", "", 0, 0)
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, DB.Model(&ApiKey{}).
		Where("key_hash = ?", HashKey(expiredRaw)).
		Update("expires_at", past).Error)
	_, err = VerifyKey(expiredRaw)
	assert.True(t, errors.Is(err, ErrKeyExpired))
}

func TestTouchKey(t *testing.T) {
	setupTestDB(t)

	key, rawKey, err := CreateKey("tenant-a", "", 0, 0)
	require.NoError(t, err)

	require.NoError(t, TouchKey(key.Id))
	got, err := VerifyKey(rawKey)
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)
	assert.WithinDuration(t, time.Now(), *got.LastUsedAt, time.Minute)
}

func newTx(tenantId, requestId string, cost float64, status string) *BillingTransaction {
	return &BillingTransaction{
		Id:               uuid.NewString(),
		TenantId:         tenantId,
		ApiKeyId:         uuid.NewString(),
		RequestId:        requestId,
		LogicalModel:     "demo",
		Provider:         "openrouter",
		ProviderModelId:  "openai/gpt-4o-mini",
		PromptTokens:     3,
		CompletionTokens: 1,
		TotalTokens:      4,
		TotalCost:        cost,
		Status:           status,
		CreatedAt:        time.Now(),
	}
}

func TestInsertTransactionIdempotent(t *testing.T) {
	setupTestDB(t)

	requestId := uuid.NewString()
	first := newTx("tenant-a", requestId, 0.01, TxStatusSuccess)
	require.NoError(t, InsertTransaction(first))

	dup := newTx("tenant-a", requestId, 99.0, TxStatusSuccess)
	require.NoError(t, InsertTransaction(dup), "duplicate insert is a no-op")

	var count int64
	require.NoError(t, DB.Model(&BillingTransaction{}).
		Where("request_id = ?", requestId).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	txs, err := GetTransactionsByTenant("tenant-a", 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 0.01, txs[0].TotalCost, "first write wins")
}

func TestGetTransactionsPagination(t *testing.T) {
	setupTestDB(t)

	keyId := uuid.NewString()
	for i := 0; i < 5; i++ {
		tx := newTx("tenant-b", uuid.NewString(), float64(i), TxStatusSuccess)
		tx.ApiKeyId = keyId
		tx.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, InsertTransaction(tx))
	}

	page, err := GetTransactionsByTenant("tenant-b", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 4.0, page[0].TotalCost, "newest first")

	page, err = GetTransactionsByTenant("tenant-b", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 2.0, page[0].TotalCost)

	byKey, err := GetTransactionsByApiKey(keyId, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byKey, 5)
}

func TestGetCostSummary(t *testing.T) {
	setupTestDB(t)

	now := time.Now()
	ok := newTx("tenant-c", uuid.NewString(), 0.5, TxStatusSuccess)
	ok.CreatedAt = now
	require.NoError(t, InsertTransaction(ok))

	failed := newTx("tenant-c", uuid.NewString(), 0.0, TxStatusError)
	failed.CreatedAt = now
	require.NoError(t, InsertTransaction(failed))

	outside := newTx("tenant-c", uuid.NewString(), 9.9, TxStatusSuccess)
	outside.CreatedAt = now.Add(-48 * time.Hour)
	require.NoError(t, InsertTransaction(outside))

	summary, err := GetCostSummary("tenant-c", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalRequests)
	assert.Equal(t, int64(1), summary.SuccessfulRequests)
	assert.Equal(t, int64(1), summary.FailedRequests)
	assert.Equal(t, int64(8), summary.TotalTokens)
	assert.InDelta(t, 0.5, summary.TotalCost, 1e-9)
}

func TestUsageLog(t *testing.T) {
	setupTestDB(t)

	now := time.Now()
	require.NoError(t, InsertUsageLog(&UsageLog{
		RequestId:    uuid.NewString(),
		TenantId:     "tenant-d",
		LogicalModel: "demo",
		Provider:     "vertex",
		InputTokens:  10,
		OutputTokens: 5,
		TotalTokens:  15,
		StatusCode:   200,
		CreatedAt:    now,
	}))

	logs, err := GetTenantUsage("tenant-d", now.Add(-time.Minute), now.Add(time.Minute), 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(15), logs[0].TotalTokens)
}
