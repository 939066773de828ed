package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xjp-ai/xjp-gateway/common/random"
)

// Key verification outcomes. Callers match with errors.Is.
var (
	ErrKeyInvalidFormat = errors.New("invalid key format")
	ErrKeyNotFound      = errors.New("key not found")
	ErrKeyInactive      = errors.New("key is inactive")
	ErrKeyExpired       = errors.New("key has expired")
)

const (
	defaultRateLimitRPM = 60
	defaultRateLimitRPD = 1000
)

// ApiKey is one issued credential. Only the SHA-256 hash of the raw key is
// stored; the raw key is shown to the operator exactly once at mint time.
type ApiKey struct {
	Id           string     `json:"id" gorm:"type:char(36);primaryKey"`
	KeyHash      string     `json:"-" gorm:"type:char(64);uniqueIndex"`
	TenantId     string     `json:"tenant_id" gorm:"index"`
	Description  string     `json:"description"`
	RateLimitRPM int        `json:"rate_limit_rpm" gorm:"default:60"`
	RateLimitRPD int        `json:"rate_limit_rpd" gorm:"default:1000"`
	IsActive     bool       `json:"is_active" gorm:"default:true"`
	ExpiresAt    *time.Time `json:"expires_at"`
	LastUsedAt   *time.Time `json:"last_used_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HashKey digests a raw key for storage and lookup.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// VerifyKey checks a raw key's format, looks up its hash, and validates
// active/expiry state.
func VerifyKey(rawKey string) (*ApiKey, error) {
	if !strings.HasPrefix(rawKey, random.KeyPrefix) {
		return nil, errors.WithStack(ErrKeyInvalidFormat)
	}

	var key ApiKey
	err := DB.Where("key_hash = ?", HashKey(rawKey)).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.WithStack(ErrKeyNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "query api key")
	}

	if !key.IsActive {
		return nil, errors.WithStack(ErrKeyInactive)
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
		return nil, errors.WithStack(ErrKeyExpired)
	}
	return &key, nil
}

// TouchKey updates the key's last-used timestamp. Failures are for the
// caller to log and discard; they never gate a request.
func TouchKey(keyId string) error {
	err := DB.Model(&ApiKey{}).
		Where("id = ?", keyId).
		Update("last_used_at", time.Now()).Error
	if err != nil {
		return errors.Wrap(err, "touch api key")
	}
	return nil
}

// CreateKey mints a new key for a tenant and returns its id plus the raw
// key. rpm/rpd of 0 take the defaults.
func CreateKey(tenantId, description string, rpm, rpd int) (*ApiKey, string, error) {
	if rpm <= 0 {
		rpm = defaultRateLimitRPM
	}
	if rpd <= 0 {
		rpd = defaultRateLimitRPD
	}

	rawKey := random.GenerateKey()
	key := &ApiKey{
		Id:           uuid.NewString(),
		KeyHash:      HashKey(rawKey),
		TenantId:     tenantId,
		Description:  description,
		RateLimitRPM: rpm,
		RateLimitRPD: rpd,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err := DB.Create(key).Error; err != nil {
		return nil, "", errors.Wrap(err, "create api key")
	}
	return key, rawKey, nil
}

// DeactivateKey disables a key without deleting its history.
func DeactivateKey(keyId string) error {
	err := DB.Model(&ApiKey{}).
		Where("id = ?", keyId).
		Update("is_active", false).Error
	if err != nil {
		return errors.Wrap(err, "deactivate api key")
	}
	return nil
}
