package middleware

import (
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"

	"github.com/xjp-ai/xjp-gateway/common/config"
	"github.com/xjp-ai/xjp-gateway/common/ctxkey"
	"github.com/xjp-ai/xjp-gateway/common/logger"
	"github.com/xjp-ai/xjp-gateway/common/metrics"
	"github.com/xjp-ai/xjp-gateway/common/random"
	"github.com/xjp-ai/xjp-gateway/model"
	relaymodel "github.com/xjp-ai/xjp-gateway/relay/model"
)

// keyCache holds verified keys for a short window so hot tenants do not hit
// the database on every request. Entries are keyed by the key hash, never
// the raw key.
var keyCache = gocache.New(config.KeyCacheTTL, 2*config.KeyCacheTTL)

// extractKey pulls the raw API key from the Authorization header (with or
// without the Bearer scheme) or the x-api-key header.
func extractKey(c *gin.Context) string {
	auth := strings.TrimSpace(c.Request.Header.Get("Authorization"))
	auth = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer"))
	if strings.HasPrefix(auth, random.KeyPrefix) {
		return auth
	}
	if apiKey := strings.TrimSpace(c.Request.Header.Get("x-api-key")); strings.HasPrefix(apiKey, random.KeyPrefix) {
		return apiKey
	}
	return ""
}

func verifyCached(rawKey string) (*model.ApiKey, error) {
	hash := model.HashKey(rawKey)
	if cached, ok := keyCache.Get(hash); ok {
		return cached.(*model.ApiKey), nil
	}

	key, err := model.VerifyKey(rawKey)
	if err != nil {
		return nil, err
	}
	keyCache.SetDefault(hash, key)
	return key, nil
}

// KeyAuth authenticates the request with an XJP API key and stores the key
// info on the context for rate limiting and billing attribution.
func KeyAuth() func(c *gin.Context) {
	return func(c *gin.Context) {
		rawKey := extractKey(c)
		if rawKey == "" {
			metrics.AuthErrors.WithLabelValues("missing_key").Inc()
			abortWithError(c, relaymodel.ErrTypeAuth, "missing API key")
			return
		}

		key, err := verifyCached(rawKey)
		if err != nil {
			switch {
			case errors.Is(err, model.ErrKeyInvalidFormat), errors.Is(err, model.ErrKeyNotFound):
				metrics.AuthErrors.WithLabelValues("invalid_key").Inc()
				abortWithError(c, relaymodel.ErrTypeAuth, "invalid API key")
			case errors.Is(err, model.ErrKeyExpired):
				metrics.AuthErrors.WithLabelValues("expired_key").Inc()
				abortWithError(c, relaymodel.ErrTypeAuth, "API key has expired")
			case errors.Is(err, model.ErrKeyInactive):
				metrics.AuthErrors.WithLabelValues("inactive_key").Inc()
				abortWithError(c, relaymodel.ErrTypeInactiveKey, "API key is inactive")
			default:
				logger.Logger.Error("key verification failed", zap.Error(err))
				metrics.AuthErrors.WithLabelValues("internal").Inc()
				abortWithError(c, relaymodel.ErrTypeInternal, "key verification failed")
			}
			return
		}

		c.Set(ctxkey.KeyInfo, key)
		c.Set(ctxkey.TenantId, key.TenantId)
		c.Set(ctxkey.ApiKeyId, key.Id)

		go func(keyId string) {
			if err := model.TouchKey(keyId); err != nil {
				logger.Logger.Warn("touch api key failed",
					zap.String("key_id", keyId), zap.Error(err))
			}
		}(key.Id)

		c.Next()
	}
}
