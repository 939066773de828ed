package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/xjp-ai/xjp-gateway/common/ctxkey"
	"github.com/xjp-ai/xjp-gateway/common/metrics"
	"github.com/xjp-ai/xjp-gateway/model"
	relaymodel "github.com/xjp-ai/xjp-gateway/relay/model"
)

// keyLimiters holds one token bucket per API key id. Buckets refill at the
// key's per-minute rate; the daily limit is accounted in usage logs rather
// than enforced here.
var keyLimiters sync.Map

type keyLimiter struct {
	limiter *rate.Limiter
	rpm     int
}

func limiterFor(keyId string, rpm int) *rate.Limiter {
	if rpm <= 0 {
		rpm = 60
	}
	if cached, ok := keyLimiters.Load(keyId); ok {
		kl := cached.(*keyLimiter)
		if kl.rpm == rpm {
			return kl.limiter
		}
	}
	// New key, or the key's configured rate changed: rebuild the bucket.
	// Burst of one keeps admissions within rpm+1 per minute.
	kl := &keyLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		rpm:     rpm,
	}
	keyLimiters.Store(keyId, kl)
	return kl.limiter
}

// RateLimit throttles per API key using the key's configured requests per
// minute. Runs after KeyAuth.
func RateLimit() func(c *gin.Context) {
	return func(c *gin.Context) {
		info, ok := c.Get(ctxkey.KeyInfo)
		if !ok {
			abortWithError(c, relaymodel.ErrTypeInternal, "rate limit requires authentication")
			return
		}
		key := info.(*model.ApiKey)

		limiter := limiterFor(key.Id, key.RateLimitRPM)
		if !limiter.Allow() {
			metrics.RateLimitHits.WithLabelValues(key.TenantId).Inc()
			retryAfter := time.Second
			if delay := limiter.Reserve(); delay.OK() {
				retryAfter = delay.Delay()
				delay.Cancel()
			}
			seconds := int(retryAfter.Seconds()) + 1
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", key.RateLimitRPM))
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(retryAfter).Unix()))
			abortWithError(c, relaymodel.ErrTypeRateLimited, "rate limit exceeded")
			return
		}

		c.Next()
	}
}
