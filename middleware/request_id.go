package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xjp-ai/xjp-gateway/common/ctxkey"
	"github.com/xjp-ai/xjp-gateway/common/random"
)

// RequestId tags every request with a unique id, exposed in the response
// header and on both the gin and request contexts.
func RequestId() func(c *gin.Context) {
	return func(c *gin.Context) {
		id := random.GetUUID()
		c.Set(ctxkey.RequestId, id)
		ctx := context.WithValue(c.Request.Context(), ctxkey.RequestId, id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(ctxkey.RequestId, id)
		c.Next()
	}
}
