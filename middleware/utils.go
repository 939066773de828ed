package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/xjp-ai/xjp-gateway/relay/model"
)

// abortWithError terminates the chain with the gateway's error envelope.
func abortWithError(c *gin.Context, errType, message string) {
	c.JSON(model.StatusForType(errType), gin.H{
		"error": model.Error{
			Message: message,
			Type:    errType,
		},
	})
	c.Abort()
}
