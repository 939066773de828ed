package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Healthz reports liveness.
func Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Models lists the logical models the gateway can route.
func Models(models func() []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		names := models()
		data := make([]gin.H, 0, len(names))
		for _, name := range names {
			data = append(data, gin.H{
				"id":       name,
				"object":   "model",
				"owned_by": "xjp-gateway",
			})
		}
		c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
	}
}
