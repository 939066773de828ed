// Package router wires the HTTP surface: relay endpoints, billing reads,
// health, and metrics.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xjp-ai/xjp-gateway/controller"
	"github.com/xjp-ai/xjp-gateway/middleware"
	"github.com/xjp-ai/xjp-gateway/relay/billing"
	"github.com/xjp-ai/xjp-gateway/relay/dispatcher"
	"github.com/xjp-ai/xjp-gateway/relay/registry"
)

// SetRouter registers every route on the server.
func SetRouter(server *gin.Engine, d *dispatcher.Dispatcher, reg *registry.Registry, pricing *billing.PricingCache) {
	server.Use(middleware.CORS())
	server.Use(middleware.RequestId())

	server.GET("/healthz", controller.Healthz)
	server.GET("/metrics", gin.WrapH(promhttp.Handler()))

	relayGroup := server.Group("", middleware.KeyAuth(), middleware.RateLimit())
	relayGroup.POST("/v1/chat/completions", controller.ChatCompletions(d))
	relayGroup.POST("/v1/messages", controller.Messages(d))
	relayGroup.GET("/v1/models", controller.Models(reg.Models))

	billingGroup := server.Group("/billing", middleware.KeyAuth())
	billingGroup.POST("/quote", controller.Quote(pricing))
	billingGroup.GET("/transactions", controller.Transactions())
	billingGroup.GET("/summary", controller.Summary())
}
