// Package controller holds the HTTP handlers: the two relay surfaces, the
// billing read API, and health.
package controller

import (
	"fmt"
	"net/http"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/xjp-ai/xjp-gateway/common"
	"github.com/xjp-ai/xjp-gateway/common/config"
	"github.com/xjp-ai/xjp-gateway/common/ctxkey"
	"github.com/xjp-ai/xjp-gateway/common/metrics"
	"github.com/xjp-ai/xjp-gateway/common/render"
	"github.com/xjp-ai/xjp-gateway/relay/adaptor/openaiapi"
	"github.com/xjp-ai/xjp-gateway/relay/connector"
	"github.com/xjp-ai/xjp-gateway/relay/dispatcher"
	relaymodel "github.com/xjp-ai/xjp-gateway/relay/model"
)

func respondError(c *gin.Context, bizErr *relaymodel.ErrorWithStatusCode) {
	c.JSON(bizErr.StatusCode, gin.H{"error": bizErr.Error})
}

func observeRequest(c *gin.Context, logicalModel, provider, status string, stream bool, start time.Time) {
	tenantID := c.GetString(ctxkey.TenantId)
	metrics.RequestsTotal.WithLabelValues(tenantID, logicalModel, provider, status).Inc()
	metrics.RequestDuration.WithLabelValues(tenantID, logicalModel, provider,
		fmt.Sprintf("%t", stream)).Observe(time.Since(start).Seconds())
}

// ChatCompletions handles POST /v1/chat/completions: the OpenAI-compatible
// relay surface.
func ChatCompletions(d *dispatcher.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.ActiveConnections.Inc()
		defer metrics.ActiveConnections.Dec()
		start := time.Now()

		body, err := common.GetRequestBody(c)
		if err != nil {
			respondError(c, relaymodel.InvalidError("failed to read request body"))
			return
		}
		req, bizErr := openaiapi.ToUnified(body)
		if bizErr != nil {
			respondError(c, bizErr)
			return
		}
		c.Set(ctxkey.RequestModel, req.LogicalModel)

		resp, bctx, bizErr := d.InvokeWithBilling(c.Request.Context(), req,
			c.GetString(ctxkey.TenantId), c.GetString(ctxkey.ApiKeyId))
		if bizErr != nil {
			provider := ""
			if bctx != nil {
				provider = bctx.Provider
			}
			observeRequest(c, req.LogicalModel, provider, bizErr.Error.Type, req.Stream, start)
			respondError(c, bizErr)
			return
		}

		if resp.Chunk != nil {
			observeRequest(c, req.LogicalModel, bctx.Provider, "success", false, start)
			c.JSON(http.StatusOK, openaiapi.FinalResponse(req.LogicalModel, resp.Chunk))
			return
		}

		status := relayOpenAIStream(c, req.LogicalModel, resp.Stream)
		observeRequest(c, req.LogicalModel, bctx.Provider, status, true, start)
	}
}

// drainStream consumes leftover events so the producing goroutine can finish
// and the billing tee observes the full stream.
func drainStream(stream <-chan connector.StreamEvent) {
	go func() {
		for range stream {
		}
	}()
}

// relayOpenAIStream copies upstream chunks to the client as chat.completion.chunk
// frames, with keep-alive pings on idle gaps and a [DONE] sentinel at the end.
func relayOpenAIStream(c *gin.Context, logicalModel string, stream <-chan connector.StreamEvent) string {
	common.SetEventStreamHeaders(c)
	defer drainStream(stream)
	lg := gmw.GetLogger(c)
	transcoder := openaiapi.NewStreamTranscoder(logicalModel)

	ticker := time.NewTicker(config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				render.Done(c)
				return "success"
			}
			ticker.Reset(config.KeepAliveInterval)

			if ev.Err != nil {
				if err := render.ObjectData(c, gin.H{"error": ev.Err.Error}); err != nil {
					lg.Warn("write stream error frame failed", zap.Error(err))
				}
				render.Done(c)
				return ev.Err.Error.Type
			}

			frame, emit := transcoder.Frame(ev.Chunk)
			if !emit {
				continue
			}
			if err := render.ObjectData(c, frame); err != nil {
				lg.Warn("write stream frame failed", zap.Error(err))
				return "client_gone"
			}

		case <-ticker.C:
			render.Ping(c)

		case <-c.Request.Context().Done():
			return "client_gone"
		}
	}
}
