package controller

import (
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
	"github.com/xjp-ai/xjp-gateway/relay/adaptor/anthropicapi"
	"github.com/xjp-ai/xjp-gateway/relay/connector"
	"github.com/xjp-ai/xjp-gateway/relay/dispatcher"
	relaymodel "github.com/xjp-ai/xjp-gateway/relay/model"
)

// Messages handles POST /v1/messages: the Anthropic-compatible relay surface.
func Messages(d *dispatcher.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.ActiveConnections.Inc()
		defer metrics.ActiveConnections.Dec()
		start := time.Now()

		body, err := common.GetRequestBody(c)
		if err != nil {
			respondError(c, relaymodel.InvalidError("failed to read request body"))
			return
		}
		req, bizErr := anthropicapi.ToUnified(body)
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
			c.JSON(http.StatusOK, anthropicapi.FinalResponse(req.LogicalModel, resp.Chunk))
			return
		}

		status := relayAnthropicStream(c, resp.Stream)
		observeRequest(c, req.LogicalModel, bctx.Provider, status, true, start)
	}
}

func writeAnthropicEvent(c *gin.Context, ev anthropicapi.StreamEvent) error {
	// Pre-serialized payloads go out as-is; structs are marshalled.
	if data, ok := ev.Data.(string); ok {
		render.EventData(c, ev.Event, data)
		return nil
	}
	return render.EventObjectData(c, ev.Event, ev.Data)
}

// relayAnthropicStream copies upstream chunks to the client as event-typed
// SSE frames in Anthropic's message_start / content_block_delta /
// message_stop sequence.
func relayAnthropicStream(c *gin.Context, stream <-chan connector.StreamEvent) string {
	common.SetEventStreamHeaders(c)
	defer drainStream(stream)
	lg := gmw.GetLogger(c)
	transcoder := anthropicapi.NewStreamTranscoder()

	ticker := time.NewTicker(config.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				return "success"
			}
			ticker.Reset(config.KeepAliveInterval)

			if ev.Err != nil {
				if err := render.EventObjectData(c, anthropicapi.EventError, gin.H{
					"type":  "error",
					"error": ev.Err.Error,
				}); err != nil {
					lg.Warn("write stream error event failed", zap.Error(err))
				}
				return ev.Err.Error.Type
			}

			for _, frame := range transcoder.Frame(ev.Chunk) {
				if err := writeAnthropicEvent(c, frame); err != nil {
					lg.Warn("write stream event failed", zap.Error(err))
					return "client_gone"
				}
			}

		case <-ticker.C:
			render.EventData(c, anthropicapi.EventPing, `{"type":"ping"}`)

		case <-c.Request.Context().Done():
			return "client_gone"
		}
	}
}
