package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xjp-ai/xjp-gateway/model"
	"github.com/xjp-ai/xjp-gateway/relay/billing"
	relaymodel "github.com/xjp-ai/xjp-gateway/relay/model"
)

const defaultTransactionsLimit = 100

type quoteRequest struct {
	ProviderModelID string             `json:"provider_model_id"`
	Usage           *billing.TokenUsage `json:"usage"`
}

// Quote handles POST /billing/quote: current pricing for one provider model,
// optionally applied to a hypothetical usage.
func Quote(pricing *billing.PricingCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var quote quoteRequest
		if err := c.ShouldBindJSON(&quote); err != nil {
			respondError(c, relaymodel.InvalidError("request body is not a JSON object"))
			return
		}
		if quote.ProviderModelID == "" {
			respondError(c, relaymodel.InvalidError("provider_model_id is required"))
			return
		}

		entry, err := pricing.Get(c.Request.Context(), quote.ProviderModelID)
		if err != nil {
			respondError(c, relaymodel.NewError(relaymodel.ErrTypeUpstream, err.Error(), err))
			return
		}

		resp := gin.H{
			"provider_model_id": quote.ProviderModelID,
			"pricing":           entry,
		}
		if quote.Usage != nil {
			resp["estimate"] = billing.Compute(*quote.Usage, entry)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// Transactions handles GET /billing/transactions: paged transaction history
// for a tenant or a single API key.
func Transactions() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultTransactionsLimit)))
		if err != nil || limit <= 0 {
			limit = defaultTransactionsLimit
		}
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if offset < 0 {
			offset = 0
		}

		var txs []*model.BillingTransaction
		switch {
		case c.Query("tenant_id") != "":
			txs, err = model.GetTransactionsByTenant(c.Query("tenant_id"), limit, offset)
		case c.Query("api_key_id") != "":
			txs, err = model.GetTransactionsByApiKey(c.Query("api_key_id"), limit, offset)
		default:
			respondError(c, relaymodel.InvalidError("tenant_id or api_key_id is required"))
			return
		}
		if err != nil {
			respondError(c, relaymodel.InternalError(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"transactions": txs,
			"limit":        limit,
			"offset":       offset,
		})
	}
}

// Summary handles GET /billing/summary: aggregated cost over [start, end)
// for one tenant. Bounds are RFC 3339 timestamps.
func Summary() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.Query("tenant_id")
		if tenantID == "" {
			respondError(c, relaymodel.InvalidError("tenant_id is required"))
			return
		}
		start, err := time.Parse(time.RFC3339, c.Query("start"))
		if err != nil {
			respondError(c, relaymodel.InvalidError("start must be an RFC 3339 timestamp"))
			return
		}
		end, err := time.Parse(time.RFC3339, c.Query("end"))
		if err != nil {
			respondError(c, relaymodel.InvalidError("end must be an RFC 3339 timestamp"))
			return
		}

		summary, err := model.GetCostSummary(tenantID, start, end)
		if err != nil {
			respondError(c, relaymodel.InternalError(err))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"tenant_id": tenantID,
			"start":     start,
			"end":       end,
			"summary":   summary,
		})
	}
}
