// Package billing prices requests: a TTL cache over the upstream model
// catalog, the cost calculator, usage extraction, and the interceptor that
// persists transactions off the request path.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/xjp-ai/xjp-gateway/common/client"
	"github.com/xjp-ai/xjp-gateway/common/config"
)

// PricingEntry is one model's USD unit prices. Per token except Request,
// which is per call.
type PricingEntry struct {
	Prompt            float64 `json:"prompt"`
	Completion        float64 `json:"completion"`
	Request           float64 `json:"request"`
	Image             float64 `json:"image"`
	WebSearch         float64 `json:"web_search"`
	InternalReasoning float64 `json:"internal_reasoning"`
	InputCacheRead    float64 `json:"input_cache_read"`
	InputCacheWrite   float64 `json:"input_cache_write"`
}

// catalogPricing is the upstream catalog shape: prices arrive as decimal
// strings. Unparseable or absent values decode to 0.
type catalogPricing struct {
	Prompt            string `json:"prompt"`
	Completion        string `json:"completion"`
	Request           string `json:"request"`
	Image             string `json:"image"`
	WebSearch         string `json:"web_search"`
	InternalReasoning string `json:"internal_reasoning"`
	InputCacheRead    string `json:"input_cache_read"`
	InputCacheWrite   string `json:"input_cache_write"`
}

func parsePrice(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func (p catalogPricing) toEntry() PricingEntry {
	return PricingEntry{
		Prompt:            parsePrice(p.Prompt),
		Completion:        parsePrice(p.Completion),
		Request:           parsePrice(p.Request),
		Image:             parsePrice(p.Image),
		WebSearch:         parsePrice(p.WebSearch),
		InternalReasoning: parsePrice(p.InternalReasoning),
		InputCacheRead:    parsePrice(p.InputCacheRead),
		InputCacheWrite:   parsePrice(p.InputCacheWrite),
	}
}

type catalogModel struct {
	ID      string          `json:"id"`
	Pricing *catalogPricing `json:"pricing"`
}

type catalogResponse struct {
	Data []catalogModel `json:"data"`
}

type cachedEntry struct {
	entry     PricingEntry
	fetchedAt time.Time
}

// PricingCache maps provider model ids to pricing with a TTL. A miss or
// stale hit refetches the whole catalog and repopulates every entry; the
// network fetch happens outside the write lock.
type PricingCache struct {
	mu      sync.RWMutex
	entries map[string]cachedEntry

	baseURL string
	apiKey  string
	ttl     time.Duration
}

func NewPricingCache() *PricingCache {
	return NewPricingCacheFor(config.OpenRouterBaseURL, config.OpenRouterAPIKey, config.PricingTTL)
}

// NewPricingCacheFor builds a cache against an explicit catalog endpoint.
func NewPricingCacheFor(baseURL, apiKey string, ttl time.Duration) *PricingCache {
	return &PricingCache{
		entries: map[string]cachedEntry{},
		baseURL: baseURL,
		apiKey:  apiKey,
		ttl:     ttl,
	}
}

// Get returns the pricing for one model, fetching the catalog when the
// cached entry is missing or stale.
func (c *PricingCache) Get(ctx context.Context, providerModelID string) (PricingEntry, error) {
	c.mu.RLock()
	cached, ok := c.entries[providerModelID]
	c.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < c.ttl {
		return cached.entry, nil
	}

	fetched, err := c.fetchCatalog(ctx)
	if err != nil {
		return PricingEntry{}, err
	}

	now := time.Now()
	c.mu.Lock()
	for id, entry := range fetched {
		c.entries[id] = cachedEntry{entry: entry, fetchedAt: now}
	}
	cached, ok = c.entries[providerModelID]
	c.mu.Unlock()

	if !ok {
		return PricingEntry{}, errors.Errorf("pricing not found for model %q", providerModelID)
	}
	return cached.entry, nil
}

func (c *PricingCache) fetchCatalog(ctx context.Context) (map[string]PricingEntry, error) {
	if c.apiKey == "" {
		return nil, errors.New("openrouter api key not set for pricing fetch")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build pricing request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := client.PricingHTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch model catalog")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("fetch model catalog: status %d: %s", resp.StatusCode, string(body))
	}

	var catalog catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&catalog); err != nil {
		return nil, errors.Wrap(err, "decode model catalog")
	}

	out := make(map[string]PricingEntry, len(catalog.Data))
	for _, m := range catalog.Data {
		if m.Pricing == nil {
			continue
		}
		out[m.ID] = m.Pricing.toEntry()
	}
	return out, nil
}

// Snapshot serializes a pricing entry for persistence with a transaction.
func Snapshot(entry PricingEntry) json.RawMessage {
	data, err := json.Marshal(entry)
	if err != nil {
		return json.RawMessage(fmt.Sprintf("{%q:%q}", "error", err.Error()))
	}
	return data
}
