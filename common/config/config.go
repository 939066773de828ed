package config

import (
	"strings"
	"time"

	"github.com/xjp-ai/xjp-gateway/common/env"
)

var (
	// ServerPort overrides the default listen port when running inside a container or PaaS.
	ServerPort = strings.TrimSpace(env.String("PORT", "8080"))
	// GinMode allows forcing Gin into release mode (or other modes) without recompiling.
	GinMode = strings.TrimSpace(env.String("GIN_MODE", ""))

	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)

	// DatabaseURL is the DSN for the key/billing database. Postgres URLs, MySQL DSNs
	// and sqlite paths are all accepted; see model.InitDB.
	DatabaseURL = env.String("DATABASE_URL", "")

	// RegistryPath points at the TOML file mapping logical models to egress routes.
	RegistryPath = env.String("XJP_CONFIG", "config/xjp.toml")

	// RelayTimeout bounds upstream HTTP requests (seconds) before aborting them.
	RelayTimeout = env.Int("RELAY_TIMEOUT", 120)

	// KeepAliveInterval is how often idle SSE streams emit a ping.
	KeepAliveInterval = time.Duration(env.Int("SSE_KEEPALIVE_SECONDS", 10)) * time.Second

	// PricingTTL controls how long a pricing catalog entry stays fresh.
	PricingTTL = time.Duration(env.Int("PRICING_TTL_SECONDS", 900)) * time.Second

	// KeyCacheTTL is how long a verified key's info is served from memory before
	// the database is consulted again.
	KeyCacheTTL = time.Duration(env.Int("KEY_CACHE_TTL_SECONDS", 60)) * time.Second

	// OpenRouterAPIKey authenticates both relay traffic and pricing catalog fetches.
	OpenRouterAPIKey = env.String("OPENROUTER_API_KEY", "")
	// OpenRouterBaseURL is the OpenRouter API root.
	OpenRouterBaseURL = env.String("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")

	// VertexAPIKey is sent as x-goog-api-key when present.
	VertexAPIKey = env.String("VERTEX_API_KEY", "")
	// VertexAccessToken is sent as a Bearer token when present. At least one of
	// VertexAPIKey / VertexAccessToken must be configured for Vertex routes.
	VertexAccessToken = env.String("VERTEX_ACCESS_TOKEN", "")
	// VertexProject is the fallback GCP project for routes that omit one.
	VertexProject = env.String("VERTEX_PROJECT", "")
	// VertexRegion is the fallback region for routes that omit one.
	VertexRegion = env.String("VERTEX_REGION", "")

	// ClewdrBaseURL is the Clewdr OpenAI-compatible endpoint root.
	ClewdrBaseURL = env.String("CLEWDR_BASE_URL", "http://localhost:9000")
	// ClewdrAPIKey is optional; sent as a Bearer token when present.
	ClewdrAPIKey = env.String("CLEWDR_API_KEY", "")
)
