package ctxkey

const (
	// KeyInfo holds the verified *model.ApiKey for the current request.
	// Set in: middleware/auth.KeyAuth. Read by controllers for billing attribution.
	KeyInfo = "key_info"

	// TenantId is the tenant that owns the API key used for this request.
	// Set in: middleware/auth.KeyAuth.
	TenantId = "tenant_id"

	// ApiKeyId is the id of the API key used for this request.
	// Set in: middleware/auth.KeyAuth.
	ApiKeyId = "api_key_id"

	// RequestModel is the logical model name as requested by the client.
	// Set in: controllers after binding the request body.
	// Invariant: never mutated; it always reflects the user's original input.
	RequestModel = "request_model"

	// RequestId is a per-request unique identifier used for logging and billing
	// idempotency. Set in: middleware.RequestId.
	RequestId = "X-Xjp-Request-Id"
)
