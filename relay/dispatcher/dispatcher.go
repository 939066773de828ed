// Package dispatcher resolves logical models to connectors, enforces the
// capability table, and threads the billing interceptor around every
// authenticated invocation.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Laisky/zap"

	"github.com/xjp-ai/xjp-gateway/common/logger"
	dbmodel "github.com/xjp-ai/xjp-gateway/model"
	"github.com/xjp-ai/xjp-gateway/relay/billing"
	"github.com/xjp-ai/xjp-gateway/relay/connector"
	"github.com/xjp-ai/xjp-gateway/relay/connector/clewdr"
	"github.com/xjp-ai/xjp-gateway/relay/connector/openrouter"
	"github.com/xjp-ai/xjp-gateway/relay/connector/vertex"
	relaymodel "github.com/xjp-ai/xjp-gateway/relay/model"
	"github.com/xjp-ai/xjp-gateway/relay/registry"
)

// Dispatcher is the process-wide hub: one registry, one connector per
// provider, one billing interceptor.
type Dispatcher struct {
	registry    *registry.Registry
	connectors  map[string]connector.Connector
	interceptor *billing.Interceptor
}

func New(reg *registry.Registry, interceptor *billing.Interceptor) *Dispatcher {
	d := &Dispatcher{
		registry:    reg,
		connectors:  map[string]connector.Connector{},
		interceptor: interceptor,
	}
	for _, c := range []connector.Connector{openrouter.New(), vertex.New(), clewdr.New()} {
		d.connectors[c.Name()] = c
	}
	return d
}

// Register installs or replaces the connector for its provider name.
func (d *Dispatcher) Register(c connector.Connector) {
	d.connectors[c.Name()] = c
}

// resolve maps the logical model to its route and connector, rejecting
// requests that need capabilities the connector lacks.
func (d *Dispatcher) resolve(req *relaymodel.UnifiedRequest) (registry.Route, connector.Connector, *relaymodel.ErrorWithStatusCode) {
	route, ok := d.registry.Resolve(req.LogicalModel)
	if !ok {
		return registry.Route{}, nil, relaymodel.InvalidError(
			fmt.Sprintf("model %q not found", req.LogicalModel))
	}

	conn, ok := d.connectors[route.Provider]
	if !ok {
		return registry.Route{}, nil, relaymodel.NewError(relaymodel.ErrTypeInternal,
			fmt.Sprintf("no connector for provider %q", route.Provider), nil)
	}

	caps := conn.Capabilities()
	switch {
	case req.Stream && !caps.Stream:
		return registry.Route{}, nil, relaymodel.InvalidError(
			fmt.Sprintf("provider %q does not support streaming", route.Provider))
	case len(req.Tools) > 0 && !caps.Tools:
		return registry.Route{}, nil, relaymodel.InvalidError(
			fmt.Sprintf("provider %q does not support tools", route.Provider))
	case req.NeedsVision() && !caps.Vision:
		return registry.Route{}, nil, relaymodel.InvalidError(
			fmt.Sprintf("provider %q does not support image input", route.Provider))
	case req.NeedsVideo() && !caps.Video:
		return registry.Route{}, nil, relaymodel.InvalidError(
			fmt.Sprintf("provider %q does not support video input", route.Provider))
	}
	return route, conn, nil
}

// routeContext applies the route's per-call timeout to unary invocations.
// Streams keep the shared client timeout; a route deadline would cut
// long-lived deliveries short.
func routeContext(ctx context.Context, route registry.Route, stream bool) (context.Context, context.CancelFunc) {
	if route.TimeoutsMS > 0 && !stream {
		return context.WithTimeout(ctx, time.Duration(route.TimeoutsMS)*time.Millisecond)
	}
	return ctx, func() {}
}

// Invoke is the unauthenticated path: resolve and call, no billing.
func (d *Dispatcher) Invoke(ctx context.Context, req *relaymodel.UnifiedRequest) (*connector.Response, registry.Route, *relaymodel.ErrorWithStatusCode) {
	route, conn, bizErr := d.resolve(req)
	if bizErr != nil {
		return nil, registry.Route{}, bizErr
	}
	ctx, cancel := routeContext(ctx, route, req.Stream)
	defer cancel()
	resp, bizErr := conn.Invoke(ctx, route, req)
	if bizErr != nil {
		return nil, route, bizErr
	}
	return resp, route, nil
}

// InvokeWithBilling resolves, invokes, and schedules the billing task.
// Billing never blocks the response: the after-hook runs on its own
// goroutine once the terminal chunk is known.
func (d *Dispatcher) InvokeWithBilling(ctx context.Context, req *relaymodel.UnifiedRequest, tenantID, apiKeyID string) (*connector.Response, *billing.Context, *relaymodel.ErrorWithStatusCode) {
	route, conn, bizErr := d.resolve(req)
	if bizErr != nil {
		return nil, nil, bizErr
	}

	bctx := d.interceptor.Before(req, tenantID, apiKeyID, route.Provider, route.ProviderModelID)
	logger.Logger.Info("dispatching request",
		zap.String("request_id", bctx.RequestID),
		zap.String("tenant_id", tenantID),
		zap.String("logical_model", req.LogicalModel),
		zap.String("provider", route.Provider),
		zap.Bool("stream", req.Stream))

	ctx, cancel := routeContext(ctx, route, req.Stream)
	defer cancel()
	resp, bizErr := conn.Invoke(ctx, route, req)
	if bizErr != nil {
		go d.interceptor.After(context.Background(), bctx, nil, dbmodel.TxStatusError, bizErr.Error.Message)
		return nil, bctx, bizErr
	}

	if resp.Chunk != nil {
		chunk := *resp.Chunk
		go d.interceptor.After(context.Background(), bctx, &chunk, dbmodel.TxStatusSuccess, "")
		return resp, bctx, nil
	}

	teed := d.teeStream(req, bctx, resp.Stream)
	return &connector.Response{Stream: teed}, bctx, nil
}

// teeStream forwards the connector's events to the client while watching
// for usage metadata and the terminal chunk; once the upstream closes, the
// billing task is scheduled with whatever was observed. Usage may arrive on
// a frame before the terminal one (OpenRouter sends it ahead of the bare
// [DONE] chunk), so the last usage-bearing events are tracked separately
// from the done flag.
func (d *Dispatcher) teeStream(req *relaymodel.UnifiedRequest, bctx *billing.Context, in <-chan connector.StreamEvent) <-chan connector.StreamEvent {
	out := make(chan connector.StreamEvent)
	go func() {
		defer close(out)

		var terminal *relaymodel.UnifiedChunk
		var usageEvents json.RawMessage
		var completionText string
		status := dbmodel.TxStatusSuccess
		errMessage := ""

		for ev := range in {
			if ev.Err != nil {
				status = dbmodel.TxStatusError
				errMessage = ev.Err.Error.Message
			} else {
				completionText += ev.Chunk.TextDelta
				if billing.ExtractUsage(ev.Chunk.ProviderEvents) != (billing.TokenUsage{}) {
					usageEvents = ev.Chunk.ProviderEvents
				}
				if ev.Chunk.Done {
					chunk := ev.Chunk
					terminal = &chunk
				}
			}
			out <- ev
		}

		if usageEvents != nil {
			if terminal == nil {
				terminal = &relaymodel.UnifiedChunk{Done: true}
			}
			if billing.ExtractUsage(terminal.ProviderEvents) == (billing.TokenUsage{}) {
				terminal.ProviderEvents = usageEvents
			}
		}

		terminal = d.ensureUsage(req, bctx, terminal, completionText)
		go d.interceptor.After(context.Background(), bctx, terminal, status, errMessage)
	}()
	return out
}

// ensureUsage backfills a tokenizer-based estimate when the upstream stream
// carried no usage metadata.
func (d *Dispatcher) ensureUsage(req *relaymodel.UnifiedRequest, bctx *billing.Context, terminal *relaymodel.UnifiedChunk, completionText string) *relaymodel.UnifiedChunk {
	if terminal != nil && billing.ExtractUsage(terminal.ProviderEvents) != (billing.TokenUsage{}) {
		return terminal
	}

	prompt := billing.EstimatePromptTokens(bctx.ProviderModelID, req.Messages)
	completion := billing.EstimateTextTokens(bctx.ProviderModelID, completionText)
	if prompt == 0 && completion == 0 {
		return terminal
	}

	events, err := json.Marshal(map[string]any{
		"usage": map[string]int64{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
		},
		"estimated": true,
	})
	if err != nil {
		return terminal
	}
	if terminal == nil {
		terminal = &relaymodel.UnifiedChunk{Done: true}
	}
	terminal.ProviderEvents = events
	return terminal
}
