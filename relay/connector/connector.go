// Package connector defines the upstream provider contract: a connector
// translates a neutral request into one provider's wire format, invokes it,
// and yields the reply as neutral chunks.
package connector

import (
	"context"

	"github.com/xjp-ai/xjp-gateway/relay/model"
	"github.com/xjp-ai/xjp-gateway/relay/registry"
)

// Capabilities is a connector's static feature table. The dispatcher
// consults it before invoking; it is the authoritative source of truth.
type Capabilities struct {
	Text   bool
	Vision bool
	Video  bool
	Tools  bool
	Stream bool
}

// StreamEvent is one item of a streaming reply: either a chunk or a
// mid-stream failure. After an Err event the channel is closed.
type StreamEvent struct {
	Chunk model.UnifiedChunk
	Err   *model.ErrorWithStatusCode
}

// Response is a connector reply: exactly one of Stream or Chunk is set.
// A Stream channel is closed by the producer once the terminal chunk (or
// an error) has been sent.
type Response struct {
	Stream <-chan StreamEvent
	Chunk  *model.UnifiedChunk
}

// Connector is implemented once per upstream provider. Invoke consumes the
// request exactly once; cancelling ctx must promptly drop the upstream
// connection.
type Connector interface {
	Name() string
	Capabilities() Capabilities
	Invoke(ctx context.Context, route registry.Route, req *model.UnifiedRequest) (*Response, *model.ErrorWithStatusCode)
}
