package connector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/xjp-ai/xjp-gateway/common/client"
	"github.com/xjp-ai/xjp-gateway/relay/model"
	"github.com/xjp-ai/xjp-gateway/relay/registry"
)

const (
	dataPrefix = "data:"

	// maxErrorBodyBytes caps how much upstream error body is attached to
	// a classified error.
	maxErrorBodyBytes = 2048

	// sseBufferSize bounds one SSE line; provider chunks can carry large
	// base64 payloads.
	sseBufferSize = 1024 * 1024
)

// PostJSON marshals body and POSTs it to url with the shared upstream
// client. The caller owns the response body.
func PostJSON(ctx context.Context, url string, header http.Header, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal upstream request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build upstream request")
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := client.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send upstream request")
	}
	return resp, nil
}

// ClassifyTransportError maps a transport failure to the error taxonomy:
// timeouts become 504, everything else 502.
func ClassifyTransportError(provider string, err error) *model.ErrorWithStatusCode {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return model.NewError(model.ErrTypeTimeout,
			fmt.Sprintf("%s: upstream timeout", provider), err)
	}
	return model.NewError(model.ErrTypeUpstream,
		fmt.Sprintf("%s: %s", provider, err.Error()), err)
}

// ClassifyStatus maps a non-2xx upstream status to the error taxonomy:
// 401/403 credentials, 429 rate limited, anything else upstream with the
// body attached.
func ClassifyStatus(provider string, statusCode int, body []byte) *model.ErrorWithStatusCode {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	msg := fmt.Sprintf("%s: status %d: %s", provider, statusCode, string(body))

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.NewError(model.ErrTypeAuth, msg, nil)
	case http.StatusTooManyRequests:
		return model.NewError(model.ErrTypeRateLimited, msg, nil)
	default:
		return model.NewError(model.ErrTypeUpstream, msg, nil)
	}
}

// DrainStatusError reads the response body and classifies a non-2xx reply.
func DrainStatusError(provider string, resp *http.Response) *model.ErrorWithStatusCode {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()
	return ClassifyStatus(provider, resp.StatusCode, body)
}

// EachSSEData scans the data frames of an SSE body, calling fn with each
// payload (the "data:" prefix stripped). fn returning true stops the scan.
func EachSSEData(body io.Reader, fn func(data string) (stop bool)) error {
	scanner := bufio.NewScanner(body)
	buffer := make([]byte, sseBufferSize)
	scanner.Buffer(buffer, len(buffer))
	scanner.Split(bufio.ScanLines)

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		data := strings.TrimPrefix(strings.TrimPrefix(line, dataPrefix), " ")
		if fn(data) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read upstream stream")
	}
	return nil
}

// MergeRouteExtra copies route-pinned provider parameters into body where
// the translation has not already set the key.
func MergeRouteExtra(body map[string]any, route registry.Route) {
	for k, v := range route.Extra {
		if _, exists := body[k]; !exists {
			body[k] = v
		}
	}
}

// emit sends one event unless ctx is already cancelled.
func emit(ctx context.Context, out chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// StreamSSE consumes an upstream SSE body on a fresh goroutine, mapping
// each data frame to zero or one chunk via parse. parse returns the chunk,
// whether to emit it, and whether the stream is complete. The returned
// channel is closed when the upstream ends, errs, or ctx is cancelled.
func StreamSSE(ctx context.Context, provider string, body io.ReadCloser,
	parse func(data string) (chunk model.UnifiedChunk, emit bool, stop bool)) <-chan StreamEvent {

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer func() { _ = body.Close() }()

		err := EachSSEData(body, func(data string) bool {
			chunk, send, stop := parse(data)
			if send && !emit(ctx, out, StreamEvent{Chunk: chunk}) {
				return true
			}
			return stop
		})
		if err != nil && ctx.Err() == nil {
			emit(ctx, out, StreamEvent{Err: ClassifyTransportError(provider, err)})
		}
	}()
	return out
}
