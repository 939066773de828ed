package anthropicapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xjp-ai/xjp-gateway/relay/model"
)

func TestToUnifiedSystemPrepended(t *testing.T) {
	req, bizErr := ToUnified([]byte(`{
		"model": "claude-local",
		"system": "be terse",
		"messages": [{"role": "user", "content": "hello"}],
		"max_tokens": 256
	}`))
	require.Nil(t, bizErr)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "be terse", req.Messages[0].Content[0].Text)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, 256, req.MaxOutputTokens)
}

func TestToUnifiedPartArraysAndExtra(t *testing.T) {
	req, bizErr := ToUnified([]byte(`{
		"model": "claude-local",
		"messages": [
			{"role": "user", "content": [
				{"type": "text", "text": "first"},
				{"type": "image", "source": {}},
				{"type": "text", "text": "second"}
			]}
		],
		"stream": true,
		"metadata": {"user_id": "u1"}
	}`))
	require.Nil(t, bizErr)

	require.Len(t, req.Messages, 1)
	require.Len(t, req.Messages[0].Content, 2, "non-text parts are dropped")
	assert.Equal(t, "first", req.Messages[0].Content[0].Text)
	assert.Equal(t, "second", req.Messages[0].Content[1].Text)

	assert.True(t, req.Stream)
	require.Len(t, req.Extra, 1)
	assert.Contains(t, req.Extra, "metadata")
}

func TestToUnifiedRejectsBadInput(t *testing.T) {
	for name, body := range map[string]string{
		"missing model":    `{"messages":[{"role":"user","content":"hi"}]}`,
		"missing messages": `{"model":"claude-local"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, bizErr := ToUnified([]byte(body))
			require.NotNil(t, bizErr)
			assert.Equal(t, model.ErrTypeInvalidRequest, bizErr.Error.Type)
		})
	}
}

func TestStreamTranscoderSequence(t *testing.T) {
	tr := NewStreamTranscoder()

	events := tr.Frame(model.UnifiedChunk{TextDelta: "a"})
	require.Len(t, events, 2, "first chunk opens the message")
	assert.Equal(t, EventMessageStart, events[0].Event)
	assert.Equal(t, EventContentBlockDelta, events[1].Event)

	payload := events[1].Data.(deltaPayload)
	assert.Equal(t, "content_block_delta", payload.Type)
	assert.Equal(t, 0, payload.Index)
	assert.Equal(t, "text_delta", payload.Delta.Type)
	assert.Equal(t, "a", payload.Delta.Text)

	events = tr.Frame(model.UnifiedChunk{TextDelta: "b"})
	require.Len(t, events, 1)
	assert.Equal(t, EventContentBlockDelta, events[0].Event)

	events = tr.Frame(model.UnifiedChunk{})
	require.Len(t, events, 1)
	assert.Equal(t, EventPing, events[0].Event, "empty chunks become pings")

	events = tr.Frame(model.UnifiedChunk{Done: true})
	require.Len(t, events, 1)
	assert.Equal(t, EventMessageStop, events[0].Event)
}

func TestStreamTranscoderTerminalWithText(t *testing.T) {
	tr := NewStreamTranscoder()
	events := tr.Frame(model.UnifiedChunk{TextDelta: "bye", Done: true})
	require.Len(t, events, 3)
	assert.Equal(t, EventMessageStart, events[0].Event)
	assert.Equal(t, EventContentBlockDelta, events[1].Event)
	assert.Equal(t, EventMessageStop, events[2].Event)
}

func TestFinalResponse(t *testing.T) {
	resp := FinalResponse("claude-local", &model.UnifiedChunk{TextDelta: "pong", Done: true})

	assert.Contains(t, resp.ID, "msg_")
	assert.Equal(t, "message", resp.Type)
	assert.Equal(t, "assistant", resp.Role)
	assert.Equal(t, "claude-local", resp.Model)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "pong", resp.Content[0].Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Nil(t, resp.Usage.InputTokens)
}
