package model

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentPartJSON(t *testing.T) {
	cases := []struct {
		name string
		part ContentPart
		want string
	}{
		{"text", TextPart("hi"), `{"type":"text","text":"hi"}`},
		{"image_url", ImageURLPart("https://x/y.png"), `{"type":"image_url","url":"https://x/y.png"}`},
		{"image_b64", ImageB64Part("aGk=", "image/png"), `{"type":"image_b64","b64":"aGk=","mime":"image/png"}`},
		{"video_url", VideoURLPart("https://x/v.mp4"), `{"type":"video_url","url":"https://x/v.mp4"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.part)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(data))

			var got ContentPart
			require.NoError(t, json.Unmarshal(data, &got))
			assert.Equal(t, tc.part, got)
		})
	}
}

func TestUnifiedRequestCapabilityScan(t *testing.T) {
	req := UnifiedRequest{
		Messages: []UnifiedMessage{
			{Role: "user", Content: []ContentPart{TextPart("describe this")}},
		},
	}
	assert.False(t, req.NeedsVision())
	assert.False(t, req.NeedsVideo())

	req.Messages = append(req.Messages, UnifiedMessage{
		Role:    "user",
		Content: []ContentPart{ImageB64Part("aGk=", "image/jpeg")},
	})
	assert.True(t, req.NeedsVision())
	assert.False(t, req.NeedsVideo())

	req.Messages = append(req.Messages, UnifiedMessage{
		Role:    "user",
		Content: []ContentPart{VideoURLPart("https://x/v.mp4")},
	})
	assert.True(t, req.NeedsVideo())
}

func TestMessageTextContent(t *testing.T) {
	m := UnifiedMessage{
		Role: "user",
		Content: []ContentPart{
			TextPart("hello "),
			ImageURLPart("https://x/y.png"),
			TextPart("world"),
		},
	}
	assert.Equal(t, "hello world", m.TextContent())
}

func TestStatusForType(t *testing.T) {
	cases := map[string]int{
		ErrTypeInvalidRequest: http.StatusBadRequest,
		ErrTypeAuth:           http.StatusUnauthorized,
		ErrTypeInactiveKey:    http.StatusForbidden,
		ErrTypeRateLimited:    http.StatusTooManyRequests,
		ErrTypeTimeout:        http.StatusGatewayTimeout,
		ErrTypeUpstream:       http.StatusBadGateway,
		ErrTypeInternal:       http.StatusInternalServerError,
		"something_else":      http.StatusInternalServerError,
	}
	for errType, want := range cases {
		assert.Equal(t, want, StatusForType(errType), errType)
	}
}

func TestNewErrorOmitsRawError(t *testing.T) {
	bizErr := NewError(ErrTypeUpstream, "bad gateway", assert.AnError)
	data, err := json.Marshal(bizErr.Error)
	require.NoError(t, err)
	assert.NotContains(t, string(data), assert.AnError.Error())
}
