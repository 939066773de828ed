package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
)

// StringData writes one SSE data frame and flushes it to the client.
func StringData(c *gin.Context, str string) {
	str = strings.TrimPrefix(str, "data: ")
	str = strings.TrimSuffix(str, "\r")
	c.Render(-1, &CustomEvent{Data: "data: " + str})
	c.Writer.Flush()
}

// ObjectData marshals the object and writes it as one SSE data frame.
func ObjectData(c *gin.Context, object any) error {
	jsonData, err := json.Marshal(object)
	if err != nil {
		return errors.Wrap(err, "error marshalling object")
	}
	StringData(c, string(jsonData))
	return nil
}

// EventData writes a named SSE event with the given data payload.
func EventData(c *gin.Context, event string, data string) {
	c.Render(-1, &CustomEvent{Event: event, Data: "data: " + data})
	c.Writer.Flush()
}

// EventObjectData marshals the object and writes it as a named SSE event.
func EventObjectData(c *gin.Context, event string, object any) error {
	jsonData, err := json.Marshal(object)
	if err != nil {
		return errors.Wrap(err, "error marshalling object")
	}
	EventData(c, event, string(jsonData))
	return nil
}

// Done writes the OpenAI-style terminal sentinel frame.
func Done(c *gin.Context) {
	StringData(c, "[DONE]")
}

// Ping writes an SSE comment frame used as a keep-alive on idle streams.
func Ping(c *gin.Context) {
	fmt.Fprint(c.Writer, ": ping\n\n")
	c.Writer.Flush()
}
