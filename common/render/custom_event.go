package render

// Custom event render for SSE: gin's built-in sse render escapes the payload
// in ways incompatible with OpenAI-style clients, so frames are written raw.

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

type CustomEvent struct {
	Event string
	Id    string
	Retry uint
	Data  any
}

const contentType = "text/event-stream"
const noCache = "no-cache"

var fieldReplacer = strings.NewReplacer(
	"\n", "\\n",
	"\r", "\\r")

func encode(writer io.Writer, event CustomEvent) error {
	if len(event.Id) > 0 {
		if _, err := fmt.Fprintf(writer, "id: %s\n", fieldReplacer.Replace(event.Id)); err != nil {
			return err
		}
	}
	if len(event.Event) > 0 {
		if _, err := fmt.Fprintf(writer, "event: %s\n", fieldReplacer.Replace(event.Event)); err != nil {
			return err
		}
	}
	if event.Retry > 0 {
		if _, err := fmt.Fprintf(writer, "retry: %d\n", event.Retry); err != nil {
			return err
		}
	}
	data, ok := event.Data.(string)
	if !ok {
		data = fmt.Sprint(event.Data)
	}
	if _, err := fmt.Fprintf(writer, "%s\n\n", data); err != nil {
		return err
	}
	return nil
}

func (r CustomEvent) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	return encode(w, r)
}

func (r CustomEvent) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	header["Content-Type"] = []string{contentType}

	if _, exist := header["Cache-Control"]; !exist {
		header["Cache-Control"] = []string{noCache}
	}
}
