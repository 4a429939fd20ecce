package common

// Adapted from gin-contrib/sse: a render type whose Data field is written
// verbatim (the caller supplies complete "event:"/"data:" lines), because the
// stock SSE render escapes payloads in ways incompatible with streaming
// clients that concatenate partial JSON fragments.

import (
	"io"
	"net/http"
	"strings"
)

var (
	eventStreamContentType = []string{"text/event-stream"}
	noCache                = []string{"no-cache"}
)

// CustomEvent is a gin render.Render for one SSE frame.
type CustomEvent struct {
	// Event, when non-empty, is emitted as an "event: <name>" line before the
	// data line (Anthropic-style named events).
	Event string
	// Data is the frame payload, conventionally prefixed "data: " by callers.
	Data string
}

// Render writes the frame; the trailing blank line terminates it.
func (r CustomEvent) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	var b strings.Builder
	if r.Event != "" {
		b.WriteString("event: ")
		b.WriteString(r.Event)
		b.WriteString("\n")
	}
	b.WriteString(r.Data)
	b.WriteString("\n\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteContentType sets the SSE content type if nothing else did.
func (r CustomEvent) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	header["Content-Type"] = eventStreamContentType
	if _, exists := header["Cache-Control"]; !exists {
		header["Cache-Control"] = noCache
	}
}
