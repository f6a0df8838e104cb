// Package trace - HTTP and WebSocket plumbing for trace propagation.
package trace

import (
	"encoding/json"
	"net/http"
)

// Middleware extracts or creates trace context for incoming HTTP requests.
// WebSocket upgrades pass through it too, so the connection log lines carry
// the same IDs as the request that opened the socket.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := extractFromHeaders(r)
		ctx := WithContext(r.Context(), tc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractFromHeaders(r *http.Request) Context {
	tc := Context{
		TraceID:      r.Header.Get(TraceIDKey),
		ParentSpanID: r.Header.Get(SpanIDKey),
		SpanID:       generateSpanID(),
	}
	if tc.TraceID == "" {
		tc.TraceID = generateTraceID()
	}
	return tc
}

// FromMessage pulls the optional trace_id field out of a client WebSocket
// message, so a refresh request can be correlated with the capture and
// frame broadcast it triggers. The second return reports whether the
// message carried one; callers fall back to the connection's context.
func FromMessage(data []byte) (Context, bool) {
	var msg struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.TraceID == "" {
		return Context{}, false
	}
	return Context{
		TraceID: msg.TraceID,
		SpanID:  generateSpanID(),
	}, true
}
