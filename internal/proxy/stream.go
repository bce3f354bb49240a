package proxy

import (
	"context"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	logger "github.com/wso2/open-auth-bouncer/internal/logging"
)

// isStreamRequest reports whether the client asked for a server-sent event stream
func isStreamRequest(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// serveStream proxies a long-lived response without the request timeout and
// flushes whatever is left when the upstream closes.
func serveStream(w http.ResponseWriter, r *http.Request, rp *httputil.ReverseProxy) {
	w.Header().Set("X-Accel-Buffering", "no")

	rp.ServeHTTP(w, r)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	logger.Info("Stream closed for %s (path: %s)", r.RemoteAddr, r.URL.Path)
}

// NewShutdownContext is a little helper to gracefully shut down
func NewShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
