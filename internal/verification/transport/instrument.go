package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pendergraft/srcverify/internal/observability/metrics"
)

type actionKey struct{}

func withAction(ctx context.Context, action string) context.Context {
	return context.WithValue(ctx, actionKey{}, action)
}

func actionFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actionKey{}).(string); ok {
		return a
	}
	return "unknown"
}

// instrumentedTransport logs and measures every explorer round trip.
type instrumentedTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

// withInstrumentation returns a copy of c whose transport records each
// request. The caller's client is left untouched.
func withInstrumentation(c *http.Client, logger *slog.Logger) *http.Client {
	cp := *c
	next := cp.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	cp.Transport = &instrumentedTransport{next: next, logger: logger}
	return &cp
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	action := actionFrom(req.Context())

	resp, err := t.next.RoundTrip(req)

	duration := time.Since(start)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	metrics.ExplorerRequest(action, status, duration)

	// The query string carries the API key; only log host and path.
	attrs := []any{
		"action", action,
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
		"status", status,
		"duration", duration.String(),
	}
	if err != nil {
		t.logger.Debug("explorer request failed", append(attrs, "error", err)...)
	} else {
		t.logger.Debug("explorer request", attrs...)
	}
	return resp, err
}
