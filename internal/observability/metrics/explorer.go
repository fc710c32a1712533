package metrics

import (
	"strconv"
	"time"
)

// ExplorerRequest records one request to a block explorer. status is the
// HTTP status code, or 0 when no response was received.
func ExplorerRequest(action string, status int, duration time.Duration) {
	if !enabled {
		return
	}
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	explorerRequestsTotal.WithLabelValues(action, label).Inc()
	explorerDuration.WithLabelValues(action).Observe(duration.Seconds())
}
