package metrics

import "time"

// WorkflowResult records the end of a verification workflow run.
func WorkflowResult(shape, stage, outcome string, duration time.Duration) {
	if !enabled {
		return
	}
	workflowTotal.WithLabelValues(shape, stage, outcome).Inc()
	workflowDuration.WithLabelValues(shape).Observe(duration.Seconds())
}

// StatusPolls records how many status checks a run made.
func StatusPolls(n int) {
	if !enabled {
		return
	}
	statusPolls.Observe(float64(n))
}

// TxListAttempts records how many transaction list requests a run made.
func TxListAttempts(n int) {
	if !enabled {
		return
	}
	txListAttempts.Observe(float64(n))
}
