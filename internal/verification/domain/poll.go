package domain

import (
	"context"

	"github.com/pendergraft/srcverify/internal/verification/transport"
)

// PendingSentinel is the status result explorers return while a submission
// is still queued.
const PendingSentinel = "Pending in queue"

// statusOutcome classifies a checkverifystatus answer. Only the exact
// sentinel is pending; any other result is terminal and succeeds iff the
// message is "OK".
func statusOutcome(resp *transport.Response) Outcome {
	switch {
	case resp.ResultText() == PendingSentinel:
		return OutcomePending
	case resp.Message == "OK":
		return OutcomeSuccess
	default:
		return OutcomeFailed
	}
}

// pollStatus waits for the explorer to finish processing the submission. It
// polls until a terminal answer arrives or ctx is done.
func (s *Service) pollStatus(ctx context.Context, r *run) (string, error) {
	for {
		if err := sleep(ctx, s.config.PollInterval); err != nil {
			return "", err
		}

		r.Polls++
		resp, err := r.client.CheckStatus(ctx, r.GUID)
		if err != nil {
			return "", err
		}

		result := resp.ResultText()
		outcome := statusOutcome(resp)
		if outcome == OutcomePending {
			r.progressf("Verification pending...")
			continue
		}

		r.progressf("Verification complete. Result: %s", result)
		if outcome != OutcomeSuccess {
			return "", &failure{outcome: outcome, message: result}
		}
		return result, nil
	}
}
