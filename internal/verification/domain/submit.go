package domain

import (
	"context"

	"github.com/pendergraft/srcverify/internal/verification/transport"
)

// submit posts the verification request and returns the submission GUID.
func (s *Service) submit(ctx context.Context, r *run, vreq transport.VerificationRequest) (string, error) {
	resp, err := r.client.Submit(ctx, vreq)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &failure{
			outcome: OutcomeFailed,
			message: "Failed to submit verification request: " + resp.ResultText(),
		}
	}
	r.progressf("Verification submitted successfully. Waiting for result...")
	guid := resp.ResultText()
	r.logger.Debug("verification submitted", "guid", guid)
	return guid, nil
}
