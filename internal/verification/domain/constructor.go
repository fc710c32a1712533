package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"

	"github.com/pendergraft/srcverify/internal/chains/evm"
	"github.com/pendergraft/srcverify/internal/verification/transport"
)

// resolveConstructorArgs reads the contract's creation transaction from the
// explorer and slices the ABI-encoded constructor arguments off its input.
// A non-success status means the explorer has not indexed the deployment
// yet; it is retried TxListRetries times. Anything else fails at once.
func (s *Service) resolveConstructorArgs(ctx context.Context, r *run, bytecodeLen int) (string, error) {
	retries := s.config.TxListRetries
	if retries < 0 {
		retries = 0
	}
	attempts := uint(retries) + 1

	resp, err := retry.DoWithData(func() (*transport.Response, error) {
		r.TxListAttempts++
		resp, err := r.client.TxList(ctx, r.req.Address)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			if r.TxListAttempts == 1 {
				r.progressf("Waiting for %s to process contract...", r.endpoint.URL)
			}
			return nil, transport.AsAPIError(transport.ActionTxList, resp)
		}
		return resp, nil
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(s.config.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(notIndexed),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			r.logger.Debug("deployment not indexed yet", "attempt", attempt+1, "max_attempts", attempts, "error", err)
		}),
	)
	if err != nil {
		var apiErr *transport.APIError
		if errors.As(err, &apiErr) {
			return "", &failure{
				outcome: OutcomeTimeout,
				message: fmt.Sprintf("API request failed with: %s", apiErr.Result),
			}
		}
		return "", err
	}

	if resp.Message != "OK" {
		return "", nil
	}
	txs, err := resp.Transactions()
	if err != nil {
		return "", err
	}
	if len(txs) == 0 {
		return "", nil
	}
	return evm.ExtractConstructorArgs(txs[0].Input, bytecodeLen), nil
}

func notIndexed(err error) bool {
	var apiErr *transport.APIError
	return errors.As(err, &apiErr)
}
