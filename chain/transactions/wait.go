package transactions

import (
	"context"

	"github.com/jpillora/backoff"

	"github.com/arpi-project/arpi/chain/types"
)

// WaitConfirmed polls the status of id until it has at least confirmations
// confirmations, backing off between polls.
func (s *Service) WaitConfirmed(ctx context.Context, id string, confirmations int64) (*types.TxStatus, error) {
	b := &backoff.Backoff{
		Min:    s.pollMin,
		Max:    s.pollMax,
		Factor: 1.5,
		Jitter: true,
	}

	for {
		st, err := s.GetStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if st.IsConfirmed() && st.Confirmed.NumberOfConfirmations >= confirmations {
			return st, nil
		}

		wait := b.Duration()
		log.Debugw("waiting for confirmation", "id", id, "status", st.Status, "wait", wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.clk.After(wait):
		}
	}
}
