package transactions

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/lib/arcache"
	"github.com/arpi-project/arpi/lib/b64url"
)

const anchorCacheKey = "tx_anchor"

// Anchor returns a recent block or transaction id for last_tx. One anchor is
// accepted for about 25 blocks, so it is cached.
func (s *Service) Anchor(ctx context.Context) (string, error) {
	return s.cachedText(ctx, anchorCacheKey, "tx_anchor", s.anchorTTL)
}

// Price is the fee in winston for storing size bytes, sending to target if
// not empty. The first transfer to a wallet costs more.
func (s *Service) Price(ctx context.Context, size int, target string) (string, error) {
	endpoint := "price/" + strconv.Itoa(size)
	if target != "" {
		endpoint += "/" + target
	}
	return s.cachedText(ctx, fmt.Sprintf("getPrice-%d-%s", size, target), endpoint, s.priceTTL)
}

func (s *Service) cachedText(ctx context.Context, key, endpoint string, ttl time.Duration) (string, error) {
	if s.cache != nil {
		if v, ok := arcache.GetAs[string](s.cache, key); ok && v != "" {
			return v, nil
		}
	}

	res, err := s.api.Get(ctx, endpoint)
	if err != nil {
		return "", err
	}
	if err := res.Err(); err != nil {
		return "", err
	}

	v := res.Text()
	if s.cache != nil {
		s.cache.SetWithTTL(key, v, ttl)
	}
	return v, nil
}

// Get fetches a transaction. Format 2 data up to MaxInlineDataSize is
// fetched along with it; lifecycle states map to ErrTxPending,
// ErrTxNotFound, ErrTxFailed and ErrTxInvalid.
func (s *Service) Get(ctx context.Context, id string) (*types.Transaction, error) {
	res, err := s.api.Get(ctx, "tx/"+id)
	if err != nil {
		return nil, xerrors.Errorf("getting tx %s: %w", id, err)
	}
	if err := statusError(res.Status); err != nil {
		return nil, xerrors.Errorf("tx %s: %w", id, err)
	}

	tx, err := s.FromRaw(res.Data)
	if err != nil {
		return nil, err
	}

	size, err := strconv.ParseInt(tx.DataSize, 10, 64)
	if err != nil {
		return nil, xerrors.Errorf("data size %q: %w", tx.DataSize, err)
	}
	if tx.Format >= 2 && size > 0 && size <= build.MaxInlineDataSize {
		if tx.Data, err = s.GetRawData(ctx, id); err != nil {
			return nil, err
		}
	}

	return tx, nil
}

func statusError(status int) error {
	switch status {
	case 200:
		return nil
	case 202:
		return ErrTxPending
	case 404:
		return ErrTxNotFound
	case 410:
		return ErrTxFailed
	default:
		return ErrTxInvalid
	}
}

// GetStatus reports the HTTP status of a status lookup and, once mined,
// where the transaction was included.
func (s *Service) GetStatus(ctx context.Context, id string) (*types.TxStatus, error) {
	res, err := s.api.Get(ctx, "tx/"+id+"/status")
	if err != nil {
		return nil, xerrors.Errorf("getting status of %s: %w", id, err)
	}

	out := &types.TxStatus{Status: res.Status}
	if res.Status != 200 {
		return out, nil
	}

	var conf types.TxConfirmation
	if err := res.JSON(&conf); err != nil {
		return nil, err
	}
	out.Confirmed = &conf
	return out, nil
}

const dataTooBig = "tx_data_too_big"

// GetRawData fetches the data of a transaction, reassembling it from chunks
// when the gateway refuses to serve it whole.
func (s *Service) GetRawData(ctx context.Context, id string) ([]byte, error) {
	res, err := s.api.Get(ctx, id)
	if err != nil {
		return nil, xerrors.Errorf("getting data of %s: %w", id, err)
	}

	switch {
	case res.Status == 200:
		return res.Data, nil
	case res.Status == 400 && (res.ErrorMessage() == dataTooBig || res.StatusText == dataTooBig):
		log.Infow("data too big for the gateway, downloading chunks", "id", id)
		return s.chunks.DownloadChunkedData(ctx, id)
	case res.Status == 202 || res.Status == 404 || res.Status == 410:
		return nil, xerrors.Errorf("data of %s: %w", id, statusError(res.Status))
	default:
		return nil, xerrors.Errorf("unable to get data: %d - %s", res.Status, res.ErrorMessage())
	}
}

// GetData fetches the data of a transaction rendered as opts asks: base64url
// by default, the raw bytes with Decode, and checked UTF-8 text with Decode
// and String.
func (s *Service) GetData(ctx context.Context, id string, opts types.GetOptions) (string, error) {
	data, err := s.GetRawData(ctx, id)
	if err != nil {
		return "", err
	}

	switch {
	case !opts.Decode:
		return b64url.Encode(data), nil
	case opts.String && !utf8.Valid(data):
		return "", xerrors.Errorf("data of %s: %w", id, b64url.ErrInvalidUTF8)
	default:
		return string(data), nil
	}
}
