package transactions

import (
	"context"
	"strconv"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/chain/wallet"
)

// CreateAttributes are the caller supplied members of a new transaction.
// Empty members are filled in by Create.
type CreateAttributes struct {
	Format   int
	LastTx   string
	Owner    string
	Tags     []types.Tag
	Target   string
	Quantity string
	Reward   string

	// Data is a []byte or a string, which is stored as its UTF-8 bytes.
	Data any
}

func normalizeData(d any) ([]byte, error) {
	switch v := d.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, xerrors.Errorf("%T: %w", d, ErrUnsupportedData)
	}
}

// Create builds an unsigned transaction. The owner is taken from src when it
// is a local key, the anchor and the reward are fetched when not given.
func (s *Service) Create(ctx context.Context, attrs CreateAttributes, src wallet.SigningSource) (*types.Transaction, error) {
	// an empty string counts as no data, an empty []byte does not
	str, isStr := attrs.Data.(string)
	if (attrs.Data == nil || isStr && str == "") && (attrs.Target == "" || attrs.Quantity == "") {
		return nil, ErrMissingData
	}

	data, err := normalizeData(attrs.Data)
	if err != nil {
		return nil, err
	}

	tx := types.NewTransaction()
	if attrs.Format != 0 {
		tx.Format = attrs.Format
	}
	tx.Owner = attrs.Owner
	tx.Target = attrs.Target
	if attrs.Quantity != "" {
		tx.Quantity = attrs.Quantity
	}
	tx.Tags = append(tx.Tags, attrs.Tags...)
	tx.Data = data

	if lk, ok := src.(wallet.LocalKey); ok && tx.Owner == "" && lk.JWK != nil {
		tx.SetOwner(lk.JWK.N)
	}

	tx.LastTx = attrs.LastTx
	if tx.LastTx == "" {
		if tx.LastTx, err = s.Anchor(ctx); err != nil {
			return nil, xerrors.Errorf("getting anchor: %w", err)
		}
	}

	tx.Reward = attrs.Reward
	if tx.Reward == "" {
		if tx.Reward, err = s.Price(ctx, len(data), attrs.Target); err != nil {
			return nil, xerrors.Errorf("getting price: %w", err)
		}
	}

	tx.DataSize = strconv.Itoa(len(data))
	tx.DataRoot = ""

	if _, err := tx.SignatureData(s.merkle, s.crypto); err != nil {
		return nil, err
	}

	log.Debugw("created transaction", "format", tx.Format, "size", tx.DataSize, "chunks", len(tx.Chunks.Chunks), "inline", len(tx.Chunks.Chunks) <= build.MaxChunksInBody)
	return tx, nil
}

// FromRaw parses a transaction in its JSON wire form.
func (s *Service) FromRaw(b []byte) (*types.Transaction, error) {
	var tx types.Transaction
	if err := tx.UnmarshalJSON(b); err != nil {
		return nil, xerrors.Errorf("parsing transaction: %w", err)
	}
	return &tx, nil
}
