package uploader

import (
	"context"
	"encoding/json"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/chain/types"
)

// Serialized is the resumable state of an upload. The transaction is a
// header; the data must be supplied again on resume.
type Serialized struct {
	ChunkIndex         int                `json:"chunkIndex"`
	TxPosted           bool               `json:"txPosted"`
	Transaction        *types.Transaction `json:"transaction"`
	LastRequestTimeEnd int64              `json:"lastRequestTimeEnd"`
	LastResponseStatus int                `json:"lastResponseStatus"`
	LastResponseError  string             `json:"lastResponseError"`
}

// UnmarshalJSON rejects documents without a numeric chunkIndex or a
// transaction object.
func (s *Serialized) UnmarshalJSON(b []byte) error {
	var raw struct {
		ChunkIndex         *int               `json:"chunkIndex"`
		TxPosted           bool               `json:"txPosted"`
		Transaction        *types.Transaction `json:"transaction"`
		LastRequestTimeEnd int64              `json:"lastRequestTimeEnd"`
		LastResponseStatus int                `json:"lastResponseStatus"`
		LastResponseError  string             `json:"lastResponseError"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return xerrors.Errorf("%s: %w", err, ErrMalformedSerialized)
	}
	if raw.ChunkIndex == nil || raw.Transaction == nil {
		return ErrMalformedSerialized
	}

	*s = Serialized{
		ChunkIndex:         *raw.ChunkIndex,
		TxPosted:           raw.TxPosted,
		Transaction:        raw.Transaction,
		LastRequestTimeEnd: raw.LastRequestTimeEnd,
		LastResponseStatus: raw.LastResponseStatus,
		LastResponseError:  raw.LastResponseError,
	}
	return nil
}

func (u *Uploader) Serialize() *Serialized {
	return &Serialized{
		ChunkIndex:         u.chunkIndex,
		TxPosted:           u.txPosted,
		Transaction:        u.tx,
		LastRequestTimeEnd: u.lastRequestTimeEnd,
		LastResponseStatus: u.lastResponseStatus,
		LastResponseError:  u.lastResponseError,
	}
}

func (u *Uploader) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Serialize())
}

// FromSerialized rebuilds an upload from its serialized state and data. The
// chunks are computed again and must produce the recorded data root.
func FromSerialized(ctx context.Context, gw api.Gateway, s *Serialized, data []byte, opts ...Option) (*Uploader, error) {
	if s == nil || s.Transaction == nil || s.ChunkIndex < 0 {
		return nil, ErrMalformedSerialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u := newUploader(gw, opts)
	u.tx = s.Transaction.Header()
	u.tx.Chunks = nil
	if u.tx.ID == "" {
		return nil, ErrNotSigned
	}

	u.chunkIndex = s.ChunkIndex
	u.txPosted = s.TxPosted
	u.lastRequestTimeEnd = s.LastRequestTimeEnd
	u.lastResponseStatus = s.LastResponseStatus
	u.lastResponseError = s.LastResponseError
	u.data = data

	if err := u.tx.PrepareChunks(u.merkle, data); err != nil {
		return nil, err
	}
	if u.tx.DataRoot != s.Transaction.DataRoot {
		return nil, xerrors.Errorf("data root %s, expected %s: %w", u.tx.DataRoot, s.Transaction.DataRoot, ErrDataMismatch)
	}
	if u.chunkIndex > max(u.TotalChunks(), 1) {
		return nil, xerrors.Errorf("chunk index %d of %d: %w", u.chunkIndex, u.TotalChunks(), ErrMalformedSerialized)
	}

	log.Debugw("resuming upload", "id", u.tx.ID, "chunk", u.chunkIndex, "total", u.TotalChunks())
	return u, nil
}

// FromTransactionID builds the state of an upload whose header the network
// already has, so that only chunks are sent.
func FromTransactionID(ctx context.Context, gw api.Gateway, id string) (*Serialized, error) {
	res, err := gw.Get(ctx, "tx/"+id)
	if err != nil {
		return nil, xerrors.Errorf("getting tx %s: %w", id, err)
	}
	if res.Status != 200 {
		return nil, xerrors.Errorf("tx %s not found: %w", id, res.StatusError())
	}

	var tx types.Transaction
	if err := res.JSON(&tx); err != nil {
		return nil, err
	}
	tx.Data = []byte{}
	if tx.ID == "" {
		tx.ID = id
	}

	return &Serialized{
		TxPosted:    true,
		ChunkIndex:  0,
		Transaction: &tx,
	}, nil
}
