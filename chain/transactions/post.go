package transactions

import (
	"context"
	"iter"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/chain/uploader"
)

// PostResult is the outcome of Post when the gateway answered.
type PostResult struct {
	Status     int
	StatusText string
	Error      string
}

func (r *PostResult) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Post uploads a signed transaction and its data to completion. A failed step
// the gateway answered with an error status is reported as a PostResult
// carrying that status. Errors are returned for everything else, including
// chunks that fail local validation after the header was accepted.
func (s *Service) Post(ctx context.Context, tx *types.Transaction) (*PostResult, error) {
	if tx.Chunks == nil {
		if err := tx.PrepareChunks(s.merkle, tx.Data); err != nil {
			return nil, err
		}
	}

	u, err := s.GetUploader(ctx, UploadTx{Tx: tx}, nil)
	if err != nil {
		return nil, err
	}

	for !u.IsComplete() {
		if err := u.UploadChunk(ctx); err != nil {
			if answered(u) && ctx.Err() == nil {
				log.Warnw("post failed", "id", tx.ID, "status", u.LastResponseStatus(), "error", u.LastResponseError(), "err", err)
				return &PostResult{
					Status:     u.LastResponseStatus(),
					StatusText: u.LastResponseError(),
					Error:      u.LastResponseError(),
				}, nil
			}
			return nil, err
		}
	}

	return &PostResult{Status: 200, StatusText: "OK"}, nil
}

// answered reports whether the last step got an error response from the
// gateway. The status of an earlier accepted request does not count.
func answered(u *uploader.Uploader) bool {
	st := u.LastResponseStatus()
	return u.LastResponseError() != "" && st > 0 && (st < 200 || st >= 300)
}

// PostRaw posts a transaction given in its JSON wire form.
func (s *Service) PostRaw(ctx context.Context, raw []byte) (*PostResult, error) {
	tx, err := s.FromRaw(raw)
	if err != nil {
		return nil, err
	}
	return s.Post(ctx, tx)
}

// UploadSource is what an upload starts from: UploadTx, UploadState or
// UploadID.
type UploadSource interface {
	uploadSource()
}

// UploadTx starts a new upload of a signed transaction.
type UploadTx struct {
	Tx *types.Transaction
}

// UploadState resumes a serialized upload.
type UploadState struct {
	State *uploader.Serialized
}

// UploadID resumes the upload of a transaction the network already has.
type UploadID string

func (UploadTx) uploadSource()    {}
func (UploadState) uploadSource() {}
func (UploadID) uploadSource()    {}

// GetUploader returns an uploader for src. Resuming requires data.
func (s *Service) GetUploader(ctx context.Context, src UploadSource, data []byte) (*uploader.Uploader, error) {
	if t, ok := src.(UploadTx); ok {
		return uploader.New(s.api, t.Tx, s.uploaderOpts...)
	}

	if data == nil {
		return nil, ErrMustProvideData
	}

	var state *uploader.Serialized
	switch src := src.(type) {
	case UploadState:
		state = src.State
	case UploadID:
		var err error
		if state, err = uploader.FromTransactionID(ctx, s.api, string(src)); err != nil {
			return nil, err
		}
	default:
		return nil, xerrors.Errorf("unknown upload source %T", src)
	}

	return uploader.FromSerialized(ctx, s.api, state, data, s.uploaderOpts...)
}

// Upload drives an upload to completion, yielding the uploader after each
// step. An error ends the sequence; so does the caller breaking out of the
// loop, leaving the upload resumable.
func (s *Service) Upload(ctx context.Context, src UploadSource, data []byte) iter.Seq2[*uploader.Uploader, error] {
	return func(yield func(*uploader.Uploader, error) bool) {
		u, err := s.GetUploader(ctx, src, data)
		if err != nil {
			yield(nil, err)
			return
		}

		for !u.IsComplete() {
			if err := u.UploadChunk(ctx); err != nil {
				yield(u, err)
				return
			}
			if !yield(u, nil) {
				return
			}
		}
	}
}
