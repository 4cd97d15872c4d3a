// Package uploader posts a signed transaction and then streams its data
// through the chunk endpoint one chunk per step. Its state can be serialized
// between steps and resumed later given the same data.
package uploader

import (
	"context"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/lib/b64url"
	"github.com/arpi-project/arpi/lib/merkle"
	"github.com/arpi-project/arpi/metrics"
)

var log = logging.Logger("uploader")

// Uploader is the state of one transaction upload. It is not safe for
// concurrent use; chunks of one transaction go out strictly in order.
type Uploader struct {
	api    api.Gateway
	merkle *merkle.Merkle
	clk    clock.Clock
	jitter func() float64

	errorDelay time.Duration
	maxErrors  int

	chunkIndex int
	txPosted   bool
	tx         *types.Transaction
	data       []byte

	// unix milliseconds
	lastRequestTimeEnd int64
	lastResponseStatus int
	lastResponseError  string

	// not serialized
	totalErrors int
}

type Option func(*Uploader)

// WithClock replaces the clock used for error delays.
func WithClock(clk clock.Clock) Option {
	return func(u *Uploader) { u.clk = clk }
}

// WithMerkle replaces the engine used to recompute and validate chunks.
func WithMerkle(m *merkle.Merkle) Option {
	return func(u *Uploader) { u.merkle = m }
}

// WithErrorDelay sets the base wait after an error response.
func WithErrorDelay(d time.Duration) Option {
	return func(u *Uploader) { u.errorDelay = d }
}

// WithMaxErrors sets the error streak after which the upload gives up.
func WithMaxErrors(n int) Option {
	return func(u *Uploader) { u.maxErrors = n }
}

// WithJitter replaces the source of the random fraction in [0, 1) used to
// shorten error delays.
func WithJitter(f func() float64) Option {
	return func(u *Uploader) { u.jitter = f }
}

func newUploader(gw api.Gateway, opts []Option) *Uploader {
	u := &Uploader{
		api:        gw,
		clk:        build.Clock,
		jitter:     rand.Float64,
		errorDelay: build.UploadErrorDelay,
		maxErrors:  build.UploadMaxErrors,
	}
	for _, o := range opts {
		o(u)
	}
	if u.merkle == nil {
		u.merkle = merkle.New(nil)
	}
	return u
}

// New starts the upload of a signed transaction with prepared chunks. The
// uploader keeps tx.Data and a header copy of tx.
func New(gw api.Gateway, tx *types.Transaction, opts ...Option) (*Uploader, error) {
	if tx.ID == "" {
		return nil, ErrNotSigned
	}
	if tx.Chunks == nil {
		return nil, ErrChunksNotPrepared
	}

	u := newUploader(gw, opts)
	u.data = tx.Data
	u.tx = tx.Header()
	return u, nil
}

// IsComplete reports whether the transaction is posted and every chunk was
// accepted. Data posted inline counts as all chunks accepted.
func (u *Uploader) IsComplete() bool {
	return u.txPosted && u.chunkIndex >= u.TotalChunks()
}

func (u *Uploader) TotalChunks() int {
	if u.tx.Chunks == nil {
		return 0
	}
	return len(u.tx.Chunks.Chunks)
}

func (u *Uploader) UploadedChunks() int {
	return u.chunkIndex
}

// PctComplete is the truncated percentage of uploaded chunks.
func (u *Uploader) PctComplete() int {
	total := u.TotalChunks()
	if total == 0 {
		if u.IsComplete() {
			return 100
		}
		return 0
	}
	return min(u.chunkIndex*100/total, 100)
}

func (u *Uploader) LastResponseStatus() int {
	return u.lastResponseStatus
}

func (u *Uploader) LastResponseError() string {
	return u.lastResponseError
}

// Transaction returns the header being uploaded.
func (u *Uploader) Transaction() *types.Transaction {
	return u.tx
}

// UploadChunk performs the next step of the upload: the first call posts the
// transaction, later calls upload the next chunk. Error responses the network
// may recover from are recorded, not returned; the following call waits
// before trying again.
func (u *Uploader) UploadChunk(ctx context.Context) error {
	if u.IsComplete() {
		return ErrUploadComplete
	}

	if u.lastResponseError != "" {
		u.totalErrors++
	} else {
		u.totalErrors = 0
	}

	// about an hour of consecutive errors
	if u.totalErrors == u.maxErrors {
		return xerrors.Errorf("%d: %s: %w", u.lastResponseStatus, u.lastResponseError, ErrUnableToComplete)
	}

	if u.lastResponseError != "" {
		if err := u.wait(ctx); err != nil {
			return err
		}
	}

	u.lastResponseError = ""

	if !u.txPosted {
		return u.postTransaction(ctx)
	}

	chunk, err := u.tx.GetChunk(u.chunkIndex, u.data)
	if err != nil {
		return err
	}
	if err := u.validateChunk(chunk); err != nil {
		return err
	}

	res, err := u.api.Post(ctx, "chunk", chunk)
	u.lastRequestTimeEnd = u.clk.Now().UnixMilli()
	if err != nil {
		log.Warnw("chunk upload request failed", "id", u.tx.ID, "chunk", u.chunkIndex, "err", err)
		u.lastResponseStatus = -1
		u.lastResponseError = err.Error()
		u.recordError(ctx, "network")
		return nil
	}

	u.lastResponseStatus = res.Status
	if res.Status == 200 {
		stats.Record(ctx, metrics.ChunkUploaded.M(1), metrics.ChunkBytes.M(int64(u.tx.Chunks.Chunks[u.chunkIndex].Size())))
		log.Debugw("chunk uploaded", "id", u.tx.ID, "chunk", u.chunkIndex, "total", u.TotalChunks())
		u.chunkIndex++
		return nil
	}

	u.lastResponseError = res.ErrorMessage()
	if slices.Contains(build.FatalChunkUploadErrors, u.lastResponseError) {
		u.recordError(ctx, "fatal")
		return xerrors.Errorf("chunk %d: %s: %w", u.chunkIndex, u.lastResponseError, ErrFatalChunk)
	}

	log.Warnw("chunk rejected, will retry", "id", u.tx.ID, "chunk", u.chunkIndex, "status", res.Status, "error", u.lastResponseError)
	u.recordError(ctx, "retry")
	return nil
}

// wait sleeps until errorDelay after the last request, at least errorDelay
// from now, shortened by up to UploadErrorJitter at random.
func (u *Uploader) wait(ctx context.Context) error {
	since := time.Duration(u.lastRequestTimeEnd)*time.Millisecond + u.errorDelay - time.Duration(u.clk.Now().UnixMilli())*time.Millisecond
	delay := max(since, u.errorDelay)
	if delay <= 0 {
		return nil
	}

	delay -= time.Duration(float64(delay) * u.jitter() * build.UploadErrorJitter)
	log.Debugw("delaying after error", "id", u.tx.ID, "delay", delay, "streak", u.totalErrors)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-u.clk.After(delay):
		return nil
	}
}

func (u *Uploader) validateChunk(chunk *types.ChunkPayload) error {
	offset, err := strconv.Atoi(chunk.Offset)
	if err != nil {
		return xerrors.Errorf("chunk offset: %w", err)
	}
	size, err := strconv.Atoi(chunk.DataSize)
	if err != nil {
		return xerrors.Errorf("data size: %w", err)
	}
	path, err := b64url.Decode(chunk.DataPath)
	if err != nil {
		return xerrors.Errorf("data path: %w", err)
	}

	if _, err := u.merkle.ValidatePath(u.tx.Chunks.DataRoot, offset, 0, size, path); err != nil {
		return &ErrChunkProof{Index: u.chunkIndex, Err: err}
	}
	return nil
}

// postTransaction posts the transaction with its data when it fits in a
// single chunk, and the header alone otherwise.
func (u *Uploader) postTransaction(ctx context.Context) error {
	inline := u.TotalChunks() <= build.MaxChunksInBody

	body := u.tx
	if inline {
		body = u.tx.Header()
		body.Data = u.data
	}

	res, err := u.api.Post(ctx, "tx", body)
	u.lastRequestTimeEnd = u.clk.Now().UnixMilli()
	if err != nil {
		if !inline {
			return &ErrPost{Status: -1, Err: err}
		}
		u.lastResponseStatus = -1
		u.lastResponseError = err.Error()
		u.recordError(ctx, "network")
		return &ErrPost{Status: -1, Message: u.lastResponseError}
	}

	u.lastResponseStatus = res.Status
	if !res.OK() {
		u.lastResponseError = res.ErrorMessage()
		u.recordError(ctx, "post")
		return &ErrPost{Status: res.Status, Message: u.lastResponseError}
	}

	stats.Record(ctx, metrics.TxPosted.M(1))
	log.Infow("transaction posted", "id", u.tx.ID, "inline", inline, "chunks", u.TotalChunks())

	u.txPosted = true
	if inline {
		u.chunkIndex = build.MaxChunksInBody
	}
	return nil
}

func (u *Uploader) recordError(ctx context.Context, failure string) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(metrics.FailureType, failure)}, metrics.ChunkUploadErrors.M(1))
}
