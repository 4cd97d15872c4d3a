// Package chunks reads transaction data back from the weave chunk by chunk,
// for bodies too large to be served inline.
package chunks

import (
	"context"
	"fmt"
	"strconv"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/stats"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/lib/b64url"
	"github.com/arpi-project/arpi/lib/retry"
	"github.com/arpi-project/arpi/metrics"
)

var log = logging.Logger("chunks")

const (
	DefaultRetries    = 3
	DefaultRetryDelay = 500 * time.Millisecond
)

var ErrIncompleteDownload = xerrors.New("unable to complete data download")

var _ error = (*ErrDownload)(nil)

// ErrDownload is a chunked download that stopped after Read of Size bytes.
// It matches ErrIncompleteDownload.
type ErrDownload struct {
	Read, Size int64
	Reason     string
	Err        error
}

func (e *ErrDownload) Error() string {
	msg := fmt.Sprintf("%s at %d/%d", ErrIncompleteDownload, e.Read, e.Size)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ErrDownload) Is(target error) bool {
	return target == ErrIncompleteDownload
}

func (e *ErrDownload) Unwrap() error {
	return e.Err
}

// TransactionOffset locates a transaction in the weave. Offset is the
// absolute offset of its last byte.
type TransactionOffset struct {
	Size   string `json:"size"`
	Offset string `json:"offset"`
}

type ChunkResponse struct {
	Chunk    string `json:"chunk"`
	DataPath string `json:"data_path,omitempty"`
	TxPath   string `json:"tx_path,omitempty"`
}

type Chunks struct {
	api api.Gateway

	retries    int
	retryDelay time.Duration
	maxSize    int64
}

type Option func(*Chunks)

// WithRetry sets how often a single chunk fetch is attempted.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Chunks) {
		c.retries = attempts
		c.retryDelay = delay
	}
}

// WithMaxSize caps the size of a chunked download. Zero keeps the default.
func WithMaxSize(n int64) Option {
	return func(c *Chunks) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

func New(gw api.Gateway, opts ...Option) *Chunks {
	c := &Chunks{
		api:        gw,
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
		maxSize:    build.MaxContentLength,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Chunks) TransactionOffset(ctx context.Context, id string) (*TransactionOffset, error) {
	res, err := c.api.Get(ctx, "tx/"+id+"/offset")
	if err != nil {
		return nil, xerrors.Errorf("getting transaction offset: %w", err)
	}
	if res.Status != 200 {
		return nil, xerrors.Errorf("unable to get the transaction offset: %w", res.StatusError())
	}

	var out TransactionOffset
	if err := res.JSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Chunks) Chunk(ctx context.Context, offset int64) (*ChunkResponse, error) {
	res, err := c.api.Get(ctx, strconv.FormatInt(offset, 10)+"/chunk")
	if err != nil {
		return nil, xerrors.Errorf("getting chunk at %d: %w", offset, err)
	}
	if res.Status != 200 {
		return nil, xerrors.Errorf("unable to get the transaction chunk: %w", res.StatusError())
	}

	var out ChunkResponse
	if err := res.JSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChunkData returns the decoded bytes of the chunk containing offset.
func (c *Chunks) ChunkData(ctx context.Context, offset int64) ([]byte, error) {
	ch, err := c.Chunk(ctx, offset)
	if err != nil {
		return nil, err
	}
	return b64url.Decode(ch.Chunk)
}

// FirstChunkOffset is the absolute offset of the first byte of a transaction.
func FirstChunkOffset(o *TransactionOffset) (int64, error) {
	end, size, err := o.parse()
	if err != nil {
		return 0, err
	}
	return end - size + 1, nil
}

func (o *TransactionOffset) parse() (end, size int64, err error) {
	end, err = strconv.ParseInt(o.Offset, 10, 64)
	if err != nil {
		return 0, 0, xerrors.Errorf("parsing offset %q: %w", o.Offset, err)
	}
	size, err = strconv.ParseInt(o.Size, 10, 64)
	if err != nil {
		return 0, 0, xerrors.Errorf("parsing size %q: %w", o.Size, err)
	}
	return end, size, nil
}

// DownloadChunkedData fetches the whole body of transaction id by walking its
// chunks from the first offset. Each chunk fetch is retried on network
// failures and server errors.
func (c *Chunks) DownloadChunkedData(ctx context.Context, id string) ([]byte, error) {
	o, err := c.TransactionOffset(ctx, id)
	if err != nil {
		return nil, err
	}
	end, size, err := o.parse()
	if err != nil {
		return nil, err
	}
	if size <= 0 || size > c.maxSize || end-size+1 < 0 {
		return nil, &ErrDownload{Size: size, Reason: fmt.Sprintf("bad transaction size %d ending at %d", size, end)}
	}
	start := end - size + 1

	data := make([]byte, size)
	var n int64
	for n < size {
		log.Debugw("fetching chunk", "id", id, "byte", n, "size", size)

		off := start + n
		chunk, err := retry.Retry(ctx, c.retries, c.retryDelay, retryable, func() ([]byte, error) {
			return c.ChunkData(ctx, off)
		})
		if err != nil {
			log.Warnw("chunk fetch failed, the chunk may not be uploaded or seeded yet", "offset", off, "err", err)
			return nil, &ErrDownload{Read: n, Size: size, Err: err}
		}
		if len(chunk) == 0 || n+int64(len(chunk)) > size {
			return nil, &ErrDownload{Read: n, Size: size, Reason: fmt.Sprintf("chunk of %d bytes", len(chunk))}
		}

		copy(data[n:], chunk)
		n += int64(len(chunk))
		stats.Record(ctx, metrics.ChunkDownloaded.M(1))
	}

	return data, nil
}

func retryable(err error) bool {
	var se *api.ErrHTTPStatus
	if xerrors.As(err, &se) {
		return se.Status == 429 || se.Status >= 500
	}
	return retry.ErrorIsIn(err, []error{&api.ErrRequest{}})
}
