package uploader

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/api/mocks"
	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/lib/b64url"
	"github.com/arpi-project/arpi/lib/merkle"
)

func testData(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

func preparedTx(t *testing.T, data []byte) *types.Transaction {
	tx := types.NewTransaction()
	tx.Data = data
	tx.DataSize = strconv.Itoa(len(data))
	require.NoError(t, tx.PrepareChunks(nil, data))
	tx.ID = "test-tx"
	return tx
}

var okResponse = &api.Response{Status: 200, StatusText: "OK"}

func TestNewRequirements(t *testing.T) {
	tx := types.NewTransaction()
	_, err := New(nil, tx)
	require.ErrorIs(t, err, ErrNotSigned)

	tx.ID = "x"
	_, err = New(nil, tx)
	require.ErrorIs(t, err, ErrChunksNotPrepared)
}

func TestSingleChunkPostsInline(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	data := testData(100)
	tx := preparedTx(t, data)
	u, err := New(gw, tx)
	require.NoError(t, err)
	require.Equal(t, 1, u.TotalChunks())
	require.Empty(t, u.Transaction().Data)

	gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, body any, _ ...api.RequestOption) (*api.Response, error) {
			posted := body.(*types.Transaction)
			require.Equal(t, data, posted.Data)
			return okResponse, nil
		})

	require.NoError(t, u.UploadChunk(ctx))
	require.True(t, u.IsComplete())
	require.Equal(t, build.MaxChunksInBody, u.UploadedChunks())
	require.Equal(t, 100, u.PctComplete())
	require.Empty(t, u.Transaction().Data)

	require.ErrorIs(t, u.UploadChunk(ctx), ErrUploadComplete)
}

func TestEmptyDataCompletesAfterPost(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	tx := preparedTx(t, nil)
	u, err := New(gw, tx)
	require.NoError(t, err)
	require.Equal(t, 0, u.TotalChunks())
	require.False(t, u.IsComplete())

	gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(okResponse, nil)
	require.NoError(t, u.UploadChunk(ctx))
	require.True(t, u.IsComplete())
	require.Equal(t, 100, u.PctComplete())
}

func TestChunksInOrder(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	data := testData(3*build.MaxChunkSize + 5)
	tx := preparedTx(t, data)
	u, err := New(gw, tx)
	require.NoError(t, err)

	total := u.TotalChunks()
	require.Greater(t, total, 1)

	var offsets []string
	calls := []*gomock.Call{
		gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, body any, _ ...api.RequestOption) (*api.Response, error) {
				require.Empty(t, body.(*types.Transaction).Data)
				return okResponse, nil
			}),
	}
	for i := 0; i < total; i++ {
		calls = append(calls, gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, body any, _ ...api.RequestOption) (*api.Response, error) {
				p := body.(*types.ChunkPayload)
				require.Equal(t, tx.DataRoot, p.DataRoot)
				require.Equal(t, strconv.Itoa(len(data)), p.DataSize)

				c := tx.Chunks.Chunks[i]
				require.Equal(t, b64url.Encode(data[c.MinByteRange:c.MaxByteRange]), p.Chunk)
				offsets = append(offsets, p.Offset)
				return okResponse, nil
			}))
	}
	gomock.InOrder(calls...)

	steps := 0
	for !u.IsComplete() {
		require.NoError(t, u.UploadChunk(ctx))
		steps++
		require.Equal(t, steps-1, u.UploadedChunks())
	}
	require.Equal(t, total+1, steps)
	require.Equal(t, 100, u.PctComplete())

	for i, p := range tx.Chunks.Proofs {
		require.Equal(t, strconv.Itoa(p.Offset), offsets[i])
	}
}

func TestFatalChunkErrorAborts(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	tx := preparedTx(t, testData(3*build.MaxChunkSize+5))
	u, err := New(gw, tx)
	require.NoError(t, err)
	require.Greater(t, u.TotalChunks(), 2)

	gomock.InOrder(
		gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(okResponse, nil),
		gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).Return(okResponse, nil),
		gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).
			Return(&api.Response{Status: 400, Data: []byte(`{"error":"invalid_proof"}`)}, nil),
	)

	require.NoError(t, u.UploadChunk(ctx))
	require.NoError(t, u.UploadChunk(ctx))
	err = u.UploadChunk(ctx)
	require.ErrorIs(t, err, ErrFatalChunk)
	require.ErrorContains(t, err, "invalid_proof")
	require.Equal(t, 1, u.UploadedChunks())
	require.Equal(t, 400, u.LastResponseStatus())
	require.Equal(t, "invalid_proof", u.LastResponseError())
}

func TestRetryWaitsErrorDelay(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	mClock := clock.NewMock()
	start := mClock.Now()

	tx := preparedTx(t, testData(2*build.MaxChunkSize))
	u, err := New(gw, tx, WithClock(mClock), WithJitter(func() float64 { return 0 }))
	require.NoError(t, err)

	var retriedAt time.Time
	gomock.InOrder(
		gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(okResponse, nil),
		gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).
			Return(&api.Response{Status: 503, Data: []byte("timeout")}, nil),
		gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).DoAndReturn(
			func(context.Context, string, any, ...api.RequestOption) (*api.Response, error) {
				retriedAt = mClock.Now()
				return okResponse, nil
			}),
	)

	require.NoError(t, u.UploadChunk(ctx))
	require.NoError(t, u.UploadChunk(ctx))
	require.Equal(t, 503, u.LastResponseStatus())
	require.Equal(t, "timeout", u.LastResponseError())
	require.Equal(t, 0, u.UploadedChunks())

	done := make(chan error, 1)
	go func() { done <- u.UploadChunk(ctx) }()

	for waiting := true; waiting; {
		select {
		case err := <-done:
			require.NoError(t, err)
			waiting = false
		case <-time.After(time.Millisecond):
			mClock.Add(time.Second)
		}
	}

	require.GreaterOrEqual(t, retriedAt.Sub(start), build.UploadErrorDelay)
	require.Equal(t, 1, u.UploadedChunks())
	require.Empty(t, u.LastResponseError())
}

func TestRetryWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	tx := preparedTx(t, testData(2*build.MaxChunkSize))
	u, err := New(gw, tx, WithClock(clock.NewMock()))
	require.NoError(t, err)

	gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(&api.Response{Status: 500, Data: []byte("busy")}, nil)
	require.ErrorIs(t, u.UploadChunk(ctx), ErrPostTransaction)

	cancel()
	require.ErrorIs(t, u.UploadChunk(ctx), context.Canceled)
}

func TestErrorStreakGivesUp(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	tx := preparedTx(t, testData(2*build.MaxChunkSize))
	u, err := New(gw, tx, WithClock(clock.NewMock()), WithErrorDelay(0))
	require.NoError(t, err)

	gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(okResponse, nil)
	gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).
		Return(&api.Response{Status: 500, StatusText: "Internal Server Error"}, nil).
		Times(build.UploadMaxErrors)

	require.NoError(t, u.UploadChunk(ctx))
	for i := 0; i < build.UploadMaxErrors; i++ {
		require.NoError(t, u.UploadChunk(ctx))
	}

	err = u.UploadChunk(ctx)
	require.ErrorIs(t, err, ErrUnableToComplete)
	require.ErrorContains(t, err, "500")
}

func TestNetworkErrorRecorded(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	tx := preparedTx(t, testData(2*build.MaxChunkSize))
	u, err := New(gw, tx, WithClock(clock.NewMock()))
	require.NoError(t, err)

	gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(okResponse, nil)
	gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).Return(nil, xerrors.New("connection reset"))

	require.NoError(t, u.UploadChunk(ctx))
	require.NoError(t, u.UploadChunk(ctx))
	require.Equal(t, -1, u.LastResponseStatus())
	require.Equal(t, "connection reset", u.LastResponseError())
	require.Equal(t, 0, u.UploadedChunks())
}

func TestInvalidLocalProofNotSent(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	tx := preparedTx(t, testData(2*build.MaxChunkSize))
	u, err := New(gw, tx)
	require.NoError(t, err)

	gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(okResponse, nil)
	require.NoError(t, u.UploadChunk(ctx))

	tx.Chunks.Proofs[0].Proof[3] ^= 0x01
	err = u.UploadChunk(ctx)
	require.ErrorIs(t, err, ErrInvalidChunkProof)
	require.ErrorIs(t, err, merkle.ErrInvalidProof)
	var pe *ErrChunkProof
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 0, pe.Index)
	require.Empty(t, u.LastResponseError())
}

func TestPostHeaderRejected(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	tx := preparedTx(t, testData(2*build.MaxChunkSize))
	u, err := New(gw, tx)
	require.NoError(t, err)

	gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).
		Return(&api.Response{Status: 400, Data: []byte(`{"error":"invalid_signature"}`)}, nil)

	err = u.UploadChunk(ctx)
	require.ErrorIs(t, err, ErrPostTransaction)
	var pe *ErrPost
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 400, pe.Status)
	require.Equal(t, 400, u.LastResponseStatus())
	require.Equal(t, "invalid_signature", u.LastResponseError())
	require.False(t, u.IsComplete())
}

func TestResumeFromSerialized(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	data := testData(3*build.MaxChunkSize + 5)
	tx := preparedTx(t, data)
	u, err := New(gw, tx)
	require.NoError(t, err)
	total := u.TotalChunks()

	gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(okResponse, nil)
	gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).Return(okResponse, nil)
	require.NoError(t, u.UploadChunk(ctx))
	require.NoError(t, u.UploadChunk(ctx))

	b, err := json.Marshal(u)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	require.ElementsMatch(t, []string{"chunkIndex", "txPosted", "transaction", "lastRequestTimeEnd", "lastResponseStatus", "lastResponseError"}, keys(m))

	var s Serialized
	require.NoError(t, json.Unmarshal(b, &s))
	require.Equal(t, 1, s.ChunkIndex)
	require.True(t, s.TxPosted)

	_, err = FromSerialized(ctx, gw, &s, testData(len(data)+1))
	require.ErrorIs(t, err, ErrDataMismatch)

	resumed, err := FromSerialized(ctx, gw, &s, data)
	require.NoError(t, err)
	require.Equal(t, 1, resumed.UploadedChunks())

	gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).Return(okResponse, nil).Times(total - 1)
	for !resumed.IsComplete() {
		require.NoError(t, resumed.UploadChunk(ctx))
	}
	require.Equal(t, total, resumed.UploadedChunks())
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestMalformedSerialized(t *testing.T) {
	for _, doc := range []string{
		`{"transaction":{"id":"x"}}`,
		`{"chunkIndex":0}`,
		`{"chunkIndex":"0","transaction":{}}`,
		`[]`,
	} {
		var s Serialized
		require.ErrorIs(t, json.Unmarshal([]byte(doc), &s), ErrMalformedSerialized, doc)
	}

	_, err := FromSerialized(context.Background(), nil, nil, nil)
	require.ErrorIs(t, err, ErrMalformedSerialized)
}

func TestFromTransactionID(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	data := testData(2 * build.MaxChunkSize)
	tx := preparedTx(t, data)
	header, err := json.Marshal(tx.Header())
	require.NoError(t, err)

	gw.EXPECT().Get(gomock.Any(), "tx/test-tx").Return(&api.Response{Status: 200, Data: header}, nil)
	s, err := FromTransactionID(ctx, gw, "test-tx")
	require.NoError(t, err)
	require.True(t, s.TxPosted)
	require.Equal(t, 0, s.ChunkIndex)
	require.Empty(t, s.Transaction.Data)

	u, err := FromSerialized(ctx, gw, s, data)
	require.NoError(t, err)

	// header already on the network, chunks only
	gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).Return(okResponse, nil).Times(u.TotalChunks())
	for !u.IsComplete() {
		require.NoError(t, u.UploadChunk(ctx))
	}

	gw.EXPECT().Get(gomock.Any(), "tx/missing").Return(&api.Response{Status: 404}, nil)
	_, err = FromTransactionID(ctx, gw, "missing")
	require.Error(t, err)
}
