package chunks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/api/mocks"
	"github.com/arpi-project/arpi/lib/b64url"
)

func jsonResponse(t *testing.T, status int, v any) *api.Response {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return &api.Response{Status: status, Data: b}
}

func chunkResponse(t *testing.T, data []byte) *api.Response {
	return jsonResponse(t, 200, ChunkResponse{Chunk: b64url.Encode(data)})
}

func TestFirstChunkOffset(t *testing.T) {
	off, err := FirstChunkOffset(&TransactionOffset{Size: "10", Offset: "1009"})
	require.NoError(t, err)
	require.EqualValues(t, 1000, off)

	_, err = FirstChunkOffset(&TransactionOffset{Size: "x", Offset: "1"})
	require.Error(t, err)
}

func TestDownloadChunkedData(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	c := New(gw, WithRetry(3, time.Millisecond))

	data := []byte("0123456789")

	gomock.InOrder(
		gw.EXPECT().Get(gomock.Any(), "tx/abc/offset").
			Return(jsonResponse(t, 200, TransactionOffset{Size: "10", Offset: "1009"}), nil),
		gw.EXPECT().Get(gomock.Any(), "1000/chunk").Return(chunkResponse(t, data[:4]), nil),
		gw.EXPECT().Get(gomock.Any(), "1004/chunk").
			Return(&api.Response{Status: 502, StatusText: "Bad Gateway"}, nil),
		gw.EXPECT().Get(gomock.Any(), "1004/chunk").Return(chunkResponse(t, data[4:8]), nil),
		gw.EXPECT().Get(gomock.Any(), "1008/chunk").Return(chunkResponse(t, data[8:]), nil),
	)

	out, err := c.DownloadChunkedData(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestDownloadChunkedDataMissingChunk(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	c := New(gw, WithRetry(3, time.Millisecond))

	gw.EXPECT().Get(gomock.Any(), "tx/abc/offset").
		Return(jsonResponse(t, 200, TransactionOffset{Size: "10", Offset: "1009"}), nil)
	gw.EXPECT().Get(gomock.Any(), "1000/chunk").Return(chunkResponse(t, []byte("0123")), nil)
	// not found is not retried
	gw.EXPECT().Get(gomock.Any(), "1004/chunk").
		Return(&api.Response{Status: 404, StatusText: "Not Found"}, nil).Times(1)

	_, err := c.DownloadChunkedData(ctx, "abc")
	require.ErrorIs(t, err, ErrIncompleteDownload)
	var se *api.ErrHTTPStatus
	require.ErrorAs(t, err, &se)
	require.Equal(t, 404, se.Status)
}

func TestDownloadChunkedDataOversizedChunk(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	c := New(gw)

	gw.EXPECT().Get(gomock.Any(), "tx/abc/offset").
		Return(jsonResponse(t, 200, TransactionOffset{Size: "3", Offset: "2"}), nil)
	gw.EXPECT().Get(gomock.Any(), "0/chunk").Return(chunkResponse(t, []byte("toolong")), nil)

	_, err := c.DownloadChunkedData(ctx, "abc")
	require.ErrorIs(t, err, ErrIncompleteDownload)
}

func TestDownloadChunkedDataBadSize(t *testing.T) {
	ctx := context.Background()

	for _, o := range []TransactionOffset{
		{Size: "-5", Offset: "10"},
		{Size: "0", Offset: "10"},
		{Size: "20", Offset: "10"},
		{Size: "1025", Offset: "5000"},
	} {
		ctrl := gomock.NewController(t)
		gw := mocks.NewMockGateway(ctrl)
		c := New(gw, WithMaxSize(1024))

		// no chunk is requested
		gw.EXPECT().Get(gomock.Any(), "tx/abc/offset").Return(jsonResponse(t, 200, o), nil)

		_, err := c.DownloadChunkedData(ctx, "abc")
		require.ErrorIs(t, err, ErrIncompleteDownload, "size %s offset %s", o.Size, o.Offset)
		var de *ErrDownload
		require.ErrorAs(t, err, &de)
		require.Zero(t, de.Read)
		ctrl.Finish()
	}
}

func TestTransactionOffsetError(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	gw.EXPECT().Get(gomock.Any(), "tx/abc/offset").
		Return(&api.Response{Status: 404, Data: []byte(`{"error":"not_found"}`)}, nil)

	_, err := New(gw).TransactionOffset(ctx, "abc")
	require.ErrorContains(t, err, "not_found")
}
