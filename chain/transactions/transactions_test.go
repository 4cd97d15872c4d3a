package transactions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/api/mocks"
	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/chain/uploader"
	"github.com/arpi-project/arpi/chain/wallet"
	"github.com/arpi-project/arpi/lib/arcache"
	"github.com/arpi-project/arpi/lib/b64url"
	"github.com/arpi-project/arpi/lib/sigs"
	"github.com/arpi-project/arpi/lib/sigs/rsapss"
)

type fixture struct {
	Key           *sigs.JWK   `json:"key"`
	Data          string      `json:"data"`
	LastTx        string      `json:"last_tx"`
	Reward        string      `json:"reward"`
	Tags          []types.Tag `json:"tags"`
	DataRoot      string      `json:"data_root"`
	SignatureData string      `json:"signature_data"`
	Signature     string      `json:"signature"`
	ID            string      `json:"id"`
}

func loadFixture(t *testing.T) *fixture {
	b, err := os.ReadFile("testdata/fixture.json")
	require.NoError(t, err)
	var f fixture
	require.NoError(t, json.Unmarshal(b, &f))
	return &f
}

func (f *fixture) attrs(t *testing.T) CreateAttributes {
	data, err := b64url.Decode(f.Data)
	require.NoError(t, err)

	attrs := CreateAttributes{LastTx: f.LastTx, Reward: f.Reward, Data: data}
	for _, tag := range f.Tags {
		attrs.Tags = append(attrs.Tags, types.NewTag(tag.Name, tag.Value))
	}
	return attrs
}

var okResponse = &api.Response{Status: 200, StatusText: "OK"}

func text(status int, s string) *api.Response {
	return &api.Response{Status: status, Data: []byte(s)}
}

func signedFixtureTx(t *testing.T, s *Service) (*fixture, *types.Transaction) {
	ctx := context.Background()
	f := loadFixture(t)
	key := wallet.LocalKey{JWK: f.Key}

	tx, err := s.Create(ctx, f.attrs(t), key)
	require.NoError(t, err)
	require.NoError(t, s.Sign(ctx, tx, key, sigs.SaltLength(0)))
	return f, tx
}

func TestSignKnownTransaction(t *testing.T) {
	ctx := context.Background()
	s := New(nil, rsapss.Provider{})

	f, tx := signedFixtureTx(t, s)
	require.Equal(t, f.Key.N, tx.Owner)
	require.Equal(t, "100", tx.DataSize)
	require.Equal(t, f.DataRoot, tx.DataRoot)

	payload, err := tx.SignatureData(s.merkle, s.crypto)
	require.NoError(t, err)
	require.Equal(t, f.SignatureData, hex.EncodeToString(payload))

	require.Equal(t, f.Signature, tx.Signature)
	require.Equal(t, f.ID, tx.ID)

	ok, err := s.Verify(ctx, tx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	s := New(nil, rsapss.Provider{})

	_, tx := signedFixtureTx(t, s)
	tx.Tags[0] = types.NewTag("Content-Type", "text/plain")
	ok, err := s.Verify(ctx, tx)
	require.NoError(t, err)
	require.False(t, ok)

	_, tx = signedFixtureTx(t, s)
	sig, err := tx.GetBytes("signature")
	require.NoError(t, err)
	sig[0] ^= 0xff
	tx.Signature = b64url.Encode(sig)
	_, err = s.Verify(ctx, tx)
	require.ErrorIs(t, err, ErrInvalidSignatureID)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	s := New(nil, rsapss.Provider{})

	_, err := s.Create(ctx, CreateAttributes{Target: "abc"}, nil)
	require.ErrorIs(t, err, ErrMissingData)

	_, err = s.Create(ctx, CreateAttributes{Data: ""}, nil)
	require.ErrorIs(t, err, ErrMissingData)

	tx, err := s.Create(ctx, CreateAttributes{Data: []byte{}, LastTx: "anchor", Reward: "0"}, nil)
	require.NoError(t, err)
	require.Equal(t, "0", tx.DataSize)
	require.Empty(t, tx.DataRoot)

	_, err = s.Create(ctx, CreateAttributes{Data: 12}, nil)
	require.ErrorIs(t, err, ErrUnsupportedData)
}

func TestCreateFetchesAnchorAndPriceOnce(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	clk := clock.NewMock()
	cache, err := arcache.New(100, arcache.WithClock(clk))
	require.NoError(t, err)
	s := New(gw, rsapss.Provider{}, WithCache(cache))

	gw.EXPECT().Get(gomock.Any(), "tx_anchor").Return(text(200, "anchor-1"), nil).Times(1)
	gw.EXPECT().Get(gomock.Any(), "price/5").Return(text(200, "42"), nil).Times(1)

	for range 2 {
		tx, err := s.Create(ctx, CreateAttributes{Data: "hello"}, nil)
		require.NoError(t, err)
		require.Equal(t, "anchor-1", tx.LastTx)
		require.Equal(t, "42", tx.Reward)
		require.Equal(t, "5", tx.DataSize)
		require.NotEmpty(t, tx.DataRoot)
		require.Empty(t, tx.Owner)
	}

	clk.Add(time.Hour)
	gw.EXPECT().Get(gomock.Any(), "price/5/target-addr").Return(text(200, "77"), nil)
	gw.EXPECT().Get(gomock.Any(), "tx_anchor").Return(text(200, "anchor-2"), nil)
	tx, err := s.Create(ctx, CreateAttributes{Data: "hello", Target: "target-addr", Quantity: "10"}, nil)
	require.NoError(t, err)
	require.Equal(t, "anchor-2", tx.LastTx)
	require.Equal(t, "77", tx.Reward)
	require.Equal(t, "10", tx.Quantity)
}

func TestCreateAnchorError(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{})

	gw.EXPECT().Get(gomock.Any(), "tx_anchor").Return(text(503, "busy"), nil)
	_, err := s.Create(ctx, CreateAttributes{Data: "x"}, nil)
	var herr *api.ErrHTTPStatus
	require.ErrorAs(t, err, &herr)
	require.Equal(t, 503, herr.Status)
}

type fakeSigner struct {
	key *sigs.JWK
	s   *Service
}

func (f *fakeSigner) SignTransaction(ctx context.Context, tx *types.Transaction, opts sigs.SignOptions) (*types.Transaction, error) {
	cp := *tx
	cp.Tags = append(append([]types.Tag{}, tx.Tags...), types.NewTag("Signer", "external"))
	if err := f.s.Sign(ctx, &cp, wallet.LocalKey{JWK: f.key}, opts); err != nil {
		return nil, err
	}
	return &cp, nil
}

func TestSignExternal(t *testing.T) {
	ctx := context.Background()
	s := New(nil, rsapss.Provider{})
	f := loadFixture(t)

	tx, err := s.Create(ctx, f.attrs(t), nil)
	require.NoError(t, err)
	require.Empty(t, tx.Owner)

	require.NoError(t, s.Sign(ctx, tx, wallet.External{Signer: &fakeSigner{key: f.Key, s: s}}, sigs.SignOptions{}))
	require.Equal(t, f.Key.N, tx.Owner)
	require.Len(t, tx.Tags, 3)

	ok, err := s.Verify(ctx, tx)
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, s.Sign(ctx, tx, nil, sigs.SignOptions{}), ErrNoSigningSource)
	require.ErrorIs(t, s.Sign(ctx, tx, wallet.External{}, sigs.SignOptions{}), ErrNoSigningSource)
}

func TestGetStatusMapping(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{})

	for status, want := range map[int]error{
		202: ErrTxPending,
		404: ErrTxNotFound,
		410: ErrTxFailed,
		500: ErrTxInvalid,
	} {
		gw.EXPECT().Get(gomock.Any(), "tx/abc").Return(&api.Response{Status: status}, nil)
		_, err := s.Get(ctx, "abc")
		require.ErrorIs(t, err, want)
	}
}

func TestGetFetchesInlineData(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{})

	_, tx := signedFixtureTx(t, New(nil, rsapss.Provider{}))
	raw, err := json.Marshal(tx.Header())
	require.NoError(t, err)

	gw.EXPECT().Get(gomock.Any(), "tx/"+tx.ID).Return(&api.Response{Status: 200, Data: raw}, nil)
	gw.EXPECT().Get(gomock.Any(), tx.ID).Return(&api.Response{Status: 200, Data: tx.Data}, nil)

	got, err := s.Get(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, tx.Data, got.Data)

	ok, err := s.Verify(ctx, got)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{})

	gw.EXPECT().Get(gomock.Any(), "tx/abc/status").Return(text(202, "Pending"), nil)
	st, err := s.GetStatus(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, 202, st.Status)
	require.Nil(t, st.Confirmed)

	gw.EXPECT().Get(gomock.Any(), "tx/abc/status").Return(text(200,
		`{"block_indep_hash":"bh","block_height":10,"number_of_confirmations":3}`), nil)
	st, err = s.GetStatus(ctx, "abc")
	require.NoError(t, err)
	require.True(t, st.IsConfirmed())
	require.Equal(t, int64(3), st.Confirmed.NumberOfConfirmations)
	require.Equal(t, "bh", st.Confirmed.BlockIndepHash)
}

func TestGetDataRendering(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{})

	gw.EXPECT().Get(gomock.Any(), "abc").Return(text(200, "hello"), nil).Times(3)

	out, err := s.GetData(ctx, "abc", types.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, "aGVsbG8", out)

	out, err = s.GetData(ctx, "abc", types.GetOptions{Decode: true})
	require.NoError(t, err)
	require.Equal(t, "hello", out)

	out, err = s.GetData(ctx, "abc", types.GetOptions{Decode: true, String: true})
	require.NoError(t, err)
	require.Equal(t, "hello", out)

	gw.EXPECT().Get(gomock.Any(), "bin").Return(&api.Response{Status: 200, Data: []byte{0xff, 0xfe}}, nil)
	_, err = s.GetData(ctx, "bin", types.GetOptions{Decode: true, String: true})
	require.ErrorIs(t, err, b64url.ErrInvalidUTF8)
}

func TestGetRawDataFallsBackToChunks(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{})

	gw.EXPECT().Get(gomock.Any(), "big").Return(text(400, `{"error":"tx_data_too_big"}`), nil)
	gw.EXPECT().Get(gomock.Any(), "tx/big/offset").Return(text(200, `{"size":"3","offset":"1002"}`), nil)
	gw.EXPECT().Get(gomock.Any(), "1000/chunk").Return(text(200, `{"chunk":"YWJj","data_path":"","tx_path":""}`), nil)

	out, err := s.GetRawData(ctx, "big")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), out)

	gw.EXPECT().Get(gomock.Any(), "gone").Return(&api.Response{Status: 410}, nil)
	_, err = s.GetRawData(ctx, "gone")
	require.ErrorIs(t, err, ErrTxFailed)
}

func TestPostReportsGatewayRejection(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{})

	_, tx := signedFixtureTx(t, s)
	gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(text(400, `{"error":"invalid_signature"}`), nil)

	res, err := s.Post(ctx, tx)
	require.NoError(t, err)
	require.False(t, res.OK())
	require.Equal(t, 400, res.Status)
	require.Equal(t, "invalid_signature", res.Error)
}

func chunkedFixtureTx(t *testing.T, s *Service, size int) *types.Transaction {
	ctx := context.Background()
	f := loadFixture(t)
	key := wallet.LocalKey{JWK: f.Key}

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	attrs := f.attrs(t)
	attrs.Data = data

	tx, err := s.Create(ctx, attrs, key)
	require.NoError(t, err)
	require.NoError(t, s.Sign(ctx, tx, key, sigs.SignOptions{}))
	return tx
}

func TestPostFailsOnInvalidChunkProof(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{})

	tx := chunkedFixtureTx(t, s, 600*1024)
	require.Len(t, tx.Chunks.Chunks, 3)
	tx.Chunks.Proofs[1].Proof[0] ^= 0x01

	gomock.InOrder(
		gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(okResponse, nil),
		gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).Return(okResponse, nil),
	)

	res, err := s.Post(ctx, tx)
	require.ErrorIs(t, err, uploader.ErrInvalidChunkProof)
	require.Nil(t, res)
}

func TestPostReportsChunkRejection(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{})

	tx := chunkedFixtureTx(t, s, 600*1024)

	gomock.InOrder(
		gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(okResponse, nil),
		gw.EXPECT().Post(gomock.Any(), "chunk", gomock.Any()).Return(text(400, `{"error":"invalid_proof"}`), nil),
	)

	res, err := s.Post(ctx, tx)
	require.NoError(t, err)
	require.False(t, res.OK())
	require.Equal(t, 400, res.Status)
	require.Equal(t, "invalid_proof", res.Error)
}

func TestSignedIDShape(t *testing.T) {
	ctx := context.Background()
	s := New(nil, rsapss.Provider{})
	f := loadFixture(t)
	key := wallet.LocalKey{JWK: f.Key}

	data := make([]byte, 100)
	_, err := rand.Read(data)
	require.NoError(t, err)

	tx, err := s.Create(ctx, CreateAttributes{Data: data, LastTx: f.LastTx, Reward: f.Reward}, key)
	require.NoError(t, err)
	require.NoError(t, s.Sign(ctx, tx, key, sigs.SignOptions{}))
	require.Regexp(t, `^[A-Za-z0-9_-]{43}$`, tx.ID)
}

func TestPostRaw(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{})

	_, tx := signedFixtureTx(t, s)
	raw, err := json.Marshal(tx)
	require.NoError(t, err)

	gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, body any, _ ...api.RequestOption) (*api.Response, error) {
			require.Equal(t, tx.Data, body.(*types.Transaction).Data)
			return okResponse, nil
		})

	res, err := s.PostRaw(ctx, raw)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, "OK", res.StatusText)
}

func TestUploadIterator(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{})

	_, tx := signedFixtureTx(t, s)
	gw.EXPECT().Post(gomock.Any(), "tx", gomock.Any()).Return(okResponse, nil)

	var steps int
	for u, err := range s.Upload(ctx, UploadTx{Tx: tx}, nil) {
		require.NoError(t, err)
		steps++
		require.Equal(t, 100, u.PctComplete())
	}
	require.Equal(t, 1, steps)
}

func TestGetUploaderResumeNeedsData(t *testing.T) {
	ctx := context.Background()
	s := New(nil, rsapss.Provider{})

	_, err := s.GetUploader(ctx, UploadID("abc"), nil)
	require.ErrorIs(t, err, ErrMustProvideData)
	_, err = s.GetUploader(ctx, UploadState{State: &uploader.Serialized{}}, nil)
	require.ErrorIs(t, err, ErrMustProvideData)

	for _, err := range s.Upload(ctx, UploadID("abc"), nil) {
		require.ErrorIs(t, err, ErrMustProvideData)
	}
}

func TestWaitConfirmed(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	clk := clock.NewMock()
	s := New(gw, rsapss.Provider{}, WithClock(clk), WithPollInterval(time.Second, time.Second))

	gomock.InOrder(
		gw.EXPECT().Get(gomock.Any(), "tx/abc/status").Return(text(202, "Pending"), nil),
		gw.EXPECT().Get(gomock.Any(), "tx/abc/status").Return(text(200,
			`{"block_indep_hash":"bh","block_height":10,"number_of_confirmations":1}`), nil),
		gw.EXPECT().Get(gomock.Any(), "tx/abc/status").Return(text(200,
			`{"block_indep_hash":"bh","block_height":10,"number_of_confirmations":2}`), nil),
	)

	done := make(chan *types.TxStatus)
	go func() {
		st, err := s.WaitConfirmed(ctx, "abc", 2)
		if err != nil {
			close(done)
			return
		}
		done <- st
	}()

	for {
		select {
		case st, ok := <-done:
			require.True(t, ok)
			require.Equal(t, int64(2), st.Confirmed.NumberOfConfirmations)
			return
		case <-time.After(time.Millisecond):
			clk.Add(time.Second)
		}
	}
}

func TestWaitConfirmedCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	s := New(gw, rsapss.Provider{}, WithClock(clock.NewMock()))

	gw.EXPECT().Get(gomock.Any(), "tx/abc/status").DoAndReturn(
		func(context.Context, string, ...api.RequestOption) (*api.Response, error) {
			cancel()
			return text(404, "Not Found"), nil
		})

	_, err := s.WaitConfirmed(ctx, "abc", 1)
	require.ErrorIs(t, err, context.Canceled)
}
