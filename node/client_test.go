package node

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/api/mocks"
	"github.com/arpi-project/arpi/chain/transactions"
	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/chain/uploader"
	"github.com/arpi-project/arpi/lib/sigs/rsapss"
	"github.com/arpi-project/arpi/node/config"
	"github.com/arpi-project/arpi/node/repo"
)

func TestCreateTransactionUsesCache(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	c, err := New(ctx, nil, Gateway(gw))
	require.NoError(t, err)
	require.Nil(t, c.Uploads)

	gw.EXPECT().Get(gomock.Any(), "tx_anchor").Return(&api.Response{Status: 200, Data: []byte("anchor")}, nil)
	gw.EXPECT().Get(gomock.Any(), "price/3").Return(&api.Response{Status: 200, Data: []byte("100")}, nil)

	for range 2 {
		tx, err := c.CreateTransaction(ctx, transactions.CreateAttributes{Data: "abc"}, nil)
		require.NoError(t, err)
		require.Equal(t, "anchor", tx.LastTx)
		require.Equal(t, "100", tx.Reward)
	}
}

func TestCacheDisabled(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	cfg := config.DefaultClient()
	cfg.Cache.Enabled = false
	c, err := New(ctx, cfg, Gateway(gw))
	require.NoError(t, err)

	gw.EXPECT().Get(gomock.Any(), "tx_anchor").Return(&api.Response{Status: 200, Data: []byte("anchor")}, nil).Times(2)
	for range 2 {
		_, err := c.Transactions.Anchor(ctx)
		require.NoError(t, err)
	}
}

func TestClientOverRepo(t *testing.T) {
	ctx := context.Background()
	mem := repo.NewMemory(nil)
	lr, err := mem.Lock()
	require.NoError(t, err)
	defer lr.Close() //nolint:errcheck

	c, err := New(ctx, nil, Repo(lr), Crypto(rsapss.Provider{KeyBits: 2048}))
	require.NoError(t, err)
	require.NotNil(t, c.Uploads)

	addr, err := c.Wallet.GenerateKey(ctx)
	require.NoError(t, err)

	ks, err := lr.KeyStore()
	require.NoError(t, err)
	names, err := ks.List()
	require.NoError(t, err)
	require.Contains(t, names, "wallet-"+addr)

	tx := types.NewTransaction()
	tx.ID = "abc"
	require.NoError(t, c.Uploads.Put(ctx, &uploader.Serialized{ChunkIndex: 1, Transaction: tx}))
	saved, err := c.Uploads.Get(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, 1, saved.ChunkIndex)
	require.Equal(t, "abc", saved.Transaction.ID)
}

func TestSetupLogging(t *testing.T) {
	require.NoError(t, SetupLogging(config.Logging{SubsystemLevels: map[string]string{"arpi": "debug"}}))
	require.Error(t, SetupLogging(config.Logging{SubsystemLevels: map[string]string{"arpi": "loud"}}))
}
