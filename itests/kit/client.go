package kit

import (
	"context"
	"testing"
	"time"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"

	"github.com/arpi-project/arpi/chain/wallet"
	"github.com/arpi-project/arpi/lib/sigs/rsapss"
	"github.com/arpi-project/arpi/node"
	"github.com/arpi-project/arpi/node/config"
	"github.com/arpi-project/arpi/node/repo"
)

// TestKeyBits keeps key generation fast in tests.
const TestKeyBits = 2048

// Client is a node client talking HTTP to a Gateway, with a default key
// and an in-memory repo for upload state.
type Client struct {
	*node.Client

	Addr string
	Repo repo.LockedRepo
}

type ClientOpt func(*config.Client)

// MaxErrors sets the consecutive upload error limit.
func MaxErrors(n int) ClientOpt {
	return func(cfg *config.Client) { cfg.Upload.MaxErrors = n }
}

func NewClient(t *testing.T, g *Gateway, opts ...ClientOpt) *Client {
	ctx := context.Background()

	cfg := config.DefaultClient()
	cfg.API.URL = g.URL()
	cfg.API.TrustedHosts = nil
	cfg.API.Timeout = config.Duration(10 * time.Second)
	cfg.Upload.ErrorDelay = 0
	for _, o := range opts {
		o(cfg)
	}

	r := repo.NewMemory(&repo.MemRepoOptions{
		Ds:     dssync.MutexWrap(datastore.NewMapDatastore()),
		Config: cfg,
	})
	lr, err := r.Lock()
	require.NoError(t, err)
	t.Cleanup(func() { _ = lr.Close() })

	c, err := node.New(ctx, cfg, node.Repo(lr), node.Crypto(rsapss.Provider{KeyBits: TestKeyBits}))
	require.NoError(t, err)

	addr, err := c.Wallet.GenerateKey(ctx)
	require.NoError(t, err)

	return &Client{Client: c, Addr: addr, Repo: lr}
}

// Signer is the default key as a signing source.
func (c *Client) Signer(t *testing.T) wallet.SigningSource {
	src, err := c.Wallet.SigningSource(c.Addr)
	require.NoError(t, err)
	return src
}
