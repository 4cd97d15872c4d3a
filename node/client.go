// Package node assembles the SDK services from a configuration into a
// single Client.
package node

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/raulk/clock"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/api/client"
	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/chain/blocks"
	"github.com/arpi-project/arpi/chain/chunks"
	"github.com/arpi-project/arpi/chain/network"
	"github.com/arpi-project/arpi/chain/transactions"
	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/chain/uploader"
	"github.com/arpi-project/arpi/chain/wallet"
	"github.com/arpi-project/arpi/lib/arcache"
	"github.com/arpi-project/arpi/lib/sigs"
	"github.com/arpi-project/arpi/lib/sigs/rsapss"
	"github.com/arpi-project/arpi/node/config"
	"github.com/arpi-project/arpi/node/repo"
)

var log = logging.Logger("arpi")

// MetadataNamespace is the repo datastore namespace the client keeps its
// state under.
const MetadataNamespace = "/metadata"

// Client bundles every service the SDK offers over one gateway.
type Client struct {
	API          api.Gateway
	Crypto       sigs.Provider
	Transactions *transactions.Service
	Wallets      *wallet.Wallets
	Chunks       *chunks.Chunks
	Network      *network.Network
	Blocks       *blocks.Blocks

	// Wallet holds local keys: the repo keystore when opened over a repo,
	// memory otherwise.
	Wallet *wallet.Wallet
	// Uploads persists upload progress. It is nil without a repo.
	Uploads *uploader.Store
}

type settings struct {
	gateway api.Gateway
	crypto  sigs.Provider
	repo    repo.LockedRepo
	clk     clock.Clock
}

type Option func(*settings)

// Gateway replaces the HTTP client built from the config.
func Gateway(gw api.Gateway) Option {
	return func(s *settings) { s.gateway = gw }
}

func Crypto(p sigs.Provider) Option {
	return func(s *settings) { s.crypto = p }
}

// Repo keeps keys and upload progress in lr.
func Repo(lr repo.LockedRepo) Option {
	return func(s *settings) { s.repo = lr }
}

func Clock(clk clock.Clock) Option {
	return func(s *settings) { s.clk = clk }
}

// New builds a Client from cfg. A nil cfg means config.DefaultClient().
func New(ctx context.Context, cfg *config.Client, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultClient()
	}

	s := settings{crypto: rsapss.Provider{}, clk: build.Clock}
	for _, o := range opts {
		o(&s)
	}

	if err := SetupLogging(cfg.Logging); err != nil {
		return nil, err
	}

	gw := s.gateway
	if gw == nil {
		gw = client.New(client.Config{
			Endpoint:         client.Endpoint{URL: cfg.API.URL},
			TrustedHosts:     cfg.API.TrustedHosts,
			Timeout:          time.Duration(cfg.API.Timeout),
			MaxContentLength: cfg.API.MaxContentLength,
			RateLimit:        cfg.API.RateLimit,
			LogRequests:      cfg.API.LogRequests,
		})
	}

	var cache *arcache.Cache
	if cfg.Cache.Enabled {
		var err error
		cache, err = arcache.New(cfg.Cache.Size, arcache.WithClock(s.clk))
		if err != nil {
			return nil, xerrors.Errorf("creating cache: %w", err)
		}
	}

	ch := chunks.New(gw, chunks.WithMaxSize(cfg.API.MaxContentLength))
	nw := network.New(gw)

	c := &Client{
		API:    gw,
		Crypto: s.crypto,
		Transactions: transactions.New(gw, s.crypto,
			transactions.WithCache(cache),
			transactions.WithCacheTTL(time.Duration(cfg.Cache.AnchorTTL), time.Duration(cfg.Cache.PriceTTL)),
			transactions.WithChunks(ch),
			transactions.WithClock(s.clk),
			transactions.WithUploaderOptions(
				uploader.WithClock(s.clk),
				uploader.WithErrorDelay(time.Duration(cfg.Upload.ErrorDelay)),
				uploader.WithMaxErrors(cfg.Upload.MaxErrors),
			),
		),
		Wallets: wallet.NewWallets(gw, s.crypto, cache),
		Chunks:  ch,
		Network: nw,
		Blocks:  blocks.New(gw, nw),
	}

	var ks types.KeyStore = wallet.NewMemKeyStore()
	if s.repo != nil {
		var err error
		if ks, err = s.repo.KeyStore(); err != nil {
			return nil, xerrors.Errorf("opening keystore: %w", err)
		}
		ds, err := s.repo.Datastore(ctx, MetadataNamespace)
		if err != nil {
			return nil, xerrors.Errorf("opening upload datastore: %w", err)
		}
		c.Uploads = uploader.NewStore(ds)
	}

	w, err := wallet.NewWallet(ks, s.crypto)
	if err != nil {
		return nil, err
	}
	c.Wallet = w

	log.Debugw("client ready", "gateway", cfg.API.URL, "cache", cfg.Cache.Enabled, "repo", s.repo != nil)
	return c, nil
}

// CreateTransaction builds an unsigned transaction, see
// transactions.Service.Create.
func (c *Client) CreateTransaction(ctx context.Context, attrs transactions.CreateAttributes, src wallet.SigningSource) (*types.Transaction, error) {
	return c.Transactions.Create(ctx, attrs, src)
}

// SetupLogging applies the per subsystem log levels of cfg.
func SetupLogging(cfg config.Logging) error {
	for sys, level := range cfg.SubsystemLevels {
		if err := logging.SetLogLevel(sys, level); err != nil {
			return xerrors.Errorf("setting log level for %s: %w", sys, err)
		}
	}
	return nil
}
