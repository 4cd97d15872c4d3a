// Package cli implements the arpi command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/chain/wallet"
	"github.com/arpi-project/arpi/node"
	"github.com/arpi-project/arpi/node/repo"
)

var log = logging.Logger("cli")

const (
	metadataContext = "context"
	// test hooks
	metadataGateway = "test-gateway"
	metadataRepo    = "test-repo"
)

var Commands = []*cli.Command{
	walletCmd,
	txCmd,
	uploadCmd,
	uploadsCmd,
	dataRootCmd,
	chainCmd,
	configCmd,
}

// openRepo locks the repo named by --repo, initializing it on first use.
// --config points the repo at a config file outside of it.
func openRepo(cctx *cli.Context) (repo.LockedRepo, func(), error) {
	r, _ := cctx.App.Metadata[metadataRepo].(repo.Repo)
	if r == nil {
		if _, ok := cctx.App.Metadata[metadataGateway]; ok {
			r = repo.NewMemory(nil)
		}
	}
	if r == nil {
		fsr, err := repo.NewFS(cctx.String("repo"))
		if err != nil {
			return nil, nil, xerrors.Errorf("opening repo: %w", err)
		}
		if p := cctx.String("config"); p != "" {
			fsr.SetConfigPath(p)
		}
		if err := fsr.Init(); err != nil && !xerrors.Is(err, repo.ErrRepoExists) {
			return nil, nil, xerrors.Errorf("initializing repo: %w", err)
		}
		r = fsr
	}

	lr, err := r.Lock()
	if err != nil {
		return nil, nil, xerrors.Errorf("locking repo: %w", err)
	}
	return lr, func() {
		if err := lr.Close(); err != nil {
			log.Warnw("closing repo", "err", err)
		}
	}, nil
}

// GetClient opens the repo and builds a client from its config. --gateway
// overrides the configured gateway URL. The returned closer releases the
// repo lock.
func GetClient(cctx *cli.Context) (*node.Client, func(), error) {
	ctx := ReqContext(cctx)

	var opts []node.Option
	if gw, ok := cctx.App.Metadata[metadataGateway].(api.Gateway); ok {
		opts = append(opts, node.Gateway(gw))
	}

	lr, closer, err := openRepo(cctx)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := lr.Config()
	if err != nil {
		closer()
		return nil, nil, xerrors.Errorf("loading config: %w", err)
	}
	if u := cctx.String("gateway"); u != "" {
		cfg.API.URL = u
	}

	c, err := node.New(ctx, cfg, append(opts, node.Repo(lr))...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return c, closer, nil
}

// ReqContext returns context for cli execution. Calling it for the first time
// installs SIGTERM handler that will close returned context.
// Not safe for concurrent execution.
func ReqContext(cctx *cli.Context) context.Context {
	if uctx, ok := cctx.App.Metadata[metadataContext]; ok {
		// unchecked cast as if something else is in there
		// it is crash worthy either way
		return uctx.(context.Context)
	}

	tCtx := cctx.Context
	if tCtx == nil {
		tCtx = context.Background()
	}

	ctx, done := context.WithCancel(tCtx)
	sigChan := make(chan os.Signal, 2)
	go func() {
		<-sigChan
		done()
	}()
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	if cctx.App.Metadata == nil {
		cctx.App.Metadata = map[string]any{}
	}
	cctx.App.Metadata[metadataContext] = ctx
	return ctx
}

var signerFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "wallet",
		Usage: "path to a JWK key file to sign with",
	},
	&cli.StringFlag{
		Name:  "from",
		Usage: "address of a repo key to sign with (default: the default key)",
	},
}

// signingSource resolves --wallet or --from, falling back to the default
// repo key.
func signingSource(cctx *cli.Context, c *node.Client) (wallet.SigningSource, error) {
	if p := cctx.String("wallet"); p != "" {
		jwk, err := wallet.LoadJWK(p)
		if err != nil {
			return nil, err
		}
		return wallet.LocalKey{JWK: jwk}, nil
	}

	addr := cctx.String("from")
	if addr == "" {
		var err error
		if addr, err = c.Wallet.GetDefault(); err != nil {
			return nil, xerrors.Errorf("no --wallet or --from given: %w", err)
		}
	}
	return c.Wallet.SigningSource(addr)
}
