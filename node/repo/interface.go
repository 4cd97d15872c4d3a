package repo

import (
	"context"

	"github.com/ipfs/go-datastore"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/node/config"
)

var (
	ErrRepoAlreadyLocked = xerrors.New("repo is already locked")
	ErrClosedRepo        = xerrors.New("repo is no longer open")
	ErrRepoExists        = xerrors.New("repo exists")
)

type Repo interface {
	// Lock locks the repo for exclusive use.
	Lock() (LockedRepo, error)
}

type LockedRepo interface {
	// Close closes repo and removes lock.
	Close() error

	// Datastore returns the datastore namespace ns of this repo, e.g.
	// "/uploads".
	Datastore(ctx context.Context, ns string) (datastore.Batching, error)

	// Returns config in this repo
	Config() (*config.Client, error)
	SetConfig(func(*config.Client)) error

	// KeyStore returns store of private keys for signing transactions
	KeyStore() (types.KeyStore, error)

	// Path returns absolute path of the repo
	Path() string
}
