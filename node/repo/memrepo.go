package repo

import (
	"context"
	"slices"
	"sync"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	dssync "github.com/ipfs/go-datastore/sync"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/node/config"
)

// MemRepo keeps keys, config and datastore in memory, for tests and
// throwaway clients.
type MemRepo struct {
	lk     sync.RWMutex
	locked bool

	datastore datastore.Batching
	keystore  map[string]types.KeyInfo
	config    *config.Client
}

var _ Repo = &MemRepo{}

type MemRepoOptions struct {
	Ds       datastore.Batching
	KeyStore map[string]types.KeyInfo
	Config   *config.Client
}

// NewMemory creates a memory repo. opts and any of its fields may be nil.
func NewMemory(opts *MemRepoOptions) *MemRepo {
	if opts == nil {
		opts = &MemRepoOptions{}
	}
	mem := &MemRepo{
		datastore: opts.Ds,
		keystore:  opts.KeyStore,
		config:    opts.Config,
	}
	if mem.datastore == nil {
		mem.datastore = dssync.MutexWrap(datastore.NewMapDatastore())
	}
	if mem.keystore == nil {
		mem.keystore = make(map[string]types.KeyInfo)
	}
	if mem.config == nil {
		mem.config = config.DefaultClient()
	}
	return mem
}

func (mem *MemRepo) Lock() (LockedRepo, error) {
	mem.lk.Lock()
	defer mem.lk.Unlock()

	if mem.locked {
		return nil, ErrRepoAlreadyLocked
	}
	mem.locked = true
	return &lockedMemRepo{mem: mem}, nil
}

// lockedMemRepo is also the KeyStore of the repo. Its state lives in mem and
// is guarded by mem.lk.
type lockedMemRepo struct {
	mem    *MemRepo
	closed bool
}

// read runs f under the read lock if the repo is still open.
func (lmem *lockedMemRepo) read(f func() error) error {
	lmem.mem.lk.RLock()
	defer lmem.mem.lk.RUnlock()
	if lmem.closed {
		return ErrClosedRepo
	}
	return f()
}

func (lmem *lockedMemRepo) write(f func() error) error {
	lmem.mem.lk.Lock()
	defer lmem.mem.lk.Unlock()
	if lmem.closed {
		return ErrClosedRepo
	}
	return f()
}

func (lmem *lockedMemRepo) Path() string {
	return ""
}

func (lmem *lockedMemRepo) Close() error {
	return lmem.write(func() error {
		lmem.closed = true
		lmem.mem.locked = false
		return nil
	})
}

func (lmem *lockedMemRepo) Datastore(_ context.Context, ns string) (ds datastore.Batching, err error) {
	err = lmem.read(func() error {
		ds = namespace.Wrap(lmem.mem.datastore, datastore.NewKey(ns))
		return nil
	})
	return ds, err
}

func (lmem *lockedMemRepo) Config() (cfg *config.Client, err error) {
	err = lmem.read(func() error {
		cfg = lmem.mem.config
		return nil
	})
	return cfg, err
}

func (lmem *lockedMemRepo) SetConfig(f func(*config.Client)) error {
	return lmem.write(func() error {
		f(lmem.mem.config)
		return nil
	})
}

func (lmem *lockedMemRepo) KeyStore() (types.KeyStore, error) {
	if err := lmem.read(func() error { return nil }); err != nil {
		return nil, err
	}
	return lmem, nil
}

func (lmem *lockedMemRepo) List() (names []string, err error) {
	err = lmem.read(func() error {
		for k := range lmem.mem.keystore {
			names = append(names, k)
		}
		return nil
	})
	slices.Sort(names)
	return names, err
}

func (lmem *lockedMemRepo) Get(name string) (ki types.KeyInfo, err error) {
	err = lmem.read(func() error {
		var ok bool
		if ki, ok = lmem.mem.keystore[name]; !ok {
			return xerrors.Errorf("getting key '%s': %w", name, types.ErrKeyInfoNotFound)
		}
		return nil
	})
	return ki, err
}

func (lmem *lockedMemRepo) Put(name string, ki types.KeyInfo) error {
	return lmem.write(func() error {
		if _, ok := lmem.mem.keystore[name]; ok {
			return xerrors.Errorf("putting key '%s': %w", name, types.ErrKeyExists)
		}
		lmem.mem.keystore[name] = ki
		return nil
	})
}

func (lmem *lockedMemRepo) Delete(name string) error {
	return lmem.write(func() error {
		if _, ok := lmem.mem.keystore[name]; !ok {
			return xerrors.Errorf("deleting key '%s': %w", name, types.ErrKeyInfoNotFound)
		}
		delete(lmem.mem.keystore, name)
		return nil
	})
}
