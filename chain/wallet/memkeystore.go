package wallet

import (
	"sync"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/chain/types"
)

type MemKeyStore struct {
	m  map[string]types.KeyInfo
	lk sync.Mutex
}

func NewMemKeyStore() *MemKeyStore {
	return &MemKeyStore{
		m: make(map[string]types.KeyInfo),
	}
}

// List lists all the keys stored in the KeyStore
func (mks *MemKeyStore) List() ([]string, error) {
	mks.lk.Lock()
	defer mks.lk.Unlock()

	var out []string
	for k := range mks.m {
		out = append(out, k)
	}
	return out, nil
}

// Get gets a key out of keystore and returns KeyInfo corresponding to named key
func (mks *MemKeyStore) Get(k string) (types.KeyInfo, error) {
	mks.lk.Lock()
	defer mks.lk.Unlock()

	ki, ok := mks.m[k]
	if !ok {
		return types.KeyInfo{}, xerrors.Errorf("getting key '%s': %w", k, types.ErrKeyInfoNotFound)
	}

	return ki, nil
}

// Put saves a key info under given name
func (mks *MemKeyStore) Put(k string, ki types.KeyInfo) error {
	mks.lk.Lock()
	defer mks.lk.Unlock()

	if _, ok := mks.m[k]; ok {
		return xerrors.Errorf("putting key '%s': %w", k, types.ErrKeyExists)
	}
	mks.m[k] = ki
	return nil
}

// Delete removes a key from keystore
func (mks *MemKeyStore) Delete(k string) error {
	mks.lk.Lock()
	defer mks.lk.Unlock()

	if _, ok := mks.m[k]; !ok {
		return xerrors.Errorf("deleting key '%s': %w", k, types.ErrKeyInfoNotFound)
	}
	delete(mks.m, k)
	return nil
}

var _ types.KeyStore = (*MemKeyStore)(nil)
