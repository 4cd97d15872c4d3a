package wallet

import (
	"context"
	"sort"
	"strings"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/lib/sigs"
	"github.com/arpi-project/arpi/lib/sigs/rsapss"
)

var log = logging.Logger("wallet")

const (
	KNamePrefix  = "wallet-"
	KTrashPrefix = "trash-"
	KDefault     = "default"
)

// Wallet holds the keys of local accounts, backed by a KeyStore.
type Wallet struct {
	keys     map[string]*Key
	keystore types.KeyStore
	crypto   sigs.Provider

	lk sync.Mutex
}

func NewWallet(keystore types.KeyStore, crypto sigs.Provider) (*Wallet, error) {
	if crypto == nil {
		crypto = rsapss.Provider{}
	}

	w := &Wallet{
		keys:     make(map[string]*Key),
		keystore: keystore,
		crypto:   crypto,
	}

	return w, nil
}

// KeyWallet is a keystore-less wallet over a fixed set of keys.
func KeyWallet(keys ...*Key) *Wallet {
	m := make(map[string]*Key)
	for _, key := range keys {
		m[key.Address] = key
	}

	return &Wallet{
		keys:   m,
		crypto: rsapss.Provider{},
	}
}

// SigningSource returns the local key of addr as a signing source.
func (w *Wallet) SigningSource(addr string) (SigningSource, error) {
	k, err := w.findKey(addr)
	if err != nil {
		return nil, err
	}
	if k == nil {
		return nil, xerrors.Errorf("signing using key '%s': %w", addr, types.ErrKeyInfoNotFound)
	}

	return LocalKey{JWK: k.JWK}, nil
}

func (w *Wallet) findKey(addr string) (*Key, error) {
	w.lk.Lock()
	defer w.lk.Unlock()

	k, ok := w.keys[addr]
	if ok {
		return k, nil
	}
	if w.keystore == nil {
		log.Warn("findKey didn't find the key in in-memory wallet")
		return nil, nil
	}

	ki, err := w.keystore.Get(KNamePrefix + addr)
	if err != nil {
		if xerrors.Is(err, types.ErrKeyInfoNotFound) {
			return nil, nil
		}
		return nil, xerrors.Errorf("getting from keystore: %w", err)
	}
	k, err = NewKey(ki)
	if err != nil {
		return nil, xerrors.Errorf("decoding from keystore: %w", err)
	}
	w.keys[k.Address] = k
	return k, nil
}

func (w *Wallet) Export(addr string) (*types.KeyInfo, error) {
	k, err := w.findKey(addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to find key to export: %w", err)
	}
	if k == nil {
		return nil, xerrors.Errorf("exporting key '%s': %w", addr, types.ErrKeyInfoNotFound)
	}

	return &k.KeyInfo, nil
}

func (w *Wallet) Import(ki *types.KeyInfo) (string, error) {
	w.lk.Lock()
	defer w.lk.Unlock()

	k, err := NewKey(*ki)
	if err != nil {
		return "", xerrors.Errorf("failed to make key: %w", err)
	}
	if !k.JWK.IsPrivate() {
		return "", xerrors.Errorf("importing %s: key has no private part", k.Address)
	}

	if w.keystore != nil {
		if err := w.keystore.Put(KNamePrefix+k.Address, k.KeyInfo); err != nil {
			return "", xerrors.Errorf("saving to keystore: %w", err)
		}
	}
	w.keys[k.Address] = k

	return k.Address, nil
}

func (w *Wallet) ListAddrs() ([]string, error) {
	if w.keystore == nil {
		w.lk.Lock()
		defer w.lk.Unlock()

		out := make([]string, 0, len(w.keys))
		for a := range w.keys {
			out = append(out, a)
		}
		sort.Strings(out)
		return out, nil
	}

	all, err := w.keystore.List()
	if err != nil {
		return nil, xerrors.Errorf("listing keystore: %w", err)
	}

	sort.Strings(all)

	out := make([]string, 0, len(all))
	for _, a := range all {
		if strings.HasPrefix(a, KNamePrefix) {
			out = append(out, strings.TrimPrefix(a, KNamePrefix))
		}
	}

	return out, nil
}

func (w *Wallet) GetDefault() (string, error) {
	w.lk.Lock()
	defer w.lk.Unlock()

	if w.keystore == nil {
		return "", xerrors.Errorf("no keystore: %w", types.ErrKeyInfoNotFound)
	}

	ki, err := w.keystore.Get(KDefault)
	if err != nil {
		return "", xerrors.Errorf("failed to get default key: %w", err)
	}

	k, err := NewKey(ki)
	if err != nil {
		return "", xerrors.Errorf("failed to read default key from keystore: %w", err)
	}

	return k.Address, nil
}

func (w *Wallet) SetDefault(addr string) error {
	w.lk.Lock()
	defer w.lk.Unlock()

	ki, err := w.keystore.Get(KNamePrefix + addr)
	if err != nil {
		return err
	}

	if err := w.keystore.Delete(KDefault); err != nil {
		if !xerrors.Is(err, types.ErrKeyInfoNotFound) {
			log.Warnf("failed to unregister current default key: %s", err)
		}
	}

	if err := w.keystore.Put(KDefault, ki); err != nil {
		return err
	}

	return nil
}

// GenerateKey creates a fresh key with the wallet's provider, stores it, and
// makes it the default when there is none yet.
func (w *Wallet) GenerateKey(ctx context.Context) (string, error) {
	w.lk.Lock()
	defer w.lk.Unlock()

	jwk, err := w.crypto.GenerateKey(ctx)
	if err != nil {
		return "", err
	}
	k, err := NewKey(types.KeyInfo{Type: types.KTRSAPSS, JWK: jwk})
	if err != nil {
		return "", err
	}

	if w.keystore == nil {
		w.keys[k.Address] = k
		return k.Address, nil
	}

	if err := w.keystore.Put(KNamePrefix+k.Address, k.KeyInfo); err != nil {
		return "", xerrors.Errorf("saving to keystore: %w", err)
	}
	w.keys[k.Address] = k

	_, err = w.keystore.Get(KDefault)
	if err != nil {
		if !xerrors.Is(err, types.ErrKeyInfoNotFound) {
			return "", err
		}

		if err := w.keystore.Put(KDefault, k.KeyInfo); err != nil {
			return "", xerrors.Errorf("failed to set new key as default: %w", err)
		}
	}

	log.Infow("generated key", "address", k.Address)
	return k.Address, nil
}

func (w *Wallet) HasKey(addr string) (bool, error) {
	k, err := w.findKey(addr)
	if err != nil {
		return false, err
	}
	return k != nil, nil
}

func (w *Wallet) DeleteKey(addr string) error {
	k, err := w.findKey(addr)
	if err != nil {
		return xerrors.Errorf("failed to delete key %s : %w", addr, err)
	}
	if k == nil {
		return xerrors.Errorf("failed to delete key %s: %w", addr, types.ErrKeyInfoNotFound)
	}

	w.lk.Lock()
	defer w.lk.Unlock()

	delete(w.keys, addr)
	if w.keystore == nil {
		return nil
	}

	if err := w.keystore.Put(KTrashPrefix+k.Address, k.KeyInfo); err != nil {
		return xerrors.Errorf("failed to mark key %s as trashed: %w", addr, err)
	}

	if err := w.keystore.Delete(KNamePrefix + k.Address); err != nil {
		return xerrors.Errorf("failed to delete key %s: %w", addr, err)
	}

	return nil
}

type Key struct {
	types.KeyInfo

	Address string
}

func NewKey(keyinfo types.KeyInfo) (*Key, error) {
	k := &Key{
		KeyInfo: keyinfo,
	}

	switch k.Type {
	case types.KTRSAPSS, "":
		k.Type = types.KTRSAPSS
	default:
		return nil, xerrors.Errorf("unknown key type %q", k.Type)
	}
	if k.JWK == nil || k.JWK.N == "" {
		return nil, xerrors.New("key info has no jwk")
	}

	var err error
	k.Address, err = rsapss.Address(k.JWK.N)
	if err != nil {
		return nil, xerrors.Errorf("deriving address: %w", err)
	}
	return k, nil
}
