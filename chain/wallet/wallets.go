package wallet

import (
	"context"
	"encoding/json"
	"os"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/build"
	"github.com/arpi-project/arpi/lib/arcache"
	"github.com/arpi-project/arpi/lib/b64url"
	"github.com/arpi-project/arpi/lib/sigs"
)

// Wallets answers account questions against a gateway: balances, last
// transactions and owner to address conversion.
type Wallets struct {
	api    api.Gateway
	crypto sigs.Provider
	cache  *arcache.Cache
}

// NewWallets builds the service. A nil cache disables caching.
func NewWallets(gw api.Gateway, crypto sigs.Provider, cache *arcache.Cache) *Wallets {
	return &Wallets{api: gw, crypto: crypto, cache: cache}
}

func (w *Wallets) Generate(ctx context.Context) (*sigs.JWK, error) {
	return w.crypto.GenerateKey(ctx)
}

// GetAddress returns the address of the account jwk belongs to.
func (w *Wallets) GetAddress(jwk *sigs.JWK) (string, error) {
	if jwk == nil {
		return "", xerrors.New("no jwk")
	}
	return w.OwnerToAddress(jwk.N)
}

// OwnerToAddress hashes a b64url owner modulus into its address.
func (w *Wallets) OwnerToAddress(owner string) (string, error) {
	key := "address-" + owner
	if w.cache != nil {
		if a, ok := arcache.GetAs[string](w.cache, key); ok {
			return a, nil
		}
	}

	n, err := b64url.Decode(owner)
	if err != nil {
		return "", xerrors.Errorf("decoding owner: %w", err)
	}
	sum, err := w.crypto.Hash(n, sigs.SHA256)
	if err != nil {
		return "", err
	}
	addr := b64url.Encode(sum)

	if w.cache != nil {
		w.cache.SetWithTTL(key, addr, 0)
	}
	return addr, nil
}

// Balance returns the balance of addr in winston.
func (w *Wallets) Balance(ctx context.Context, addr string) (string, error) {
	return w.cachedText(ctx, "balance-"+addr, "wallet/"+addr+"/balance")
}

// LastTransactionID returns the id of the last transaction sent from addr,
// to be used as an anchor.
func (w *Wallets) LastTransactionID(ctx context.Context, addr string) (string, error) {
	return w.cachedText(ctx, "lastTxId-"+addr, "wallet/"+addr+"/last_tx")
}

func (w *Wallets) cachedText(ctx context.Context, key, endpoint string) (string, error) {
	if w.cache != nil {
		if v, ok := arcache.GetAs[string](w.cache, key); ok {
			return v, nil
		}
	}

	res, err := w.api.Get(ctx, endpoint)
	if err != nil {
		return "", xerrors.Errorf("getting %s: %w", endpoint, err)
	}
	if err := res.Err(); err != nil {
		return "", xerrors.Errorf("getting %s: %w", endpoint, err)
	}

	v := res.Text()
	if w.cache != nil {
		w.cache.SetWithTTL(key, v, build.WalletCacheTTL)
	}
	return v, nil
}

// LoadJWK reads a key file.
func LoadJWK(path string) (*sigs.JWK, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("reading key file: %w", err)
	}
	return sigs.ParseJWK(b)
}

// SaveJWK writes jwk as plain JSON readable by the owner only.
func SaveJWK(path string, jwk *sigs.JWK) error {
	b, err := json.Marshal(jwk)
	if err != nil {
		return xerrors.Errorf("encoding jwk: %w", err)
	}
	if err := os.WriteFile(path, b, 0600); err != nil {
		return xerrors.Errorf("writing key file: %w", err)
	}
	return nil
}
