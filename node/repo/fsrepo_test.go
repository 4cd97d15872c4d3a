package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ipfs/go-datastore"
	"github.com/stretchr/testify/require"

	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/lib/sigs"
	"github.com/arpi-project/arpi/node/config"
)

func genFsRepo(t *testing.T) *FsRepo {
	repo, err := NewFS(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, repo.Init())
	require.ErrorIs(t, repo.Init(), ErrRepoExists)
	return repo
}

func TestFsBasic(t *testing.T) {
	repo := genFsRepo(t)
	basicTest(t, repo)
}

func TestMemBasic(t *testing.T) {
	basicTest(t, NewMemory(nil))
}

func basicTest(t *testing.T, repo Repo) {
	ctx := context.Background()

	lrepo, err := repo.Lock()
	require.NoError(t, err)
	require.NotNil(t, lrepo)

	_, err = repo.Lock()
	require.ErrorIs(t, err, ErrRepoAlreadyLocked)

	cfg, err := lrepo.Config()
	require.NoError(t, err)
	require.Equal(t, config.DefaultClient().API.URL, cfg.API.URL)

	require.NoError(t, lrepo.SetConfig(func(c *config.Client) {
		c.API.URL = "http://localhost:1984"
	}))
	cfg, err = lrepo.Config()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:1984", cfg.API.URL)

	ds, err := lrepo.Datastore(ctx, "/uploads")
	require.NoError(t, err)
	require.NoError(t, ds.Put(ctx, datastore.NewKey("/a"), []byte("b")))
	v, err := ds.Get(ctx, datastore.NewKey("/a"))
	require.NoError(t, err)
	require.Equal(t, []byte("b"), v)

	other, err := lrepo.Datastore(ctx, "/other")
	require.NoError(t, err)
	_, err = other.Get(ctx, datastore.NewKey("/a"))
	require.ErrorIs(t, err, datastore.ErrNotFound)

	ks, err := lrepo.KeyStore()
	require.NoError(t, err)
	keystoreTest(t, ks)

	require.NoError(t, lrepo.Close())
	require.ErrorIs(t, lrepo.Close(), ErrClosedRepo)

	_, err = lrepo.KeyStore()
	require.ErrorIs(t, err, ErrClosedRepo)

	lrepo, err = repo.Lock()
	require.NoError(t, err)
	defer lrepo.Close() //nolint:errcheck

	cfg, err = lrepo.Config()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:1984", cfg.API.URL)

	ks, err = lrepo.KeyStore()
	require.NoError(t, err)
	keys, err := ks.List()
	require.NoError(t, err)
	require.Equal(t, []string{"wallet-foo"}, keys)
}

func keystoreTest(t *testing.T, ks types.KeyStore) {
	keys, err := ks.List()
	require.NoError(t, err)
	require.Empty(t, keys)

	k1 := types.KeyInfo{Type: types.KTRSAPSS, JWK: &sigs.JWK{Kty: "RSA", E: "AQAB", N: "abc", D: "def"}}
	require.NoError(t, ks.Put("wallet-foo", k1))
	require.ErrorIs(t, ks.Put("wallet-foo", k1), types.ErrKeyExists)

	got, err := ks.Get("wallet-foo")
	require.NoError(t, err)
	require.Equal(t, k1, got)

	_, err = ks.Get("wallet-bar")
	require.ErrorIs(t, err, types.ErrKeyInfoNotFound)

	require.NoError(t, ks.Put("wallet-bar", k1))
	require.NoError(t, ks.Delete("wallet-bar"))
	require.ErrorIs(t, ks.Delete("wallet-bar"), types.ErrKeyInfoNotFound)

	keys, err = ks.List()
	require.NoError(t, err)
	require.Equal(t, []string{"wallet-foo"}, keys)
}

func TestFsKeystorePermissions(t *testing.T) {
	repo := genFsRepo(t)
	lrepo, err := repo.Lock()
	require.NoError(t, err)
	defer lrepo.Close() //nolint:errcheck

	ks, err := lrepo.KeyStore()
	require.NoError(t, err)
	require.NoError(t, ks.Put("wallet-foo", types.KeyInfo{Type: types.KTRSAPSS, JWK: &sigs.JWK{N: "abc"}}))

	files, err := os.ReadDir(filepath.Join(lrepo.Path(), fsKeystore))
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NoError(t, os.Chmod(filepath.Join(lrepo.Path(), fsKeystore, files[0].Name()), 0644))

	_, err = ks.Get("wallet-foo")
	require.ErrorContains(t, err, "too relaxed")
}

func TestFsTrashKeysGetSuffix(t *testing.T) {
	repo := genFsRepo(t)
	lrepo, err := repo.Lock()
	require.NoError(t, err)
	defer lrepo.Close() //nolint:errcheck

	ks, err := lrepo.KeyStore()
	require.NoError(t, err)

	ki := types.KeyInfo{Type: types.KTRSAPSS, JWK: &sigs.JWK{N: "abc"}}
	require.NoError(t, ks.Put(KTrashPrefix+"addr", ki))
	require.NoError(t, ks.Put(KTrashPrefix+"addr", ki))

	keys, err := ks.List()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{KTrashPrefix + "addr", KTrashPrefix + "addr-1"}, keys)
}
