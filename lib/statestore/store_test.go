package statestore

import (
	"context"
	"testing"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/require"
)

type counter struct {
	N int `json:"n"`
}

func TestStateStore(t *testing.T) {
	ctx := context.Background()
	ds := dssync.MutexWrap(datastore.NewMapDatastore())
	st := New[counter](ds)

	require.NoError(t, st.Put(ctx, "a", &counter{N: 1}))
	require.NoError(t, st.Put(ctx, "b", &counter{N: 5}))

	require.NoError(t, st.Mutate(ctx, "a", func(c *counter) error {
		c.N++
		return nil
	}))

	a, err := st.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 2, a.N)

	all, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 5, all["b"].N)

	require.NoError(t, st.End(ctx, "a"))
	has, err := st.Has(ctx, "a")
	require.NoError(t, err)
	require.False(t, has)

	_, err = st.Get(ctx, "a")
	require.ErrorIs(t, err, ErrNoState)
	require.ErrorIs(t, st.End(ctx, "a"), ErrNoState)
	require.ErrorIs(t, st.Mutate(ctx, "a", func(*counter) error { return nil }), ErrNoState)
}

func TestListReportsUndecodable(t *testing.T) {
	ctx := context.Background()
	ds := dssync.MutexWrap(datastore.NewMapDatastore())
	st := New[counter](ds)

	require.NoError(t, st.Put(ctx, "good", &counter{N: 1}))
	require.NoError(t, ds.Put(ctx, datastore.NewKey("bad"), []byte("{")))

	all, err := st.List(ctx)
	require.Error(t, err)
	require.Len(t, all, 1)
	require.Equal(t, 1, all["good"].N)
}
