// Package statestore keeps JSON encoded state records in a datastore, one
// record per key.
package statestore

import (
	"context"
	"encoding/json"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"
)

var ErrNoState = xerrors.New("no state")

type StateStore[T any] struct {
	ds datastore.Datastore
}

func New[T any](ds datastore.Datastore) *StateStore[T] {
	return &StateStore[T]{ds: ds}
}

// Put creates or replaces the state under k.
func (st *StateStore[T]) Put(ctx context.Context, k string, state *T) error {
	b, err := json.Marshal(state)
	if err != nil {
		return xerrors.Errorf("encoding state for %s: %w", k, err)
	}

	return st.ds.Put(ctx, datastore.NewKey(k), b)
}

// Mutate applies mutator to the existing state under k.
func (st *StateStore[T]) Mutate(ctx context.Context, k string, mutator func(*T) error) error {
	cur, err := st.Get(ctx, k)
	if err != nil {
		return err
	}

	if err := mutator(cur); err != nil {
		return err
	}

	return st.Put(ctx, k, cur)
}

func (st *StateStore[T]) Has(ctx context.Context, k string) (bool, error) {
	return st.ds.Has(ctx, datastore.NewKey(k))
}

func (st *StateStore[T]) Get(ctx context.Context, k string) (*T, error) {
	val, err := st.ds.Get(ctx, datastore.NewKey(k))
	if err != nil {
		if xerrors.Is(err, datastore.ErrNotFound) {
			return nil, xerrors.Errorf("%s: %w", k, ErrNoState)
		}
		return nil, err
	}

	out := new(T)
	if err := json.Unmarshal(val, out); err != nil {
		return nil, xerrors.Errorf("decoding state for %s: %w", k, err)
	}
	return out, nil
}

// End removes the state under k.
func (st *StateStore[T]) End(ctx context.Context, k string) error {
	key := datastore.NewKey(k)
	has, err := st.ds.Has(ctx, key)
	if err != nil {
		return err
	}
	if !has {
		return xerrors.Errorf("%s: %w", k, ErrNoState)
	}
	return st.ds.Delete(ctx, key)
}

// List decodes every record. Records that fail to decode are skipped and
// reported together in the returned error, next to the decoded ones.
func (st *StateStore[T]) List(ctx context.Context) (map[string]*T, error) {
	res, err := st.ds.Query(ctx, query.Query{})
	if err != nil {
		return nil, err
	}
	defer res.Close() //nolint:errcheck

	out := map[string]*T{}
	var errs error

	for {
		res, ok := res.NextSync()
		if !ok {
			break
		}
		if res.Error != nil {
			return nil, res.Error
		}

		elem := new(T)
		if err := json.Unmarshal(res.Value, elem); err != nil {
			errs = multierr.Append(errs, xerrors.Errorf("decoding state for key '%s': %w", res.Key, err))
			continue
		}

		out[datastore.NewKey(res.Key).BaseNamespace()] = elem
	}

	return out, errs
}
