package uploader

import (
	"context"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"

	"github.com/arpi-project/arpi/lib/statestore"
)

// UploadsPrefix is the datastore namespace of saved uploads.
var UploadsPrefix = datastore.NewKey("/uploads")

// Store persists serialized uploads by transaction id so an interrupted
// upload can be resumed by a later process.
type Store struct {
	st *statestore.StateStore[Serialized]
}

func NewStore(ds datastore.Batching) *Store {
	return &Store{st: statestore.New[Serialized](namespace.Wrap(ds, UploadsPrefix))}
}

// Save records the current state of u.
func (s *Store) Save(ctx context.Context, u *Uploader) error {
	return s.Put(ctx, u.Serialize())
}

func (s *Store) Put(ctx context.Context, ser *Serialized) error {
	return s.st.Put(ctx, ser.Transaction.ID, ser)
}

// Get returns the saved state of transaction id; a missing upload is
// reported with statestore.ErrNoState.
func (s *Store) Get(ctx context.Context, id string) (*Serialized, error) {
	return s.st.Get(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.st.End(ctx, id)
}

func (s *Store) List(ctx context.Context) (map[string]*Serialized, error) {
	return s.st.List(ctx)
}
