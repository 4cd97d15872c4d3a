package blocks

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/chain/network"
	"github.com/arpi-project/arpi/chain/types"
)

const endpoint = "block/hash/"

var ErrBlockNotFound = xerrors.New("block not found")

type Blocks struct {
	api     api.Gateway
	network *network.Network
}

func New(gw api.Gateway, n *network.Network) *Blocks {
	return &Blocks{api: gw, network: n}
}

// Get fetches a block by its independent hash.
func (b *Blocks) Get(ctx context.Context, indepHash string) (*types.Block, error) {
	res, err := b.api.Get(ctx, endpoint+indepHash)
	if err != nil {
		return nil, xerrors.Errorf("getting block %s: %w", indepHash, err)
	}

	switch res.Status {
	case 200:
	case 404:
		return nil, xerrors.Errorf("%s: %w", indepHash, ErrBlockNotFound)
	default:
		return nil, xerrors.Errorf("error while loading block data: %w", res.Err())
	}

	var out types.Block
	if err := res.JSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Current fetches the block the gateway reports as current.
func (b *Blocks) Current(ctx context.Context) (*types.Block, error) {
	info, err := b.network.Info(ctx)
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, info.Current)
}
