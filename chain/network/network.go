package network

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/chain/types"
)

type Network struct {
	api api.Gateway
}

func New(gw api.Gateway) *Network {
	return &Network{api: gw}
}

// Info returns the network info document of the current gateway.
func (n *Network) Info(ctx context.Context) (*types.NetworkInfo, error) {
	var out types.NetworkInfo
	if err := n.get(ctx, "info", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Peers lists the peers the current gateway is connected to.
func (n *Network) Peers(ctx context.Context) (types.PeerList, error) {
	var out types.PeerList
	if err := n.get(ctx, "peers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (n *Network) get(ctx context.Context, endpoint string, out any) error {
	res, err := n.api.Get(ctx, endpoint)
	if err != nil {
		return xerrors.Errorf("getting %s: %w", endpoint, err)
	}
	if err := res.Err(); err != nil {
		return xerrors.Errorf("getting %s: %w", endpoint, err)
	}
	return res.JSON(out)
}
