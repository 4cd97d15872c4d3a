package blocks

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/arpi-project/arpi/api"
	"github.com/arpi-project/arpi/api/mocks"
	"github.com/arpi-project/arpi/chain/network"
)

func TestGetAndCurrent(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	b := New(gw, network.New(gw))

	gomock.InOrder(
		gw.EXPECT().Get(gomock.Any(), "info").
			Return(&api.Response{Status: 200, Data: []byte(`{"current":"zzz","height":7}`)}, nil),
		gw.EXPECT().Get(gomock.Any(), "block/hash/zzz").
			Return(&api.Response{Status: 200, Data: []byte(`{"indep_hash":"zzz","height":7,"txs":["a","b"],"reward_pool":"100"}`)}, nil),
	)

	blk, err := b.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, "zzz", blk.IndepHash)
	require.EqualValues(t, 7, blk.Height)
	require.Equal(t, []string{"a", "b"}, blk.Txs)
	require.Equal(t, "100", blk.RewardPool.String())
}

func TestGetErrors(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	b := New(gw, network.New(gw))

	gw.EXPECT().Get(gomock.Any(), "block/hash/nope").Return(&api.Response{Status: 404}, nil)
	_, err := b.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrBlockNotFound)

	gw.EXPECT().Get(gomock.Any(), "block/hash/bad").
		Return(&api.Response{Status: 500, Data: []byte("boom")}, nil)
	_, err = b.Get(ctx, "bad")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrBlockNotFound)
	require.ErrorContains(t, err, "boom")
}
