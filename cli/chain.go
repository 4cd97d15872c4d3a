package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/arpi-project/arpi/chain/types"
)

var chainCmd = &cli.Command{
	Name:  "chain",
	Usage: "Interact with the network",
	Subcommands: []*cli.Command{
		chainInfo,
		chainBlock,
		chainPeers,
	},
}

var chainInfo = &cli.Command{
	Name:  "info",
	Usage: "Print the network info of the gateway",
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		info, err := c.Network.Info(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintf(cctx.App.Writer, "network: %s (release %d)\n", info.Network, info.Release)
		fmt.Fprintf(cctx.App.Writer, "height:  %d\n", info.Height)
		fmt.Fprintf(cctx.App.Writer, "current: %s\n", info.Current)
		fmt.Fprintf(cctx.App.Writer, "peers:   %d\n", info.Peers)
		return nil
	},
}

var chainBlock = &cli.Command{
	Name:      "block",
	Usage:     "Print a block, the current one by default",
	ArgsUsage: "[indep hash]",
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		var blk *types.Block
		if h := cctx.Args().First(); h != "" {
			blk, err = c.Blocks.Get(ctx, h)
		} else {
			blk, err = c.Blocks.Current(ctx)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cctx.App.Writer, "height:   %d\n", blk.Height)
		fmt.Fprintf(cctx.App.Writer, "hash:     %s\n", blk.IndepHash)
		fmt.Fprintf(cctx.App.Writer, "previous: %s\n", blk.PreviousBlock)
		fmt.Fprintf(cctx.App.Writer, "mined:    %s (%s)\n",
			time.Unix(blk.Timestamp, 0).UTC().Format(time.RFC3339), humanize.Time(time.Unix(blk.Timestamp, 0)))
		fmt.Fprintf(cctx.App.Writer, "txs:      %d\n", len(blk.Txs))
		return nil
	},
}

var chainPeers = &cli.Command{
	Name:  "peers",
	Usage: "List the peers of the gateway",
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		peers, err := c.Network.Peers(ctx)
		if err != nil {
			return err
		}
		for _, p := range peers {
			fmt.Fprintln(cctx.App.Writer, p)
		}
		return nil
	},
}
