package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/chain/transactions"
	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/lib/sigs"
)

var txCmd = &cli.Command{
	Name:  "tx",
	Usage: "Create, inspect and post transactions",
	Subcommands: []*cli.Command{
		txCreate,
		txSign,
		txVerify,
		txPost,
		txStatus,
		txWait,
		txGet,
		txData,
	},
}

var tagFlag = &cli.StringSliceFlag{
	Name:  "tag",
	Usage: "tag to attach, as name=value; repeatable",
}

func parseTags(vals []string) ([]types.Tag, error) {
	tags := make([]types.Tag, 0, len(vals))
	for _, v := range vals {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, xerrors.Errorf("malformed tag %q, expected name=value", v)
		}
		tags = append(tags, types.NewTag(name, value))
	}
	return tags, nil
}

func readTxFile(cctx *cli.Context, tr *transactions.Service) (*types.Transaction, error) {
	if cctx.NArg() != 1 {
		return nil, xerrors.New("expected a transaction file")
	}
	b, err := os.ReadFile(cctx.Args().First())
	if err != nil {
		return nil, err
	}
	return tr.FromRaw(b)
}

func printJSON(cctx *cli.Context, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cctx.App.Writer, string(b))
	return nil
}

var txCreate = &cli.Command{
	Name:  "create",
	Usage: "Create and sign a transaction",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "data",
			Usage: "data to store, as text",
		},
		&cli.PathFlag{
			Name:  "data-file",
			Usage: "file holding the data to store",
		},
		&cli.StringFlag{
			Name:  "target",
			Usage: "address to send AR to",
		},
		&cli.StringFlag{
			Name:  "quantity",
			Usage: "amount of AR to send to the target",
		},
		&cli.StringFlag{
			Name:  "reward",
			Usage: "fee in winston (default: priced by the gateway)",
		},
		&cli.StringFlag{
			Name:  "last-tx",
			Usage: "anchor (default: fetched from the gateway)",
		},
		tagFlag,
		&cli.PathFlag{
			Name:  "out",
			Usage: "write the signed transaction here instead of stdout",
		},
	}, signerFlags...),
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		attrs := transactions.CreateAttributes{
			Target: cctx.String("target"),
			Reward: cctx.String("reward"),
			LastTx: cctx.String("last-tx"),
		}

		switch {
		case cctx.IsSet("data-file"):
			data, err := os.ReadFile(cctx.Path("data-file"))
			if err != nil {
				return err
			}
			attrs.Data = data
		case cctx.IsSet("data"):
			attrs.Data = cctx.String("data")
		}

		if q := cctx.String("quantity"); q != "" {
			if attrs.Quantity, err = types.ARToWinston(q); err != nil {
				return xerrors.Errorf("parsing quantity: %w", err)
			}
		}
		if attrs.Tags, err = parseTags(cctx.StringSlice("tag")); err != nil {
			return err
		}

		src, err := signingSource(cctx, c)
		if err != nil {
			return err
		}

		tx, err := c.CreateTransaction(ctx, attrs, src)
		if err != nil {
			return err
		}
		if err := c.Transactions.Sign(ctx, tx, src, sigs.SignOptions{}); err != nil {
			return err
		}
		return writeTx(cctx, tx)
	},
}

// writeTx writes tx to --out and prints its id, or prints it whole.
func writeTx(cctx *cli.Context, tx *types.Transaction) error {
	if out := cctx.Path("out"); out != "" {
		b, err := json.Marshal(tx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, b, 0644); err != nil { //nolint:gosec
			return err
		}
		fmt.Fprintln(cctx.App.Writer, tx.ID)
		return nil
	}
	return printJSON(cctx, tx)
}

var txSign = &cli.Command{
	Name:      "sign",
	Usage:     "Sign, or sign again, a transaction file",
	ArgsUsage: "<transaction file>",
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:  "salt-length",
			Usage: "PSS salt length; 0 gives deterministic signatures",
			Value: -1,
		},
		&cli.PathFlag{
			Name:  "out",
			Usage: "write the signed transaction here instead of stdout",
		},
	}, signerFlags...),
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		tx, err := readTxFile(cctx, c.Transactions)
		if err != nil {
			return err
		}

		src, err := signingSource(cctx, c)
		if err != nil {
			return err
		}

		var opts sigs.SignOptions
		if n := cctx.Int("salt-length"); n >= 0 {
			opts = sigs.SaltLength(n)
		}
		if err := c.Transactions.Sign(ctx, tx, src, opts); err != nil {
			return err
		}
		return writeTx(cctx, tx)
	},
}

var txVerify = &cli.Command{
	Name:      "verify",
	Usage:     "Verify the signature of a transaction file",
	ArgsUsage: "<transaction file>",
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		tx, err := readTxFile(cctx, c.Transactions)
		if err != nil {
			return err
		}

		ok, err := c.Transactions.Verify(ctx, tx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(cctx.App.Writer, "%s %s\n", tx.ID, color.RedString("invalid"))
			return xerrors.New("signature verification failed")
		}
		fmt.Fprintf(cctx.App.Writer, "%s %s\n", tx.ID, color.GreenString("valid"))
		return nil
	},
}

var txPost = &cli.Command{
	Name:      "post",
	Usage:     "Post a signed transaction file with its data",
	ArgsUsage: "<transaction file>",
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		tx, err := readTxFile(cctx, c.Transactions)
		if err != nil {
			return err
		}

		res, err := c.Transactions.Post(ctx, tx)
		if err != nil {
			return err
		}
		if !res.OK() {
			return xerrors.Errorf("gateway rejected %s: %d %s", tx.ID, res.Status, res.Error)
		}
		fmt.Fprintln(cctx.App.Writer, tx.ID)
		return nil
	},
}

var txStatus = &cli.Command{
	Name:      "status",
	Usage:     "Check the status of a transaction",
	ArgsUsage: "<id>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected a transaction id")
		}

		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		st, err := c.Transactions.GetStatus(ctx, cctx.Args().First())
		if err != nil {
			return err
		}
		printStatus(cctx, st)
		return nil
	},
}

func printStatus(cctx *cli.Context, st *types.TxStatus) {
	if !st.IsConfirmed() {
		fmt.Fprintf(cctx.App.Writer, "status: %d\n", st.Status)
		return
	}
	fmt.Fprintf(cctx.App.Writer, "status: %d\nblock: %d (%s)\nconfirmations: %d\n",
		st.Status, st.Confirmed.BlockHeight, st.Confirmed.BlockIndepHash, st.Confirmed.NumberOfConfirmations)
}

var txWait = &cli.Command{
	Name:      "wait",
	Usage:     "Wait for a transaction to be mined",
	ArgsUsage: "<id>",
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:  "confirmations",
			Value: 1,
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected a transaction id")
		}

		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		st, err := c.Transactions.WaitConfirmed(ctx, cctx.Args().First(), cctx.Int64("confirmations"))
		if err != nil {
			return err
		}
		printStatus(cctx, st)
		return nil
	},
}

var txGet = &cli.Command{
	Name:      "get",
	Usage:     "Fetch a transaction",
	ArgsUsage: "<id>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected a transaction id")
		}

		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		tx, err := c.Transactions.Get(ctx, cctx.Args().First())
		if err != nil {
			return err
		}
		return printJSON(cctx, tx)
	},
}

var txData = &cli.Command{
	Name:      "data",
	Usage:     "Fetch the data of a transaction",
	ArgsUsage: "<id>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "decode",
			Usage: "print the raw bytes instead of base64url",
		},
		&cli.BoolFlag{
			Name:  "string",
			Usage: "with --decode, require the data to be UTF-8 text",
		},
		&cli.PathFlag{
			Name:  "out",
			Usage: "write the raw data to this file",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected a transaction id")
		}

		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)
		id := cctx.Args().First()

		if out := cctx.Path("out"); out != "" {
			data, err := c.Transactions.GetRawData(ctx, id)
			if err != nil {
				return err
			}
			return os.WriteFile(out, data, 0644) //nolint:gosec
		}

		s, err := c.Transactions.GetData(ctx, id, types.GetOptions{
			Decode: cctx.Bool("decode"),
			String: cctx.Bool("string"),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cctx.App.Writer, s)
		return nil
	},
}
