package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/chain/wallet"
)

var walletCmd = &cli.Command{
	Name:  "wallet",
	Usage: "Manage wallet",
	Subcommands: []*cli.Command{
		walletNew,
		walletList,
		walletImport,
		walletExport,
		walletSetDefault,
		walletAddress,
		walletBalance,
		walletLastTx,
	},
}

var walletNew = &cli.Command{
	Name:  "new",
	Usage: "Generate a new key and store it in the repo keystore",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "out",
			Usage: "also write the JWK to this file",
		},
	},
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		addr, err := c.Wallet.GenerateKey(ctx)
		if err != nil {
			return err
		}

		if out := cctx.String("out"); out != "" {
			ki, err := c.Wallet.Export(addr)
			if err != nil {
				return err
			}
			if err := wallet.SaveJWK(out, ki.JWK); err != nil {
				return err
			}
		}

		fmt.Fprintln(cctx.App.Writer, addr)
		return nil
	},
}

var walletList = &cli.Command{
	Name:  "list",
	Usage: "List wallet addresses",
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		addrs, err := c.Wallet.ListAddrs()
		if err != nil {
			return err
		}

		// Assume an error means no default key is set
		def, _ := c.Wallet.GetDefault()

		for _, addr := range addrs {
			if addr == def {
				fmt.Fprintf(cctx.App.Writer, "%s (default)\n", addr)
				continue
			}
			fmt.Fprintln(cctx.App.Writer, addr)
		}
		return nil
	},
}

var walletImport = &cli.Command{
	Name:      "import",
	Usage:     "Import a JWK key file into the repo keystore",
	ArgsUsage: "<jwk file>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected a key file")
		}

		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		jwk, err := wallet.LoadJWK(cctx.Args().First())
		if err != nil {
			return err
		}
		addr, err := c.Wallet.Import(&types.KeyInfo{Type: types.KTRSAPSS, JWK: jwk})
		if err != nil {
			return err
		}

		if _, err := c.Wallet.GetDefault(); err != nil {
			if err := c.Wallet.SetDefault(addr); err != nil {
				return err
			}
		}

		fmt.Fprintf(cctx.App.Writer, "imported key %s successfully!\n", addr)
		return nil
	},
}

var walletExport = &cli.Command{
	Name:      "export",
	Usage:     "Write a repo key to a JWK file",
	ArgsUsage: "<address> <jwk file>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return xerrors.New("expected an address and a file")
		}

		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		ki, err := c.Wallet.Export(cctx.Args().Get(0))
		if err != nil {
			return err
		}
		return wallet.SaveJWK(cctx.Args().Get(1), ki.JWK)
	},
}

var walletSetDefault = &cli.Command{
	Name:      "set-default",
	Usage:     "Set default wallet address",
	ArgsUsage: "<address>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("must pass address to set as default")
		}

		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		return c.Wallet.SetDefault(cctx.Args().First())
	},
}

var walletAddress = &cli.Command{
	Name:      "address",
	Usage:     "Print the address of a JWK key file",
	ArgsUsage: "<jwk file>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected a key file")
		}

		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()

		jwk, err := wallet.LoadJWK(cctx.Args().First())
		if err != nil {
			return err
		}
		addr, err := c.Wallets.GetAddress(jwk)
		if err != nil {
			return err
		}

		fmt.Fprintln(cctx.App.Writer, addr)
		return nil
	},
}

var walletBalance = &cli.Command{
	Name:      "balance",
	Usage:     "Get account balance",
	ArgsUsage: "[address (default: the default key)]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "winston",
			Usage: "print the balance in winston",
		},
	},
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		addr := cctx.Args().First()
		if addr == "" {
			if addr, err = c.Wallet.GetDefault(); err != nil {
				return err
			}
		}

		bal, err := c.Wallets.Balance(ctx, addr)
		if err != nil {
			return err
		}
		if cctx.Bool("winston") {
			fmt.Fprintln(cctx.App.Writer, bal)
			return nil
		}

		ar, err := types.ParseWinston(bal)
		if err != nil {
			return xerrors.Errorf("parsing balance %q: %w", bal, err)
		}
		fmt.Fprintln(cctx.App.Writer, ar.String())
		return nil
	},
}

var walletLastTx = &cli.Command{
	Name:      "last-tx",
	Usage:     "Get the id of the last transaction sent from an address",
	ArgsUsage: "[address (default: the default key)]",
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		addr := cctx.Args().First()
		if addr == "" {
			if addr, err = c.Wallet.GetDefault(); err != nil {
				return err
			}
		}

		id, err := c.Wallets.LastTransactionID(ctx, addr)
		if err != nil {
			return err
		}
		fmt.Fprintln(cctx.App.Writer, id)
		return nil
	},
}
