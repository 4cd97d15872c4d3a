package cli

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/api/client"
	"github.com/arpi-project/arpi/node/config"
)

var configCmd = &cli.Command{
	Name:  "config",
	Usage: "Inspect and edit the repo config",
	Subcommands: []*cli.Command{
		configShow,
		configSetGateway,
	},
}

var configShow = &cli.Command{
	Name:  "show",
	Usage: "Print the config in effect, environment overrides included",
	Action: func(cctx *cli.Context) error {
		lr, closer, err := openRepo(cctx)
		if err != nil {
			return err
		}
		defer closer()

		cfg, err := lr.Config()
		if err != nil {
			return err
		}
		return toml.NewEncoder(cctx.App.Writer).Encode(cfg)
	},
}

var configSetGateway = &cli.Command{
	Name:      "set-gateway",
	Usage:     "Store the gateway URL and optionally the failover hosts",
	ArgsUsage: "<url>",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "trusted",
			Usage: "failover gateway URL, repeatable",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected a gateway URL")
		}

		u := client.NormalizeEndpoint(client.Endpoint{URL: cctx.Args().First()}).URL
		trusted := cctx.StringSlice("trusted")

		lr, closer, err := openRepo(cctx)
		if err != nil {
			return err
		}
		defer closer()

		err = lr.SetConfig(func(cfg *config.Client) {
			cfg.API.URL = u
			if len(trusted) > 0 {
				cfg.API.TrustedHosts = trusted
			}
		})
		if err != nil {
			return xerrors.Errorf("saving config: %w", err)
		}

		fmt.Fprintf(cctx.App.Writer, "gateway set to %s\n", u)
		return nil
	},
}
