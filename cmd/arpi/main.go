package main

import (
	"context"
	"fmt"
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"go.opencensus.io/stats/view"

	"github.com/arpi-project/arpi/build"
	lcli "github.com/arpi-project/arpi/cli"
	"github.com/arpi-project/arpi/metrics"
	"github.com/arpi-project/arpi/node/repo"
)

var log = logging.Logger("main")

func main() {
	_ = logging.SetLogLevel("*", "INFO")

	app := &cli.App{
		Name:     "arpi",
		Usage:    "Store data permanently through a network gateway",
		Version:  build.UserVersion(),
		Commands: lcli.Commands,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				EnvVars: []string{"ARPI_PATH"},
				Value:   repo.DefaultPath,
			},
			&cli.StringFlag{
				Name:    "config",
				EnvVars: []string{"ARPI_CONFIG"},
				Usage:   "config file to use instead of the one in the repo",
			},
			&cli.StringFlag{
				Name:    "gateway",
				EnvVars: []string{"ARPI_GATEWAY"},
				Usage:   "gateway URL, overrides the repo config",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "print request and upload counters on exit",
			},
		},
		Before: func(cctx *cli.Context) error {
			if err := logging.SetLogLevel("*", cctx.String("log-level")); err != nil {
				return err
			}
			if cctx.Bool("stats") {
				if err := view.Register(metrics.DefaultViews...); err != nil {
					return err
				}
				return metrics.RecordInfo(context.Background())
			}
			return nil
		},
		After: func(cctx *cli.Context) error {
			if cctx.Bool("stats") {
				printStats(cctx)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Warnf("%+v", err)
		os.Exit(1)
		return
	}
}

func printStats(cctx *cli.Context) {
	for _, v := range metrics.DefaultViews {
		rows, err := view.RetrieveData(v.Name)
		if err != nil {
			continue
		}
		for _, r := range rows {
			fmt.Fprintf(cctx.App.ErrWriter, "%s %v %v\n", v.Name, r.Tags, r.Data)
		}
	}
}
