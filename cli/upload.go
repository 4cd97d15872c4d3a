package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/arpi-project/arpi/chain/transactions"
	"github.com/arpi-project/arpi/chain/types"
	"github.com/arpi-project/arpi/lib/sigs"
	"github.com/arpi-project/arpi/lib/statestore"
)

var uploadCmd = &cli.Command{
	Name:      "upload",
	Usage:     "Sign and upload a file, or resume an interrupted upload",
	ArgsUsage: "<file>",
	Flags: append([]cli.Flag{
		tagFlag,
		&cli.StringFlag{
			Name:  "content-type",
			Usage: "adds a Content-Type tag",
		},
		&cli.StringFlag{
			Name:  "resume",
			Usage: "id of the transaction whose upload to resume",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "no progress bar",
		},
	}, signerFlags...),
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected a file to upload")
		}

		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		data, err := os.ReadFile(cctx.Args().First())
		if err != nil {
			return err
		}

		var src transactions.UploadSource
		if id := cctx.String("resume"); id != "" {
			st, err := c.Uploads.Get(ctx, id)
			switch {
			case err == nil:
				src = transactions.UploadState{State: st}
			case xerrors.Is(err, statestore.ErrNoState):
				log.Infow("no saved progress, asking the gateway", "id", id)
				src = transactions.UploadID(id)
			default:
				return err
			}
		} else {
			tags, err := parseTags(cctx.StringSlice("tag"))
			if err != nil {
				return err
			}
			if ct := cctx.String("content-type"); ct != "" {
				tags = append(tags, types.NewTag("Content-Type", ct))
			}

			signer, err := signingSource(cctx, c)
			if err != nil {
				return err
			}
			tx, err := c.CreateTransaction(ctx, transactions.CreateAttributes{Data: data, Tags: tags}, signer)
			if err != nil {
				return err
			}
			if err := c.Transactions.Sign(ctx, tx, signer, sigs.SignOptions{}); err != nil {
				return err
			}
			src = transactions.UploadTx{Tx: tx}
		}

		bar := pb.New(0)
		bar.SetWriter(cctx.App.ErrWriter)
		if !cctx.Bool("quiet") {
			bar.Start()
		}

		var id string
		for u, err := range c.Transactions.Upload(ctx, src, data) {
			if u != nil {
				id = u.Transaction().ID
				if serr := c.Uploads.Save(ctx, u); serr != nil {
					log.Warnw("saving upload progress", "id", id, "err", serr)
				}
				bar.SetTotal(int64(u.TotalChunks()))
				bar.SetCurrent(int64(min(u.UploadedChunks(), u.TotalChunks())))
			}
			if err != nil {
				bar.Finish()
				if id != "" {
					return xerrors.Errorf("upload of %s stopped, resume with --resume %s: %w", id, id, err)
				}
				return err
			}
		}
		bar.Finish()

		if id != "" {
			if err := c.Uploads.Delete(ctx, id); err != nil && !xerrors.Is(err, statestore.ErrNoState) {
				log.Warnw("clearing upload progress", "id", id, "err", err)
			}
		}

		fmt.Fprintf(cctx.App.Writer, "%s (%s)\n", id, humanize.IBytes(uint64(len(data))))
		return nil
	},
}

var uploadsCmd = &cli.Command{
	Name:  "uploads",
	Usage: "List interrupted uploads saved in the repo",
	Action: func(cctx *cli.Context) error {
		c, closer, err := GetClient(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		saved, err := c.Uploads.List(ctx)
		if err != nil {
			return err
		}
		for id, st := range saved {
			size := "?"
			if n, err := strconv.ParseUint(st.Transaction.DataSize, 10, 64); err == nil {
				size = humanize.IBytes(n)
			}
			fmt.Fprintf(cctx.App.Writer, "%s\t%s\tposted=%t\tchunk=%d\tlast=%d %s\n",
				id, size, st.TxPosted, st.ChunkIndex, st.LastResponseStatus, st.LastResponseError)
		}
		return nil
	},
}

var dataRootCmd = &cli.Command{
	Name:      "data-root",
	Usage:     "Compute the data root and chunk count of a file",
	ArgsUsage: "<file>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return xerrors.New("expected a file")
		}

		data, err := os.ReadFile(cctx.Args().First())
		if err != nil {
			return err
		}

		// the root a transaction carrying data would sign, empty for no data
		tx := types.NewTransaction()
		if err := tx.PrepareChunks(nil, data); err != nil {
			return err
		}

		fmt.Fprintf(cctx.App.Writer, "%s\t%s\t%d chunks\n",
			tx.DataRoot, humanize.IBytes(uint64(len(data))), len(tx.Chunks.Chunks))
		return nil
	},
}
