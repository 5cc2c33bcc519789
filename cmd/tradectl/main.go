package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "tradectl"
	app.Usage = "Inspect and edit the BTC trade journal from the command line"
	app.Version = Version

	app.Commands = []cli.Command{
		listCMD,
		summaryCMD,
		openCMD,
		closeCMD,
		deleteCMD,
		exportCMD,
		importCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var liveFlag = cli.BoolFlag{
	Name:  "live",
	Usage: "fetch the current BTC price first so unrealized PnL is up to date",
}

var (
	listCMD = cli.Command{
		Name:        "list",
		Usage:       "list all trades",
		Action:      listAction,
		Flags:       []cli.Flag{liveFlag},
		Description: `Print every trade, newest first`,
	}
	summaryCMD = cli.Command{
		Name:        "summary",
		Usage:       "show cumulative PnL",
		Action:      summaryAction,
		Flags:       []cli.Flag{liveFlag},
		Description: `Print open/closed counts and cumulative PnL per currency`,
	}
	openCMD = cli.Command{
		Name:   "open",
		Usage:  "record a new trade",
		Action: openAction,
		Flags: []cli.Flag{
			cli.StringFlag{Name: "side", Usage: "Buy or Sell"},
			cli.StringFlag{Name: "price", Usage: "entry price in USD per BTC, the live price when empty"},
			cli.StringFlag{Name: "amount", Usage: "BTC amount"},
			liveFlag,
		},
		Description: `Record a new open trade`,
	}
	closeCMD = cli.Command{
		Name:   "close",
		Usage:  "close all or part of a trade",
		Action: closeAction,
		Flags: []cli.Flag{
			cli.Int64Flag{Name: "id", Usage: "trade id"},
			cli.StringFlag{Name: "price", Usage: "close price in USD per BTC, the live price when empty"},
			cli.StringFlag{Name: "amount", Usage: "BTC amount to close, the whole remaining amount when empty"},
			liveFlag,
		},
		Description: `Close a trade fully or partially and record realized PnL`,
	}
	deleteCMD = cli.Command{
		Name:        "delete",
		Usage:       "delete a trade",
		Action:      deleteAction,
		Flags:       []cli.Flag{cli.Int64Flag{Name: "id", Usage: "trade id"}},
		Description: `Delete a trade regardless of its status`,
	}
	exportCMD = cli.Command{
		Name:        "export",
		Usage:       "export trades as CSV",
		Action:      exportAction,
		Flags:       []cli.Flag{cli.StringFlag{Name: "out", Usage: "output file, stdout when empty"}},
		Description: `Write every trade to a CSV file`,
	}
	importCMD = cli.Command{
		Name:        "import",
		Usage:       "import trades from CSV",
		Action:      importAction,
		Flags:       []cli.Flag{cli.StringFlag{Name: "in", Usage: "CSV file written by export"}},
		Description: `Insert trades from an exported CSV file, skipping ids already stored`,
	}
)
