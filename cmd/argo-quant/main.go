package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/rxtech-lab/argo-quant/internal/version"
	"github.com/urfave/cli/v3"
)

var dateConfig = cli.TimestampConfig{
	Layouts: []string{"2006-01-02", time.RFC3339},
}

func newCommand() *cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the application config `FILE`",
		Sources: cli.EnvVars("ARGO_QUANT_CONFIG"),
	}

	rangeFlags := []cli.Flag{
		&cli.TimestampFlag{
			Name:    "start",
			Aliases: []string{"s"},
			Usage:   "First bar in `YYYY-MM-DD` format (or RFC3339)",
			Config:  dateConfig,
		},
		&cli.TimestampFlag{
			Name:    "end",
			Aliases: []string{"e"},
			Usage:   "Last bar in `YYYY-MM-DD` format (or RFC3339)",
			Config:  dateConfig,
		},
	}

	return &cli.Command{
		Name:    "argo-quant",
		Usage:   "Backtest trading strategies and manage the strategy registry",
		Version: version.GetVersion(),
		Flags:   []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:  "backtest",
				Usage: "Backtest one strategy on one symbol and write a report",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "strategy",
						Usage:    "Strategy type (ma, rsi, ml, chanlun)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "symbol",
						Usage:    "Symbol to backtest",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "param",
						Aliases: []string{"p"},
						Usage:   "Strategy parameter as `NAME=VALUE`, repeatable",
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "Model file for the ml strategy (.json or .onnx)",
					},
				}, rangeFlags...),
				Action: backtestAction,
			},
			{
				Name:  "compare",
				Usage: "Backtest every strategy type with default parameters on one symbol",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "symbol",
						Usage:    "Symbol to backtest",
						Required: true,
					},
				}, rangeFlags...),
				Action: compareAction,
			},
			{
				Name:  "update",
				Usage: "Refresh the registry's backtest results for the given symbols",
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:  "symbol",
						Usage: "Symbols to update, defaults to the configured symbols",
					},
				}, rangeFlags...),
				Action: updateAction,
			},
			{
				Name:  "strategies",
				Usage: "List registered strategies or change their enabled flag",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "action",
						Usage: "One of enable_all, disable_all, toggle. Lists when empty",
					},
					&cli.StringFlag{
						Name:  "key",
						Usage: "Strategy key such as BTCUSDT_ma, for toggle",
					},
					&cli.StringFlag{
						Name:  "enabled",
						Usage: "true or false to set the flag on toggle instead of flipping it",
					},
				},
				Action: strategiesAction,
			},
			{
				Name:   "paper",
				Usage:  "Replay the enabled strategies bar by bar and print the portfolio and its risk",
				Flags:  rangeFlags,
				Action: paperAction,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema of the engine config or of a strategy's parameters",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Strategy type; prints the engine config schema when empty",
					},
				},
				Action: schemaAction,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

