package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/tradesim-lab/tradesim/internal/backtest"
	"github.com/tradesim-lab/tradesim/internal/config"
	"github.com/tradesim-lab/tradesim/internal/datasource"
	"github.com/tradesim-lab/tradesim/internal/logger"
	"github.com/tradesim-lab/tradesim/internal/persistence"
	"github.com/tradesim-lab/tradesim/internal/strategy"
	"github.com/urfave/cli/v3"
)

// backtestAction loads the YAML run configuration, runs the backtest over
// the configured data file, prints the metrics, and optionally persists the
// result.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	outputPath := cmd.String("output")
	storePath := cmd.String("store")

	content, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := config.ParseBacktestConfig(content)
	if err != nil {
		return err
	}

	appLog, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLog.Sync()

	source, err := datasource.NewDuckDBSource(cfg.Exchange, cfg.Interval, appLog)
	if err != nil {
		return err
	}
	defer source.Close()

	if err := source.Initialize(cfg.DataPath); err != nil {
		return err
	}

	engine := backtest.NewEngine(source, strategy.NewRegistry(nil), appLog)

	var bar *progressbar.ProgressBar

	engine.SetProgress(func(processed, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total))
			bar.Describe(fmt.Sprintf("Backtesting %s", cfg.Strategy))
		}

		_ = bar.Set(processed)
	})

	result, err := engine.Run(ctx, cfg)
	if err != nil {
		return err
	}

	printMetrics(result)

	if outputPath != "" {
		if err := result.WriteYAML(outputPath); err != nil {
			return err
		}

		fmt.Printf("result written to %s\n", outputPath)
	}

	if storePath != "" {
		store, err := persistence.NewSQLiteStore(storePath)
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.SaveResult(ctx, result)
		if err != nil {
			return err
		}

		fmt.Printf("result saved as %s\n", id)
	}

	return nil
}

// schemaAction prints the JSON schema of the backtest configuration.
func schemaAction(_ context.Context, _ *cli.Command) error {
	var cfg config.BacktestConfig

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

// resultsAction lists results stored in a SQLite result store.
func resultsAction(ctx context.Context, cmd *cli.Command) error {
	store, err := persistence.NewSQLiteStore(cmd.String("store"))
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.ListResults(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	for _, summary := range summaries {
		fmt.Printf("%s  %-12s %-10s net=%s  %s\n",
			summary.RunID, summary.StrategyName, summary.Status,
			summary.NetProfit, summary.StartedAt.Format("2006-01-02 15:04"))
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "tradesim",
		Usage: "Deterministic trading simulation",
		Commands: []*cli.Command{
			{
				Name:  "backtest",
				Usage: "Run a backtest from a YAML config",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the backtest YAML config",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the full result to this YAML file",
					},
					&cli.StringFlag{
						Name:  "store",
						Usage: "Save the result into this SQLite database",
					},
				},
				Action: backtestAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the backtest config JSON schema",
				Action: schemaAction,
			},
			{
				Name:  "results",
				Usage: "List stored backtest results",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "store",
						Usage:    "Path to the SQLite result database",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results to list",
						Value: 20,
					},
				},
				Action: resultsAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
