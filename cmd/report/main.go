// Package main lists, renders and verifies persisted optimization runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"backtest-lab/internal/config"
	"backtest-lab/internal/logging"
	"backtest-lab/internal/orchestrator"
	"backtest-lab/internal/reporting"
)

func openGenerator(ctx context.Context, cmd *cli.Command) (*reporting.Generator, *orchestrator.Stores, *config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, nil, err
	}

	stores, err := orchestrator.OpenStores(ctx, cfg.Storage, nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open stores: %w", err)
	}

	gen := reporting.NewGenerator(stores.Runs, stores.Grid).WithTopN(int(cmd.Int("top")))
	return gen, stores, cfg, nil
}

func listAction(ctx context.Context, cmd *cli.Command) error {
	gen, stores, cfg, err := openGenerator(ctx, cmd)
	if err != nil {
		return err
	}
	defer stores.Close()

	symbol := cmd.String("symbol")
	if symbol == "" {
		symbol = cfg.Data.Symbol
	}

	runs, err := gen.List(ctx, symbol)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTRATEGY\tBEST PARAMS\tPERFORMANCE\tOUT-PERF\tCOMBINATIONS\tFINISHED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%v\t%.6f\t%.6f\t%d\t%s\n",
			r.RunID, r.StrategyType, r.BestParams,
			r.Summary.Performance, r.Summary.OutPerformance, r.Combinations,
			time.UnixMilli(r.FinishedAtMs).UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func showAction(ctx context.Context, cmd *cli.Command) error {
	gen, stores, _, err := openGenerator(ctx, cmd)
	if err != nil {
		return err
	}
	defer stores.Close()

	report, err := gen.Generate(ctx, cmd.String("run-id"))
	if err != nil {
		return err
	}

	var out []byte
	switch cmd.String("format") {
	case "json":
		out, err = json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		out = append(out, '\n')
	case reporting.FormatMarkdown:
		out = []byte(reporting.RenderRunMarkdown(report))
	default:
		return fmt.Errorf("%w: %q", reporting.ErrUnknownFormat, cmd.String("format"))
	}

	if dir := cmd.String("output-dir"); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		ext := ".md"
		if cmd.String("format") == "json" {
			ext = ".json"
		}
		path := filepath.Join(dir, "run_"+report.Run.RunID+ext)
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return err
		}
		log.Printf("Report written to %s", path)
		return nil
	}

	_, err = os.Stdout.Write(out)
	return err
}

func verifyAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	orch, err := orchestrator.Setup(ctx, cfg, logger.Logger, nil)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer orch.Stores().Close()

	out, err := orch.VerifyRun(ctx, cmd.String("run-id"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		fmt.Printf("Run %s %s: stored performance %.6f, replayed %.6f\n",
			out.Run.RunID, verdict(out.Run.Match), out.Run.StoredPerformance, out.Run.ReplayedPerformance)
		for _, d := range out.Run.Divergences {
			fmt.Println(DetailStyle.Render(fmt.Sprintf("  %s: stored %v, replayed %v", d.Field, d.Expected, d.Actual)))
		}
		fmt.Printf("Grid %s: %d evaluations, %d matched, %d divergent\n",
			verdict(out.Grid.Divergent == 0), out.Grid.Total, out.Grid.Matched, out.Grid.Divergent)
		for _, r := range out.Grid.Results {
			for _, d := range r.Divergences {
				fmt.Println(DetailStyle.Render(fmt.Sprintf("  #%d %v %s: stored %v, replayed %v",
					r.Index, r.Params, d.Field, d.Expected, d.Actual)))
			}
		}
	}

	if !out.Run.Match || out.Grid.Divergent > 0 {
		return cli.Exit("verification failed", 1)
	}
	return nil
}

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the YAML configuration (storage section)",
		Value:   "config.yaml",
	}
	topFlag := &cli.IntFlag{
		Name:  "top",
		Usage: "Number of best grid evaluations to include",
		Value: reporting.DefaultTopN,
	}

	cmd := &cli.Command{
		Name:  "report",
		Usage: "Inspect persisted optimization runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List runs of a symbol, most recent first",
				Flags: []cli.Flag{
					configFlag,
					topFlag,
					&cli.StringFlag{
						Name:  "symbol",
						Usage: "Symbol to list, defaults to data.symbol",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print runs as JSON",
					},
				},
				Action: listAction,
			},
			{
				Name:  "show",
				Usage: "Render one run with its best grid evaluations and parameter sensitivity",
				Flags: []cli.Flag{
					configFlag,
					topFlag,
					&cli.StringFlag{
						Name:     "run-id",
						Usage:    "Run to render",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "format",
						Usage: "markdown or json",
						Value: reporting.FormatMarkdown,
					},
					&cli.StringFlag{
						Name:  "output-dir",
						Usage: "Write the report to this directory instead of stdout",
					},
				},
				Action: showAction,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
