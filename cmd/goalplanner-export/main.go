// Command goalplanner-export writes a one-off snapshot of every goal to the
// configured Google spreadsheet, or prints it with -dry-run.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"goalplanner/internal/cli"
	"goalplanner/internal/config"
	"goalplanner/internal/log"
	"goalplanner/internal/sheets"
	sheetsmem "goalplanner/internal/sheets/memory"
	"goalplanner/internal/store"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "print the rows to stdout instead of writing the spreadsheet")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline for fetching and exporting")
	flag.Parse()

	cli.LoadEnvFile()
	var checks []func(*config.Config) error
	if !*dryRun {
		checks = append(checks, (*config.Config).ValidateExport)
	}
	cfg := cli.LoadAndValidateConfig(checks...)
	logger := cli.SetupLogger(cfg, log.ComponentSheets)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	err := run(ctx, logger, cfg, *dryRun)
	cancel()
	if err != nil {
		logger.Error("Export failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, dryRun bool) error {
	result := cli.OpenBackend(ctx, logger, cfg)
	if result.Cleanup != nil {
		defer func() { _ = result.Cleanup() }()
	}

	var exporter sheets.GoalExporter
	if dryRun {
		exporter = sheetsmem.NewTable(os.Stdout)
	} else {
		exporter = cli.NewSheetExporter(ctx, logger, cfg)
	}

	st := store.New(result.Backend, store.WithLogger(logger))
	if err := st.FetchAll(ctx); err != nil {
		return err
	}

	res, err := exporter.Export(ctx, st.Goals(), st.Today())
	if err != nil {
		return err
	}
	logger.Info("Export complete",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(st.Goals()),
		"range", res.Range,
		"rows", res.Rows)
	return nil
}
