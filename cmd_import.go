package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	"chatarchive/internal/export"
	"chatarchive/internal/importer"
	"chatarchive/internal/report"
)

// ImportCmd imports one export archive
type ImportCmd struct {
	Archive string `arg:"" type:"path" help:"Export archive (.zip), an extracted conversations.json, or a directory whose newest .zip is imported"`
	DryRun  bool   `help:"Reconcile without writing to the database"`
}

// Run executes the import command
func (c *ImportCmd) Run(kctx *kong.Context, cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(cli)
	if err != nil {
		return err
	}
	defer a.Close()

	reader := export.NewReader(afero.NewOsFs(), a.logger)
	pipeline := importer.NewPipeline(reader, a.archive, a.cfg.Classifier.Rules, a.logger, a.cfg.BasicConfig.ProgressEvery)

	res, err := pipeline.Run(ctx, c.Archive, c.DryRun)
	if res != nil {
		if werr := report.Write(kctx.Stdout, report.FromResult(res)); werr != nil {
			a.logger.Warn("write report failed", "error", werr)
		}
	}
	if err != nil {
		return fmt.Errorf("import %s: %w", c.Archive, err)
	}

	if !c.DryRun {
		c.recordRun(ctx, a, res)
	}
	return nil
}

// recordRun stores the result for the API. Failures only warn.
func (c *ImportCmd) recordRun(ctx context.Context, a *app, res *importer.Result) {
	runs, closeRuns, err := a.runLog(ctx)
	if err != nil {
		a.logger.Warn("run log unavailable", "error", err)
		return
	}
	defer closeRuns()
	if runs == nil {
		return
	}
	if err := runs.Save(ctx, res); err != nil {
		a.logger.Warn("record run failed", "run_id", res.RunID, "error", err)
	}
}
