package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chatarchive/internal/classify"
	"chatarchive/internal/config"
	"chatarchive/internal/export"
)

// Store is everything a run needs from the archive.
type Store interface {
	StateSource
	Sink
	classify.ProjectLookup
	ProjectIDsByExternalID(ctx context.Context) (map[string]int64, error)
}

// Result describes a finished run.
type Result struct {
	RunID      string    `json:"run_id"`
	Archive    string    `json:"archive"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Stats      RunStats  `json:"stats"`
}

// Pipeline reads an export and reconciles it against a store.
type Pipeline struct {
	reader        *export.Reader
	store         Store
	rules         []config.KeywordRule
	logger        *slog.Logger
	progressEvery int
}

func NewPipeline(reader *export.Reader, store Store, rules []config.KeywordRule, logger *slog.Logger, progressEvery int) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{reader: reader, store: store, rules: rules, logger: logger, progressEvery: progressEvery}
}

// Run imports the archive at archivePath. Only setup failures are returned
// as errors: a missing archive or manifest, an unparsable manifest, or a
// store that cannot be read. With dryRun set nothing is written.
func (p *Pipeline) Run(ctx context.Context, archivePath string, dryRun bool) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		Archive:   archivePath,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With("run_id", res.RunID)

	manifest, err := p.reader.Read(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	res.Archive = manifest.Archive

	existing, err := LoadExistingState(ctx, p.store)
	if err != nil {
		return nil, err
	}
	byGPT, err := p.store.ProjectIDsByExternalID(ctx)
	if err != nil {
		return nil, fmt.Errorf("load project snapshot: %w", err)
	}
	logger.Info("existing state loaded",
		"conversations", len(existing.Conversations),
		"messages", len(existing.Messages),
		"gpt_projects", len(byGPT))

	var sink Sink = p.store
	if dryRun {
		sink = NewDryRunSink()
		logger.Info("dry run: nothing will be written")
	}
	classifier := classify.NewClassifier(p.rules, p.store, byGPT)
	engine := NewEngine(sink, classifier, logger, p.progressEvery)

	res.Stats = engine.Reconcile(ctx, manifest.Conversations, existing)
	// records the reader could not decode count as processed errors
	res.Stats.Processed += manifest.Malformed
	res.Stats.Errors += manifest.Malformed
	res.FinishedAt = time.Now().UTC()

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("import interrupted: %w", err)
	}
	logger.Info("import finished",
		"processed", res.Stats.Processed,
		"new_conversations", res.Stats.NewConversations,
		"new_messages", res.Stats.NewMessages,
		"errors", res.Stats.Errors,
		"elapsed", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}
