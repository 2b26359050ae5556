// Package importer merges an export into the archive without duplicating
// conversations or messages.
package importer

import (
	"context"
	"io"
	"log/slog"

	"chatarchive/internal/export"
	"chatarchive/internal/flatten"
	"chatarchive/internal/models"
)

// Classifier picks a project for a new conversation.
type Classifier interface {
	Classify(ctx context.Context, title, externalID string) (*int64, error)
}

// Engine reconciles parsed conversations against the stored state.
type Engine struct {
	sink          Sink
	classifier    Classifier
	logger        *slog.Logger
	progressEvery int
}

// NewEngine constructs an Engine. A nil classifier leaves every conversation
// unassigned; progressEvery <= 0 disables progress logging.
func NewEngine(sink Sink, classifier Classifier, logger *slog.Logger, progressEvery int) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{sink: sink, classifier: classifier, logger: logger, progressEvery: progressEvery}
}

// Reconcile processes convs in order. Per-record failures are logged and
// counted; they never stop the run. Ids inserted during the run are added to
// existing. Cancelling ctx stops before the next record.
func (e *Engine) Reconcile(ctx context.Context, convs []export.Conversation, existing *ExistingState) RunStats {
	if existing == nil {
		existing = NewExistingState(nil, nil)
	}
	var stats RunStats
	for i := range convs {
		if ctx.Err() != nil {
			e.logger.Warn("reconcile interrupted", "processed", stats.Processed, "remaining", len(convs)-i)
			break
		}
		e.reconcileOne(ctx, &convs[i], existing, &stats)
		stats.Processed++
		if e.progressEvery > 0 && stats.Processed%e.progressEvery == 0 {
			e.logger.Info("import progress",
				"processed", stats.Processed,
				"total", len(convs),
				"new_conversations", stats.NewConversations,
				"new_messages", stats.NewMessages)
		}
	}
	return stats
}

func (e *Engine) reconcileOne(ctx context.Context, conv *export.Conversation, existing *ExistingState, stats *RunStats) {
	if err := conv.Validate(); err != nil {
		stats.Errors++
		e.logger.Warn("skipping conversation without id", "title", conv.TitleOrEmpty(), "error", err)
		return
	}

	if existing.hasConversation(conv.ID) {
		stats.SkippedConversations++
	} else {
		projectID := e.classify(ctx, conv, stats)
		row := toConversation(conv, projectID)
		if err := e.sink.InsertConversation(ctx, row); err != nil {
			stats.Errors++
			e.logger.Warn("insert conversation failed", "conversation_id", conv.ID, "title", conv.TitleOrEmpty(), "error", err)
			return
		}
		existing.Conversations[conv.ID] = struct{}{}
		stats.NewConversations++
		if projectID != nil {
			stats.AutoAssignedProjects++
		}
	}

	for _, msg := range flatten.Flatten(conv.ID, conv.Mapping) {
		if existing.hasMessage(msg.ID) {
			stats.SkippedMessages++
			continue
		}
		if err := e.sink.InsertMessage(ctx, &msg); err != nil {
			stats.Errors++
			e.logger.Warn("insert message failed", "conversation_id", conv.ID, "message_id", msg.ID, "error", err)
			continue
		}
		existing.Messages[msg.ID] = struct{}{}
		stats.NewMessages++
	}
}

func (e *Engine) classify(ctx context.Context, conv *export.Conversation, stats *RunStats) *int64 {
	if e.classifier == nil {
		return nil
	}
	id, err := e.classifier.Classify(ctx, conv.TitleOrEmpty(), conv.ExternalID())
	if err != nil {
		stats.ClassifyFailures++
		e.logger.Warn("classify conversation failed", "conversation_id", conv.ID, "title", conv.TitleOrEmpty(), "error", err)
		return nil
	}
	return id
}

func toConversation(c *export.Conversation, projectID *int64) *models.Conversation {
	row := &models.Conversation{
		ID:               c.ID,
		Title:            c.TitleOrEmpty(),
		CreateTime:       c.CreateTime,
		UpdateTime:       c.UpdateTime,
		DefaultModelSlug: c.DefaultModelSlug,
		ProjectID:        projectID,
	}
	if row.Title == "" {
		row.Title = models.UntitledConversation
	}
	if c.IsArchived != nil {
		row.IsArchived = *c.IsArchived
	}
	if c.IsStarred != nil {
		row.IsStarred = *c.IsStarred
	}
	if ext := c.ExternalID(); ext != "" {
		row.GizmoID = &ext
	}
	return row
}
