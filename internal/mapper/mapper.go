// Package mapper correlates custom GPTs found in imported conversations with
// existing projects, and optionally writes the correlation back.
package mapper

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"chatarchive/internal/classify"
	"chatarchive/internal/models"
	"chatarchive/internal/service/archive"
)

// DefaultGeneralProject is the catch-all project for conversations without a gizmo.
const DefaultGeneralProject = "Conversaciones Generales"

// Store is the archive access the mapper needs.
type Store interface {
	GizmoGroups(ctx context.Context) ([]archive.GizmoGroup, error)
	ProjectsWithoutExternalID(ctx context.Context) ([]models.Project, error)
	SetProjectExternalID(ctx context.Context, projectID int64, externalID string) error
	AssignGizmoConversations(ctx context.Context, gizmoID string, projectID int64) (int64, error)
	ProjectIDByExactName(ctx context.Context, name string) (int64, error)
	AssignUnmapped(ctx context.Context, projectID int64) (int64, error)
	Stats(ctx context.Context) (*archive.Stats, error)
}

type Options struct {
	// Apply writes accepted mappings to the store.
	Apply bool
	// AssignGeneral names a project that receives conversations with neither
	// a custom GPT nor a project. Only used with Apply.
	AssignGeneral string
	// Threshold defaults to classify.DefaultThreshold when zero.
	Threshold float64
}

type Summary struct {
	Timestamp     time.Time          `json:"timestamp"`
	Applied       bool               `json:"applied"`
	Threshold     float64            `json:"threshold"`
	Projects      ProjectCounts      `json:"projects"`
	Conversations ConversationCounts `json:"conversations"`
	Mappings      []classify.Match   `json:"mappings"`
	Unmatched     []UnmatchedGizmo   `json:"unmatched"`
	// ApplyErrors counts mappings that could not be written.
	ApplyErrors     int   `json:"apply_errors"`
	GeneralAssigned int64 `json:"general_assigned"`
}

type ProjectCounts struct {
	Total    int64 `json:"total_projects"`
	Mapped   int64 `json:"mapped_projects"`
	Unmapped int64 `json:"unmapped_projects"`
}

type ConversationCounts struct {
	Total      int64 `json:"total_conversations"`
	Assigned   int64 `json:"assigned_conversations"`
	Unassigned int64 `json:"unassigned_conversations"`
}

type UnmatchedGizmo struct {
	GizmoID           string `json:"gizmo_id"`
	ConversationCount int    `json:"conversation_count"`
}

type Mapper struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Mapper{store: store, logger: logger}
}

// Run proposes a project for every custom GPT and, with opts.Apply, records
// the proposals. Failures writing a single mapping are logged and counted.
func (m *Mapper) Run(ctx context.Context, opts Options) (*Summary, error) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = classify.DefaultThreshold
	}

	groups, err := m.store.GizmoGroups(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := m.store.ProjectsWithoutExternalID(ctx)
	if err != nil {
		return nil, err
	}
	m.logger.Info("mapping custom GPTs", "gizmos", len(groups), "candidate_projects", len(projects))

	input := make([]classify.Group, len(groups))
	for i, g := range groups {
		input[i] = classify.Group{ExternalID: g.GizmoID, Titles: g.Titles}
	}
	res := classify.MatchProjects(input, projects, threshold)

	summary := &Summary{
		Applied:   opts.Apply,
		Threshold: threshold,
		Mappings:  res.Matches,
		Unmatched: make([]UnmatchedGizmo, 0, len(res.Unmatched)),
	}
	if summary.Mappings == nil {
		summary.Mappings = []classify.Match{}
	}
	for _, g := range res.Unmatched {
		summary.Unmatched = append(summary.Unmatched, UnmatchedGizmo{GizmoID: g.ExternalID, ConversationCount: len(g.Titles)})
		m.logger.Info("no mapping for gizmo", "gizmo_id", g.ExternalID, "conversations", len(g.Titles))
	}
	for _, match := range res.Matches {
		m.logger.Info("proposed mapping",
			"project", match.ProjectName,
			"gizmo_id", match.ExternalID,
			"conversations", match.ConversationCount,
			"score", fmt.Sprintf("%.1f%%", match.Score*100),
			"samples", match.SampleTitles)
	}

	if opts.Apply {
		summary.ApplyErrors = m.apply(ctx, res.Matches)
		if opts.AssignGeneral != "" {
			n, err := m.assignGeneral(ctx, opts.AssignGeneral)
			if err != nil {
				return nil, err
			}
			summary.GeneralAssigned = n
		}
	}

	stats, err := m.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	summary.Timestamp = time.Now().UTC()
	summary.Projects = ProjectCounts{
		Total:    stats.Projects,
		Mapped:   stats.ProjectsWithGPTID,
		Unmapped: stats.Projects - stats.ProjectsWithGPTID,
	}
	summary.Conversations = ConversationCounts{
		Total:      stats.Conversations,
		Assigned:   stats.AssignedConversations,
		Unassigned: stats.Conversations - stats.AssignedConversations,
	}
	return summary, nil
}

func (m *Mapper) apply(ctx context.Context, matches []classify.Match) int {
	failed := 0
	for _, match := range matches {
		if err := m.store.SetProjectExternalID(ctx, match.ProjectID, match.ExternalID); err != nil {
			failed++
			m.logger.Warn("apply mapping failed", "project", match.ProjectName, "gizmo_id", match.ExternalID, "error", err)
			continue
		}
		n, err := m.store.AssignGizmoConversations(ctx, match.ExternalID, match.ProjectID)
		if err != nil {
			failed++
			m.logger.Warn("assign conversations failed", "project", match.ProjectName, "gizmo_id", match.ExternalID, "error", err)
			continue
		}
		m.logger.Info("mapping applied", "project", match.ProjectName, "conversations", n)
	}
	return failed
}

// assignGeneral returns 0 without error when the project does not exist.
func (m *Mapper) assignGeneral(ctx context.Context, name string) (int64, error) {
	id, err := m.store.ProjectIDByExactName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			m.logger.Warn("general project not found", "name", name)
			return 0, nil
		}
		return 0, err
	}
	n, err := m.store.AssignUnmapped(ctx, id)
	if err != nil {
		return 0, err
	}
	m.logger.Info("unmapped conversations assigned", "project", name, "conversations", n)
	return n, nil
}

// WriteSummary stores s as indented JSON at path.
func WriteSummary(fs afero.Fs, path string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mapping summary: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write mapping summary: %w", err)
	}
	return nil
}
