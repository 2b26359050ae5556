package mapper

import (
	"context"
	"log/slog"
	"strings"

	"chatarchive/internal/config"
	"chatarchive/internal/models"
)

// SeedStore creates projects.
type SeedStore interface {
	ProjectExists(ctx context.Context, name, externalID string) (bool, error)
	CreateProject(ctx context.Context, p *models.Project) (int64, error)
}

type SeedResult struct {
	Created int
	Skipped int
}

// Seed inserts the known projects that are not stored yet, matching on name
// or custom GPT id.
func Seed(ctx context.Context, store SeedStore, known []config.KnownProject, logger *slog.Logger) (SeedResult, error) {
	var res SeedResult
	for _, kp := range known {
		name := strings.TrimSpace(kp.Name)
		ext := strings.TrimSpace(kp.ChatGPTProjectID)
		exists, err := store.ProjectExists(ctx, name, ext)
		if err != nil {
			return res, err
		}
		if exists {
			res.Skipped++
			continue
		}
		p := &models.Project{Name: name, IsStarred: kp.IsStarred}
		if d := strings.TrimSpace(kp.Description); d != "" {
			p.Description = &d
		}
		if ext != "" {
			p.ChatGPTProjectID = &ext
		}
		id, err := store.CreateProject(ctx, p)
		if err != nil {
			return res, err
		}
		res.Created++
		if logger != nil {
			logger.Info("project created", "id", id, "name", name, "gizmo_id", ext)
		}
	}
	return res, nil
}
