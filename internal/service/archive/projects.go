package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/sqlscan"

	"chatarchive/internal/models"
)

const projectColumns = `id, name, description, chatgpt_project_id, is_starred`

// FindProjectIDByName returns the lowest project id whose name contains
// fragment, or nil when there is none.
func (s *Service) FindProjectIDByName(ctx context.Context, fragment string) (*int64, error) {
	var id int64
	err := sqlscan.Get(ctx, s.db, &id,
		`SELECT id FROM projects WHERE name LIKE ? ORDER BY id LIMIT 1`, "%"+fragment+"%")
	if err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find project by name: %w", err)
	}
	return &id, nil
}

// ProjectIDByExactName returns the id of the project called name.
func (s *Service) ProjectIDByExactName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := sqlscan.Get(ctx, s.db, &id, `SELECT id FROM projects WHERE name = ? ORDER BY id LIMIT 1`, name)
	if err != nil {
		if sqlscan.NotFound(err) {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("get project by name: %w", err)
	}
	return id, nil
}

// ProjectIDsByExternalID maps chatgpt_project_id to project id.
func (s *Service) ProjectIDsByExternalID(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		ID         int64  `db:"id"`
		ExternalID string `db:"chatgpt_project_id"`
	}
	err := sqlscan.Select(ctx, s.db, &rows,
		`SELECT id, chatgpt_project_id FROM projects WHERE chatgpt_project_id IS NOT NULL AND chatgpt_project_id <> '' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load project external ids: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		if _, dup := out[r.ExternalID]; !dup {
			out[r.ExternalID] = r.ID
		}
	}
	return out, nil
}

// ListProjects returns every project ordered by id.
func (s *Service) ListProjects(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	if err := sqlscan.Select(ctx, s.db, &out, `SELECT `+projectColumns+` FROM projects ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// ProjectsWithoutExternalID returns projects not yet correlated to a custom GPT,
// ordered by name. The fuzzy matcher keeps the first of equally scored
// candidates, so this order decides ties.
func (s *Service) ProjectsWithoutExternalID(ctx context.Context) ([]models.Project, error) {
	var out []models.Project
	err := sqlscan.Select(ctx, s.db, &out,
		`SELECT `+projectColumns+` FROM projects WHERE chatgpt_project_id IS NULL OR chatgpt_project_id = '' ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list unmapped projects: %w", err)
	}
	return out, nil
}

// ProjectExists reports whether a project has the given name or external id.
func (s *Service) ProjectExists(ctx context.Context, name, externalID string) (bool, error) {
	var n int
	err := sqlscan.Get(ctx, s.db, &n,
		`SELECT COUNT(*) FROM projects WHERE name = ? OR (? <> '' AND chatgpt_project_id = ?)`,
		name, externalID, externalID)
	if err != nil {
		return false, fmt.Errorf("check project: %w", err)
	}
	return n > 0, nil
}

// CreateProject inserts p and returns its new id.
func (s *Service) CreateProject(ctx context.Context, p *models.Project) (int64, error) {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return 0, errors.New("project name is required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (name, description, chatgpt_project_id, is_starred) VALUES (?, ?, ?, ?)`,
		p.Name, p.Description, p.ChatGPTProjectID, p.IsStarred)
	if err != nil {
		return 0, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get project id: %w", err)
	}
	p.ID = id
	return id, nil
}

// SetProjectExternalID records the custom GPT a project corresponds to.
func (s *Service) SetProjectExternalID(ctx context.Context, projectID int64, externalID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE projects SET chatgpt_project_id = ? WHERE id = ?`, externalID, projectID)
	if err != nil {
		return fmt.Errorf("update project external id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ProjectSummary is a project with its conversation and message counts.
type ProjectSummary struct {
	models.Project
	ConversationCount int64 `json:"conversation_count" db:"conversation_count"`
	MessageCount      int64 `json:"message_count" db:"message_count"`
}

// ProjectSummaries lists projects by conversation count, largest first.
func (s *Service) ProjectSummaries(ctx context.Context) ([]ProjectSummary, error) {
	var out []ProjectSummary
	err := sqlscan.Select(ctx, s.db, &out, `
		SELECT p.id, p.name, p.description, p.chatgpt_project_id, p.is_starred,
			COUNT(DISTINCT c.id) AS conversation_count,
			COUNT(m.id) AS message_count
		FROM projects p
		LEFT JOIN conversations c ON c.project_id = p.id
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY p.id, p.name, p.description, p.chatgpt_project_id, p.is_starred
		ORDER BY conversation_count DESC, p.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list project summaries: %w", err)
	}
	return out, nil
}
