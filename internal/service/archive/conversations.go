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

const conversationColumns = `id, title, create_time, update_time, is_archived, is_starred, default_model_slug, project_id, gizmo_id`

// ExistingConversationIDs returns every stored conversation key.
func (s *Service) ExistingConversationIDs(ctx context.Context) ([]string, error) {
	var ids []string
	query := fmt.Sprintf(`SELECT %[1]s FROM conversations WHERE %[1]s IS NOT NULL`, s.cols.ConversationKey)
	if err := sqlscan.Select(ctx, s.db, &ids, query); err != nil {
		return nil, fmt.Errorf("load conversation ids: %w", err)
	}
	return ids, nil
}

// InsertConversation stores a new conversation row.
func (s *Service) InsertConversation(ctx context.Context, c *models.Conversation) error {
	if c == nil || c.ID == "" {
		return errors.New("conversation id is required")
	}
	title := c.Title
	if strings.TrimSpace(title) == "" {
		title = models.UntitledConversation
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (
			id, title, conversation_id, create_time, update_time,
			is_archived, is_starred, default_model_slug, project_id, gizmo_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, title, c.ID, c.CreateTime, c.UpdateTime,
		c.IsArchived, c.IsStarred, c.DefaultModelSlug, c.ProjectID, c.GizmoID,
	)
	if err != nil {
		return fmt.Errorf("insert conversation %s: %w", c.ID, err)
	}
	return nil
}

// ConversationFilter narrows ListConversations. Query is a plain LIKE match on
// the title.
type ConversationFilter struct {
	ProjectID *int64
	Query     string
	Limit     int
	Offset    int
}

// ListConversations returns conversations newest first.
func (s *Service) ListConversations(ctx context.Context, f ConversationFilter) ([]models.Conversation, error) {
	var (
		where []string
		args  []any
	)
	if f.ProjectID != nil {
		where = append(where, "project_id = ?")
		args = append(args, *f.ProjectID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "title LIKE ?")
		args = append(args, "%"+q+"%")
	}
	query := `SELECT ` + conversationColumns + ` FROM conversations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY COALESCE(update_time, create_time, 0) DESC, id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var out []models.Conversation
	if err := sqlscan.Select(ctx, s.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// GetConversation returns one conversation or sql.ErrNoRows.
func (s *Service) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := sqlscan.Get(ctx, s.db, &c, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// GizmoGroup is the set of stored conversations held with one custom GPT.
type GizmoGroup struct {
	GizmoID string
	Titles  []string
}

// GizmoGroups groups conversations by gizmo id, largest group first.
func (s *Service) GizmoGroups(ctx context.Context) ([]GizmoGroup, error) {
	var rows []struct {
		GizmoID string `db:"gizmo_id"`
		Title   string `db:"title"`
	}
	err := sqlscan.Select(ctx, s.db, &rows,
		`SELECT gizmo_id, title FROM conversations WHERE gizmo_id IS NOT NULL AND gizmo_id <> '' ORDER BY gizmo_id, id`)
	if err != nil {
		return nil, fmt.Errorf("load gizmo groups: %w", err)
	}
	var groups []GizmoGroup
	for _, r := range rows {
		if n := len(groups); n > 0 && groups[n-1].GizmoID == r.GizmoID {
			groups[n-1].Titles = append(groups[n-1].Titles, r.Title)
			continue
		}
		groups = append(groups, GizmoGroup{GizmoID: r.GizmoID, Titles: []string{r.Title}})
	}
	sortGroups(groups)
	return groups, nil
}

// AssignGizmoConversations sets project_id on every conversation held with gizmoID.
func (s *Service) AssignGizmoConversations(ctx context.Context, gizmoID string, projectID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE conversations SET project_id = ? WHERE gizmo_id = ?`, projectID, gizmoID)
	if err != nil {
		return 0, fmt.Errorf("assign gizmo conversations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// AssignUnmapped puts conversations with neither gizmo nor project into projectID.
func (s *Service) AssignUnmapped(ctx context.Context, projectID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET project_id = ? WHERE (gizmo_id IS NULL OR gizmo_id = '') AND project_id IS NULL`, projectID)
	if err != nil {
		return 0, fmt.Errorf("assign unmapped conversations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
