package archive

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// Stats are archive-wide counters.
type Stats struct {
	Projects              int64          `json:"projects" db:"projects"`
	Conversations         int64          `json:"conversations" db:"conversations"`
	Messages              int64          `json:"messages" db:"messages"`
	ProjectsWithGPTID     int64          `json:"projects_with_gpt_id" db:"projects_with_gpt_id"`
	AssignedConversations int64          `json:"assigned_conversations" db:"assigned_conversations"`
	GizmoConversations    int64          `json:"gizmo_conversations" db:"gizmo_conversations"`
	TopProjects           []ProjectCount `json:"top_projects" db:"-"`
}

// ProjectCount pairs a project name with its conversation count.
type ProjectCount struct {
	Name              string `json:"name" db:"name"`
	ConversationCount int64  `json:"conversation_count" db:"conversation_count"`
}

// Stats counts rows across the archive and lists the five largest projects.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := sqlscan.Get(ctx, s.db, &st, `
		SELECT
			(SELECT COUNT(*) FROM projects) AS projects,
			(SELECT COUNT(*) FROM conversations) AS conversations,
			(SELECT COUNT(*) FROM messages) AS messages,
			(SELECT COUNT(*) FROM projects WHERE chatgpt_project_id IS NOT NULL AND chatgpt_project_id <> '') AS projects_with_gpt_id,
			(SELECT COUNT(*) FROM conversations WHERE project_id IS NOT NULL) AS assigned_conversations,
			(SELECT COUNT(*) FROM conversations WHERE gizmo_id IS NOT NULL AND gizmo_id <> '') AS gizmo_conversations`)
	if err != nil {
		return nil, fmt.Errorf("count archive: %w", err)
	}
	err = sqlscan.Select(ctx, s.db, &st.TopProjects, `
		SELECT p.name, COUNT(c.id) AS conversation_count
		FROM projects p
		LEFT JOIN conversations c ON c.project_id = p.id
		GROUP BY p.id, p.name
		ORDER BY conversation_count DESC, p.id ASC
		LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("count top projects: %w", err)
	}
	return &st, nil
}
