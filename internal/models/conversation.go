package models

// Conversation is one chat thread. CreateTime and UpdateTime are unix epoch
// seconds and may be absent.
type Conversation struct {
	ID               string   `json:"id" db:"id"`
	Title            string   `json:"title" db:"title"`
	CreateTime       *float64 `json:"create_time" db:"create_time"`
	UpdateTime       *float64 `json:"update_time" db:"update_time"`
	IsArchived       bool     `json:"is_archived" db:"is_archived"`
	IsStarred        bool     `json:"is_starred" db:"is_starred"`
	DefaultModelSlug *string  `json:"default_model_slug" db:"default_model_slug"`
	ProjectID        *int64   `json:"project_id" db:"project_id"`
	GizmoID          *string  `json:"gizmo_id" db:"gizmo_id"`
}

// UntitledConversation is stored when the export carries no title.
const UntitledConversation = "Sin título"
