package models

import "time"

// Role is the author role recorded for a message. Roles outside the known set
// are stored verbatim.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleUnknown   Role = "unknown"
)

// Message is one flattened message row.
type Message struct {
	ID              string     `json:"id" db:"id"`
	ConversationID  string     `json:"conversation_id" db:"conversation_id"`
	ParentMessageID *string    `json:"parent_message_id" db:"parent_message_id"`
	ContentType     string     `json:"content_type" db:"content_type"`
	Content         string     `json:"content" db:"content"`
	Role            Role       `json:"role" db:"role"`
	AuthorName      *string    `json:"author_name" db:"author_name"`
	CreateTime      *time.Time `json:"create_time" db:"create_time"`
	Status          string     `json:"status" db:"status"`
	EndTurn         bool       `json:"end_turn" db:"end_turn"`
	Weight          float64    `json:"weight" db:"weight"`
	Channel         *string    `json:"channel" db:"channel"`
	Recipient       string     `json:"recipient" db:"recipient"`
}

// Defaults applied when the export omits a bookkeeping field.
const (
	DefaultContentType = "text"
	DefaultStatus      = "finished_successfully"
	DefaultRecipient   = "all"
	DefaultWeight      = 1.0
)
