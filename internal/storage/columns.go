package storage

import (
	"fmt"
	"regexp"

	"chatarchive/internal/config"
)

// Columns holds the column names that vary between archive schema versions.
// Older imports wrote messages.content/role/created_at; the current layout uses
// content_text/author_role/create_time.
type Columns struct {
	MessageContent  string
	MessageRole     string
	MessageTime     string
	ConversationKey string
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// DefaultColumns matches the current archive layout.
var DefaultColumns = Columns{
	MessageContent:  "content_text",
	MessageRole:     "author_role",
	MessageTime:     "create_time",
	ConversationKey: "id",
}

// ResolveColumns turns the schema section of the config into Columns. Unset
// names fall back to DefaultColumns; every name must be a plain identifier
// because it is interpolated into SQL.
func ResolveColumns(s config.SchemaConfig) (Columns, error) {
	cols := Columns{
		MessageContent:  pick(s.MessageContentColumn, DefaultColumns.MessageContent),
		MessageRole:     pick(s.MessageRoleColumn, DefaultColumns.MessageRole),
		MessageTime:     pick(s.MessageTimeColumn, DefaultColumns.MessageTime),
		ConversationKey: pick(s.ConversationKey, DefaultColumns.ConversationKey),
	}
	for _, name := range []string{cols.MessageContent, cols.MessageRole, cols.MessageTime, cols.ConversationKey} {
		if !identPattern.MatchString(name) {
			return Columns{}, fmt.Errorf("invalid column name %q", name)
		}
	}
	if cols.ConversationKey != "id" && cols.ConversationKey != "conversation_id" {
		return Columns{}, fmt.Errorf("conversation key must be id or conversation_id, got %q", cols.ConversationKey)
	}
	return cols, nil
}

func pick(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
