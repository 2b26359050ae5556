package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"

	"chatarchive/internal/models"
)

// ExistingMessageIDs returns every stored message id.
func (s *Service) ExistingMessageIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := sqlscan.Select(ctx, s.db, &ids, `SELECT id FROM messages`); err != nil {
		return nil, fmt.Errorf("load message ids: %w", err)
	}
	return ids, nil
}

// InsertMessage stores one flattened message.
func (s *Service) InsertMessage(ctx context.Context, m *models.Message) error {
	if m == nil || m.ID == "" {
		return errors.New("message id is required")
	}
	query := fmt.Sprintf(`INSERT INTO messages (
			id, conversation_id, parent_message_id, content_type, %s, %s,
			author_name, %s, status, end_turn, weight, channel, recipient
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.cols.MessageContent, s.cols.MessageRole, s.cols.MessageTime)
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.ConversationID, m.ParentMessageID, m.ContentType, m.Content, string(m.Role),
		m.AuthorName, m.CreateTime, m.Status, m.EndTurn, m.Weight, m.Channel, m.Recipient,
	)
	if err != nil {
		return fmt.Errorf("insert message %s: %w", m.ID, err)
	}
	return nil
}

// ListMessages returns the messages of one conversation in chronological order.
func (s *Service) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := fmt.Sprintf(`SELECT
			id, conversation_id, parent_message_id,
			COALESCE(content_type, 'text') AS content_type,
			%[1]s AS content,
			%[2]s AS role,
			author_name,
			%[3]s AS create_time,
			COALESCE(status, '') AS status,
			end_turn, weight, channel,
			COALESCE(recipient, '') AS recipient
		FROM messages
		WHERE conversation_id = ?
		ORDER BY (%[3]s IS NULL) DESC, %[3]s ASC, id ASC`,
		s.cols.MessageContent, s.cols.MessageRole, s.cols.MessageTime)

	var out []models.Message
	if err := sqlscan.Select(ctx, s.db, &out, query, conversationID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}
