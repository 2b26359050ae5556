package importer

import (
	"context"
	"fmt"

	"chatarchive/internal/models"
)

// Sink receives the rows a run inserts.
type Sink interface {
	InsertConversation(ctx context.Context, c *models.Conversation) error
	InsertMessage(ctx context.Context, m *models.Message) error
}

// DryRunSink accepts inserts without writing them anywhere. Like the real
// tables it rejects a second row with the same primary key.
type DryRunSink struct {
	conversations map[string]struct{}
	messages      map[string]struct{}
}

func NewDryRunSink() *DryRunSink {
	return &DryRunSink{
		conversations: make(map[string]struct{}),
		messages:      make(map[string]struct{}),
	}
}

func (d *DryRunSink) InsertConversation(_ context.Context, c *models.Conversation) error {
	if _, dup := d.conversations[c.ID]; dup {
		return fmt.Errorf("insert conversation %s: duplicate id", c.ID)
	}
	d.conversations[c.ID] = struct{}{}
	return nil
}

func (d *DryRunSink) InsertMessage(_ context.Context, m *models.Message) error {
	if _, dup := d.messages[m.ID]; dup {
		return fmt.Errorf("insert message %s: duplicate id", m.ID)
	}
	d.messages[m.ID] = struct{}{}
	return nil
}
