package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Conversation is one record of the conversations manifest.
type Conversation struct {
	ID                     string   `json:"id" validate:"required"`
	Title                  *string  `json:"title"`
	CreateTime             *float64 `json:"create_time"`
	UpdateTime             *float64 `json:"update_time"`
	IsArchived             *bool    `json:"is_archived"`
	IsStarred              *bool    `json:"is_starred"`
	DefaultModelSlug       *string  `json:"default_model_slug"`
	GizmoID                *string  `json:"gizmo_id"`
	ConversationTemplateID *string  `json:"conversation_template_id"`
	Mapping                Mapping  `json:"mapping"`
}

// TitleOrEmpty returns the title, or "" when the export has none.
func (c *Conversation) TitleOrEmpty() string {
	if c.Title == nil {
		return ""
	}
	return *c.Title
}

// ExternalID returns the custom GPT identifier the conversation was held with,
// if any. gizmo_id wins over conversation_template_id.
func (c *Conversation) ExternalID() string {
	for _, v := range []*string{c.GizmoID, c.ConversationTemplateID} {
		if v != nil && strings.TrimSpace(*v) != "" {
			return strings.TrimSpace(*v)
		}
	}
	return ""
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks the fields the importer relies on.
func (c *Conversation) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid conversation: %w", err)
	}
	return nil
}

// Node is one entry of a conversation's message mapping.
type Node struct {
	ID       string   `json:"id"`
	Message  *Message `json:"message"`
	Parent   *string  `json:"parent"`
	Children []string `json:"children"`
}

// Message is the payload of a mapping node.
type Message struct {
	ID         string   `json:"id"`
	Author     *Author  `json:"author"`
	Content    *Content `json:"content"`
	CreateTime *float64 `json:"create_time"`
	Status     *string  `json:"status"`
	EndTurn    *bool    `json:"end_turn"`
	Weight     *float64 `json:"weight"`
	Channel    *string  `json:"channel"`
	Recipient  *string  `json:"recipient"`
}

type Author struct {
	Role string  `json:"role"`
	Name *string `json:"name"`
}

// Content holds the fragments of a message. Parts keeps every fragment raw:
// text fragments are JSON strings, everything else (image pointers, tool
// payloads) is an object that the flattener ignores.
type Content struct {
	ContentType string
	Parts       []json.RawMessage
	Text        *string
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var raw struct {
		ContentType string          `json:"content_type"`
		Parts       json.RawMessage `json:"parts"`
		Text        json.RawMessage `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ContentType = raw.ContentType
	c.Parts = nil
	c.Text = nil

	parts := bytes.TrimSpace(raw.Parts)
	switch {
	case len(parts) == 0 || bytes.Equal(parts, []byte("null")):
	case parts[0] == '[':
		if err := json.Unmarshal(parts, &c.Parts); err != nil {
			return fmt.Errorf("decode content parts: %w", err)
		}
	default:
		c.Parts = []json.RawMessage{parts}
	}

	var text string
	if len(raw.Text) > 0 && json.Unmarshal(raw.Text, &text) == nil {
		c.Text = &text
	}
	return nil
}

func (c Content) MarshalJSON() ([]byte, error) {
	out := struct {
		ContentType string            `json:"content_type"`
		Parts       []json.RawMessage `json:"parts,omitempty"`
		Text        *string           `json:"text,omitempty"`
	}{c.ContentType, c.Parts, c.Text}
	return json.Marshal(out)
}
