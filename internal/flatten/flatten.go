// Package flatten turns an export's branching message mapping into the
// ordered rows stored in the messages table.
package flatten

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"chatarchive/internal/export"
	"chatarchive/internal/models"
)

// Flatten returns one message per mapping node that carries a message with an
// id. Rows are ordered by the message create time; a message without one
// takes the time of its nearest timestamped ancestor, and ties keep the order
// in which the export listed the nodes. The result depends only on the input.
func Flatten(conversationID string, mapping export.Mapping) []models.Message {
	keys := mapping.Keys()

	type entry struct {
		msg   models.Message
		at    float64
		index int
	}
	entries := make([]entry, 0, len(keys))
	for i, key := range keys {
		node, _ := mapping.Node(key)
		if node.Message == nil || node.Message.ID == "" {
			continue
		}
		entries = append(entries, entry{
			msg:   toMessage(conversationID, node, mapping),
			at:    effectiveTime(key, mapping),
			index: i,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].at != entries[j].at {
			return entries[i].at < entries[j].at
		}
		return entries[i].index < entries[j].index
	})

	out := make([]models.Message, len(entries))
	for i, e := range entries {
		out[i] = e.msg
	}
	return out
}

// ContentText joins the text fragments of c with a single space. Fragments
// that are not strings contribute nothing.
func ContentText(c *export.Content) string {
	if c == nil {
		return ""
	}
	texts := make([]string, 0, len(c.Parts))
	for _, part := range c.Parts {
		var s string
		if err := json.Unmarshal(part, &s); err != nil {
			continue
		}
		texts = append(texts, s)
	}
	if len(texts) == 0 && c.Text != nil {
		return *c.Text
	}
	return strings.Join(texts, " ")
}

func toMessage(conversationID string, node export.Node, mapping export.Mapping) models.Message {
	src := node.Message
	msg := models.Message{
		ID:             src.ID,
		ConversationID: conversationID,
		ContentType:    models.DefaultContentType,
		Content:        ContentText(src.Content),
		Role:           models.RoleUnknown,
		Status:         models.DefaultStatus,
		Weight:         models.DefaultWeight,
		Recipient:      models.DefaultRecipient,
		Channel:        nonEmpty(src.Channel),
	}
	if src.Content != nil && src.Content.ContentType != "" {
		msg.ContentType = src.Content.ContentType
	}
	if src.Author != nil {
		if role := strings.TrimSpace(src.Author.Role); role != "" {
			msg.Role = models.Role(role)
		}
		msg.AuthorName = nonEmpty(src.Author.Name)
	}
	if src.CreateTime != nil {
		t := unixTime(*src.CreateTime)
		msg.CreateTime = &t
	}
	if src.Status != nil && *src.Status != "" {
		msg.Status = *src.Status
	}
	if src.EndTurn != nil {
		msg.EndTurn = *src.EndTurn
	}
	if src.Weight != nil {
		msg.Weight = *src.Weight
	}
	if src.Recipient != nil && *src.Recipient != "" {
		msg.Recipient = *src.Recipient
	}
	if node.Parent != nil && *node.Parent != "" {
		parentID := *node.Parent
		if parent, ok := mapping.Node(parentID); ok && parent.Message != nil && parent.Message.ID != "" {
			parentID = parent.Message.ID
		}
		msg.ParentMessageID = &parentID
	}
	return msg
}

// effectiveTime walks up the parent chain until it finds a timestamp. A chain
// without one sorts first.
func effectiveTime(key string, mapping export.Mapping) float64 {
	seen := make(map[string]struct{})
	for key != "" {
		if _, loop := seen[key]; loop {
			break
		}
		seen[key] = struct{}{}
		node, ok := mapping.Node(key)
		if !ok {
			break
		}
		if node.Message != nil && node.Message.CreateTime != nil {
			return *node.Message.CreateTime
		}
		if node.Parent == nil {
			break
		}
		key = *node.Parent
	}
	return 0
}

func unixTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
