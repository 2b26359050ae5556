package importer

import (
	"context"
	"fmt"
)

// StateSource provides the ids already stored.
type StateSource interface {
	ExistingConversationIDs(ctx context.Context) ([]string, error)
	ExistingMessageIDs(ctx context.Context) ([]string, error)
}

// ExistingState is the snapshot of stored ids taken once at the start of a
// run. Reconcile adds the ids it inserts so later records in the same run see
// them.
type ExistingState struct {
	Conversations map[string]struct{}
	Messages      map[string]struct{}
}

// NewExistingState builds a snapshot from id lists.
func NewExistingState(conversationIDs, messageIDs []string) *ExistingState {
	st := &ExistingState{
		Conversations: make(map[string]struct{}, len(conversationIDs)),
		Messages:      make(map[string]struct{}, len(messageIDs)),
	}
	for _, id := range conversationIDs {
		st.Conversations[id] = struct{}{}
	}
	for _, id := range messageIDs {
		st.Messages[id] = struct{}{}
	}
	return st
}

// LoadExistingState reads both id sets with one query each.
func LoadExistingState(ctx context.Context, src StateSource) (*ExistingState, error) {
	convIDs, err := src.ExistingConversationIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing state: %w", err)
	}
	msgIDs, err := src.ExistingMessageIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing state: %w", err)
	}
	return NewExistingState(convIDs, msgIDs), nil
}

func (s *ExistingState) hasConversation(id string) bool {
	_, ok := s.Conversations[id]
	return ok
}

func (s *ExistingState) hasMessage(id string) bool {
	_, ok := s.Messages[id]
	return ok
}
