// Package classify assigns conversations to projects.
//
// Classifier is used during import: it checks the custom GPT a conversation
// was held with, then scans the title against an ordered keyword table.
// MatchProjects is the offline variant that correlates custom GPTs with
// existing projects by word overlap.
package classify

import (
	"context"
	"strings"

	"chatarchive/internal/config"
)

// ProjectLookup resolves a keyword to the project whose name contains it.
type ProjectLookup interface {
	FindProjectIDByName(ctx context.Context, fragment string) (*int64, error)
}

// Classifier maps a conversation title to a project id.
type Classifier struct {
	rules  []config.KeywordRule
	lookup ProjectLookup
	byGPT  map[string]int64
}

// NewClassifier builds a classifier over an ordered rule table. byGPT maps a
// custom GPT id to its project and may be nil.
func NewClassifier(rules []config.KeywordRule, lookup ProjectLookup, byGPT map[string]int64) *Classifier {
	normalized := make([]config.KeywordRule, 0, len(rules))
	for _, r := range rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" {
			continue
		}
		normalized = append(normalized, config.KeywordRule{Keyword: kw, ProjectID: r.ProjectID})
	}
	return &Classifier{rules: normalized, lookup: lookup, byGPT: byGPT}
}

// Classify returns the project for a conversation, or nil. The first keyword
// contained in the lower-cased title decides; a name lookup that finds
// nothing still ends the search. An error means the lookup itself failed and
// the caller should treat the conversation as unassigned.
func (c *Classifier) Classify(ctx context.Context, title, externalID string) (*int64, error) {
	if externalID != "" {
		if id, ok := c.byGPT[externalID]; ok {
			return &id, nil
		}
	}

	lower := strings.ToLower(title)
	for _, rule := range c.rules {
		if !strings.Contains(lower, rule.Keyword) {
			continue
		}
		if rule.ProjectID != nil {
			id := *rule.ProjectID
			return &id, nil
		}
		if c.lookup == nil {
			return nil, nil
		}
		return c.lookup.FindProjectIDByName(ctx, rule.Keyword)
	}
	return nil, nil
}
