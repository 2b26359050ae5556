package classify

import (
	"regexp"
	"strings"

	"chatarchive/internal/models"
)

// DefaultThreshold is the minimum score a match must exceed.
const DefaultThreshold = 0.3

var nonWord = regexp.MustCompile(`\W+`)

// Tokens returns the set of lower-cased words of text longer than two
// characters.
func Tokens(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range nonWord.Split(strings.ToLower(text), -1) {
		if len(w) > 2 {
			out[w] = struct{}{}
		}
	}
	return out
}

// Similarity is the intersection-over-union of the word sets of a and b.
func Similarity(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}
	inter := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// Group is the conversation titles held with one custom GPT.
type Group struct {
	ExternalID string
	Titles     []string
}

// Text is the text a group is scored on.
func (g Group) Text() string {
	return strings.Join(g.Titles, " | ")
}

type Match struct {
	ExternalID        string  `json:"gizmo_id"`
	ProjectID         int64   `json:"project_id"`
	ProjectName       string  `json:"project_name"`
	Score             float64 `json:"similarity_score"`
	ConversationCount int     `json:"conversation_count"`
	SampleTitles      string  `json:"sample_titles"`
}

type MatchResult struct {
	Matches []Match
	// Unmatched are the groups no remaining project scored above the threshold for.
	Unmatched []Group
	// Remaining are the projects left without a match.
	Remaining []models.Project
}

// MatchProjects assigns each group the remaining project with the highest
// score, where a project's score is the better of its name and description
// similarity. Groups are processed in order and a project is used at most
// once. A group matches only when its best score exceeds threshold; ties go
// to the earlier project.
func MatchProjects(groups []Group, projects []models.Project, threshold float64) MatchResult {
	remaining := make([]models.Project, len(projects))
	copy(remaining, projects)

	var res MatchResult
	for _, g := range groups {
		text := g.Text()
		best, bestScore := -1, 0.0
		for i, p := range remaining {
			score := Similarity(text, p.Name)
			if p.Description != nil {
				if d := Similarity(text, *p.Description); d > score {
					score = d
				}
			}
			if score > bestScore && score > threshold {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			res.Unmatched = append(res.Unmatched, g)
			continue
		}
		p := remaining[best]
		res.Matches = append(res.Matches, Match{
			ExternalID:        g.ExternalID,
			ProjectID:         p.ID,
			ProjectName:       p.Name,
			Score:             bestScore,
			ConversationCount: len(g.Titles),
			SampleTitles:      sampleTitles(g.Titles, 3),
		})
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	res.Remaining = remaining
	return res
}

func sampleTitles(titles []string, n int) string {
	if len(titles) > n {
		titles = titles[:n]
	}
	return strings.Join(titles, ", ")
}
