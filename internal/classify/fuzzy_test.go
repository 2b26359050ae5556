package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatarchive/internal/models"
)

func TestTokensDropShortWords(t *testing.T) {
	assert.Equal(t, map[string]struct{}{"wordpress": {}, "plugin": {}, "php": {}}, Tokens("A WordPress plugin, in PHP!"))
	assert.Empty(t, Tokens("a b to"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 0.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("Docker compose", "compose docker"))
	assert.InDelta(t, 1.0/3.0, Similarity("docker compose", "docker swarm"), 1e-9)
	assert.Equal(t, 0.0, Similarity("docker", "kubernetes"))
}

func TestMatchProjectsGreedy(t *testing.T) {
	desc := "Creative coding with processing sketches"
	projects := []models.Project{
		{ID: 1, Name: "Docker Compose"},
		{ID: 2, Name: "Art", Description: &desc},
		{ID: 3, Name: "Docker Compose Again"},
	}
	groups := []Group{
		{ExternalID: "g-docker", Titles: []string{"docker compose", "compose volumes"}},
		{ExternalID: "g-docker-2", Titles: []string{"docker compose"}},
		{ExternalID: "g-art", Titles: []string{"processing sketches"}},
		{ExternalID: "g-none", Titles: []string{"tax forms"}},
	}

	res := MatchProjects(groups, projects, DefaultThreshold)
	require.Len(t, res.Matches, 3)
	assert.Equal(t, "g-docker", res.Matches[0].ExternalID)
	assert.Equal(t, int64(1), res.Matches[0].ProjectID)
	assert.Equal(t, 2, res.Matches[0].ConversationCount)
	assert.Equal(t, "docker compose, compose volumes", res.Matches[0].SampleTitles)

	// project 1 is consumed, so the second docker group falls to project 3
	assert.Equal(t, int64(3), res.Matches[1].ProjectID)
	assert.Equal(t, int64(2), res.Matches[2].ProjectID, "description similarity counts")

	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, "g-none", res.Unmatched[0].ExternalID)
	assert.Empty(t, res.Remaining)
	assert.Len(t, projects, 3, "input projects are not modified")
}

func TestMatchProjectsThresholdIsExclusive(t *testing.T) {
	// 1 shared word out of 3 distinct is below 0.34
	projects := []models.Project{{ID: 1, Name: "alpha beta"}}
	res := MatchProjects([]Group{{ExternalID: "g", Titles: []string{"alpha gamma"}}}, projects, 0.34)
	assert.Empty(t, res.Matches)
	assert.Len(t, res.Remaining, 1)

	res = MatchProjects([]Group{{ExternalID: "g", Titles: []string{"alpha gamma"}}}, projects, DefaultThreshold)
	assert.Len(t, res.Matches, 1)
}
