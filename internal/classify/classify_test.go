package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatarchive/internal/config"
)

type fakeLookup struct {
	byName map[string]int64
	err    error
	calls  []string
}

func (f *fakeLookup) FindProjectIDByName(_ context.Context, fragment string) (*int64, error) {
	f.calls = append(f.calls, fragment)
	if f.err != nil {
		return nil, f.err
	}
	if id, ok := f.byName[fragment]; ok {
		return &id, nil
	}
	return nil, nil
}

func classifyID(t *testing.T, c *Classifier, title, ext string) *int64 {
	t.Helper()
	id, err := c.Classify(context.Background(), title, ext)
	require.NoError(t, err)
	return id
}

func TestClassifyDefaultTable(t *testing.T) {
	lookup := &fakeLookup{byName: map[string]int64{"wordpress": 12}}
	c := NewClassifier(config.DefaultKeywordRules(), lookup, nil)

	tests := []struct {
		title string
		want  *int64
	}{
		{"GitHub Actions help", ptr(1)},
		{"Fiverr gig on GitHub", ptr(4)},
		{"XUBUNTU drivers", ptr(3)},
		{"Contabo VPS", ptr(9)},
		{"WordPress plugin", ptr(12)},
		{"MySQL indexes", nil},
		{"Recipe ideas", nil},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyID(t, c, tt.title, ""), tt.title)
	}
	assert.Equal(t, []string{"wordpress", "mysql"}, lookup.calls)
}

func TestClassifyLookupMissEndsSearch(t *testing.T) {
	lookup := &fakeLookup{}
	c := NewClassifier(config.DefaultKeywordRules(), lookup, nil)

	// mysql comes before contabo but finds nothing
	assert.Nil(t, classifyID(t, c, "mysql on contabo", ""))
}

func TestClassifyPrefersCustomGPT(t *testing.T) {
	c := NewClassifier(config.DefaultKeywordRules(), &fakeLookup{}, map[string]int64{"g-abc": 42})

	assert.Equal(t, ptr(42), classifyID(t, c, "GitHub", "g-abc"))
	assert.Equal(t, ptr(1), classifyID(t, c, "GitHub", "g-other"))
}

func TestClassifyLookupFailure(t *testing.T) {
	boom := errors.New("db gone")
	c := NewClassifier(config.DefaultKeywordRules(), &fakeLookup{err: boom}, nil)

	id, err := c.Classify(context.Background(), "processing sketch", "")
	assert.Nil(t, id)
	assert.ErrorIs(t, err, boom)

	// explicit ids never touch the lookup
	assert.Equal(t, ptr(1), classifyID(t, c, "github", ""))
}

func TestClassifyIgnoresBlankRules(t *testing.T) {
	c := NewClassifier([]config.KeywordRule{{Keyword: "  "}, {Keyword: "Go", ProjectID: ptr(7)}}, nil, nil)
	assert.Equal(t, ptr(7), classifyID(t, c, "learning go", ""))
	assert.Nil(t, classifyID(t, c, "rust", ""))
}

func ptr(v int64) *int64 { return &v }
