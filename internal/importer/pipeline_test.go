package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatarchive/internal/config"
	"chatarchive/internal/export"
	"chatarchive/internal/models"
)

func writeExport(t *testing.T, fs afero.Fs, name, manifest string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(export.ManifestName)
	require.NoError(t, err)
	_, err = w.Write([]byte(manifest))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, afero.WriteFile(fs, name, buf.Bytes(), 0o644))
}

const pipelineExport = `{"conversations": [
  {"id": "g1", "title": "Something about github", "gizmo_id": "g-writer",
   "mapping": {"n": {"id": "n", "message": {"id": "g1-m", "author": {"role": "user"}, "content": {"content_type": "text", "parts": ["hi"]}}}}},
  "not an object",
  {"id": "p1", "title": "Plain"}
]}`

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	writeExport(t, fs, "/exports/latest.zip", pipelineExport)

	store := newTestStore(t)
	ext := "g-writer"
	writerID, err := store.CreateProject(ctx, &models.Project{Name: "Writer", ChatGPTProjectID: &ext})
	require.NoError(t, err)

	p := NewPipeline(export.NewReader(fs, nil), store, config.DefaultKeywordRules(), nil, 10)
	res, err := p.Run(ctx, "/exports/latest.zip", false)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.DryRun)
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.Equal(t, RunStats{
		Processed:            3,
		NewConversations:     2,
		NewMessages:          1,
		AutoAssignedProjects: 1,
		Errors:               1,
	}, res.Stats)

	g1, err := store.GetConversation(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, g1.ProjectID)
	assert.Equal(t, writerID, *g1.ProjectID, "custom GPT wins over the github keyword")
	require.NotNil(t, g1.GizmoID)
	assert.Equal(t, "g-writer", *g1.GizmoID)

	// a directory resolves to its newest archive
	again, err := p.Run(ctx, "/exports", false)
	require.NoError(t, err)
	assert.Equal(t, "/exports/latest.zip", again.Archive)
	assert.Equal(t, 0, again.Stats.NewConversations)
	assert.Equal(t, 0, again.Stats.NewMessages)
	assert.NotEqual(t, res.RunID, again.RunID)
}

func TestPipelineDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	writeExport(t, fs, "/export.zip", pipelineExport)
	store := newTestStore(t)

	res, err := NewPipeline(export.NewReader(fs, nil), store, nil, nil, 0).Run(ctx, "/export.zip", true)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 2, res.Stats.NewConversations)

	ids, err := store.ExistingConversationIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPipelineFatalErrors(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	p := NewPipeline(export.NewReader(fs, nil), newTestStore(t), nil, nil, 0)

	_, err := p.Run(ctx, "/nowhere.zip", false)
	assert.True(t, errors.Is(err, export.ErrArchiveNotFound))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("README.txt")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, afero.WriteFile(fs, "/empty.zip", buf.Bytes(), 0o644))

	_, err = p.Run(ctx, "/empty.zip", false)
	var missing *export.MissingManifestError
	assert.True(t, errors.As(err, &missing))
}
