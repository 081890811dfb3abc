package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vellankikoti/tool-versions/internal/config"
	"github.com/vellankikoti/tool-versions/internal/document"
	"github.com/vellankikoti/tool-versions/internal/sources"
	"github.com/vellankikoti/tool-versions/internal/sources/mocks"
	"github.com/vellankikoti/tool-versions/internal/status"
)

func TestPipeline_Execute_WritesDocument(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	adapter := mocks.NewMockAdapter(ctrl)
	adapter.EXPECT().FetchLatest(gomock.Any(), "org/a").Return(&sources.VersionInfo{
		Version:     "v1.2.0",
		ReleaseDate: releaseDate(),
		URL:         "https://x/releases/v1.2.0",
	}, nil)

	path := filepath.Join(t.TempDir(), "static", "data", "tool-versions.json")
	pipeline := NewPipeline(newRegistry(adapter), document.NewFilePersister(path))

	result, err := pipeline.Execute(context.Background(), []config.ToolSource{
		ghTool("toolA", "org/a"),
		{ID: "toolB", Locator: "https://example.com", Type: config.SourceTypeWebpage},
	})
	require.NoError(t, err)
	assert.Equal(t, Counts{Fetched: 1, Skipped: 1}, result.Counts())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{
  "toolA": {
    "version": "v1.2.0",
    "date": "2024-01-01T00:00:00Z",
    "url": "https://x/releases/v1.2.0"
  }
}
`, string(data))
}

func TestPipeline_Execute_KeepsPreviousFromDisk(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tool-versions.json")
	persister := document.NewFilePersister(path)
	require.NoError(t, persister.Save(context.Background(), document.VersionDocument{
		"toolA": {Version: "v1.0.0"},
		"gone":  {Version: "v0.1.0"},
	}))

	ctrl := gomock.NewController(t)
	adapter := mocks.NewMockAdapter(ctrl)
	adapter.EXPECT().FetchLatest(gomock.Any(), "org/a").
		Return(nil, fmt.Errorf("%w: HTTP 503", sources.ErrSourceUnavailable))

	result, err := NewPipeline(newRegistry(adapter), persister).
		Execute(context.Background(), []config.ToolSource{ghTool("toolA", "org/a")})
	require.NoError(t, err)
	assert.Equal(t, status.PhaseRetained, result.Outcomes[0].Status)

	doc, err := persister.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"toolA"}, doc.IDs())
	assert.Equal(t, "v1.0.0", doc["toolA"].Version)
}

func TestPipeline_Execute_IgnoresInvalidPrevious(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tool-versions.json")
	require.NoError(t, os.WriteFile(path, []byte(`[1, 2, 3]`), 0600))

	ctrl := gomock.NewController(t)
	adapter := mocks.NewMockAdapter(ctrl)
	adapter.EXPECT().FetchLatest(gomock.Any(), "org/a").Return(&sources.VersionInfo{Version: "v2"}, nil)

	_, err := NewPipeline(newRegistry(adapter), document.NewFilePersister(path)).
		Execute(context.Background(), []config.ToolSource{ghTool("toolA", "org/a")})
	require.NoError(t, err)

	doc, err := document.NewFilePersister(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", doc["toolA"].Version)
}

func TestPipeline_Execute_PersistenceFailure(t *testing.T) {
	t.Parallel()

	// A regular file where the output directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	ctrl := gomock.NewController(t)
	adapter := mocks.NewMockAdapter(ctrl)
	adapter.EXPECT().FetchLatest(gomock.Any(), "org/a").Return(&sources.VersionInfo{Version: "v1"}, nil)

	statusPath := filepath.Join(t.TempDir(), "status.json")
	ctx, notices := captureNotices(context.Background())
	result, err := NewPipeline(newRegistry(adapter),
		document.NewFilePersister(filepath.Join(blocker, "tool-versions.json")),
		WithStatusStore(status.NewFileStatusPersistence(statusPath)),
	).Execute(ctx, []config.ToolSource{ghTool("toolA", "org/a")})

	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrPersistence)

	var saveFailure string
	for _, line := range *notices {
		if strings.Contains(line, `"msg"="Failed to save version document"`) {
			saveFailure = line
		}
	}
	require.NotEmpty(t, saveFailure, "the persistence failure is logged")
	assert.Contains(t, saveFailure, `"error"="failed to persist version document`)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Counts().Fetched)

	_, statErr := os.Stat(statusPath)
	assert.True(t, os.IsNotExist(statErr), "status is not recorded when the document was not written")
}

func TestPipeline_Execute_RecordsStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := status.NewFileStatusPersistence(filepath.Join(dir, "status.json"))

	ctrl := gomock.NewController(t)
	adapter := mocks.NewMockAdapter(ctrl)
	adapter.EXPECT().FetchLatest(gomock.Any(), "org/a").Return(&sources.VersionInfo{Version: "v1"}, nil).Times(2)
	adapter.EXPECT().FetchLatest(gomock.Any(), "org/b").Return(nil, sources.ErrMalformedResponse).Times(2)

	pipeline := NewPipeline(newRegistry(adapter),
		document.NewFilePersister(filepath.Join(dir, "tool-versions.json")),
		WithStatusStore(store),
		WithClock(func() time.Time { return now }),
		WithOrchestratorOptions(WithFailurePolicy(config.FailurePolicyDrop)),
	)
	tools := []config.ToolSource{ghTool("a", "org/a"), ghTool("b", "org/b")}

	for range 2 {
		_, err := pipeline.Execute(context.Background(), tools)
		require.NoError(t, err)
	}

	statuses, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, statuses, "a")
	require.Contains(t, statuses, "b")

	assert.Equal(t, status.PhaseFetched, statuses["a"].Phase)
	assert.Equal(t, "v1", statuses["a"].Version)
	require.NotNil(t, statuses["a"].LastSuccess)
	assert.True(t, now.Equal(*statuses["a"].LastSuccess))

	assert.Equal(t, status.PhaseFailed, statuses["b"].Phase)
	assert.Equal(t, 2, statuses["b"].AttemptCount)
	assert.Contains(t, statuses["b"].Message, "malformed response")
}
