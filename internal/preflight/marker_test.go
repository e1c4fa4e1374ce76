package preflight

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsCheck_TrueWithoutMarker(t *testing.T) {
	assert.True(t, NeedsCheck(t.TempDir()))
}

func TestNeedsCheck_FalseAfterMarkPassed(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, MarkPassed(dataDir))

	assert.False(t, NeedsCheck(dataDir))
}

func TestMarkPassed_WritesTimestampedMarker(t *testing.T) {
	dataDir := t.TempDir()

	require.NoError(t, MarkPassed(dataDir))

	content, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	require.NoError(t, err)
	_, err = time.Parse(time.RFC3339, string(content))
	assert.NoError(t, err)
}

func TestMarkPassed_CreatesMissingDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "project", ".facet")

	require.NoError(t, MarkPassed(dataDir))

	assert.DirExists(t, dataDir)
	assert.FileExists(t, filepath.Join(dataDir, MarkerFile))
}

func TestClearMarker_RemovesMarker(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, MarkPassed(dataDir))

	require.NoError(t, ClearMarker(dataDir))

	assert.NoFileExists(t, filepath.Join(dataDir, MarkerFile))
	assert.True(t, NeedsCheck(dataDir))
}

func TestClearMarker_MissingMarkerIsNoop(t *testing.T) {
	assert.NoError(t, ClearMarker(t.TempDir()))
}

func TestMarkerAge_FreshMarkerIsYoung(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, MarkPassed(dataDir))

	assert.Less(t, MarkerAge(dataDir), time.Minute)
}

func TestMarkerAge_ZeroWithoutMarker(t *testing.T) {
	assert.Zero(t, MarkerAge(t.TempDir()))
}
