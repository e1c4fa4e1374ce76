package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCmd_NoIndexYet(t *testing.T) {
	root := newProject(t, nil)
	chdir(t, root)

	_, err := runCommand(t, "status")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestStatusCmd_ReportsIndexes(t *testing.T) {
	root := newProject(t, map[string]string{"a.txt": "alpha"})
	chdir(t, root)

	_, err := runCommand(t, "scan", root, "--plain", "--skip-check")
	require.NoError(t, err)

	out, err := runCommand(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "Index Status:")
	assert.Contains(t, out, "words")
	assert.Contains(t, out, "stopped")
}

func TestStatusCmd_JSON(t *testing.T) {
	root := newProject(t, nil)
	chdir(t, root)

	_, err := runCommand(t, "scan", root, "--plain", "--skip-check")
	require.NoError(t, err)

	out, err := runCommand(t, "status", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"daemon_status": "stopped"`)
	assert.Contains(t, out, `"indexes"`)
}
