package cleanup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanup_RemovesTransientFiles(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	reportDir := filepath.Join(workDir, "reports", "example.com")
	require.NoError(t, os.MkdirAll(reportDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(reportDir, "page.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "urls_example.com.txt"), []byte("https://example.com/\n"), 0o644))
	keep := filepath.Join(workDir, "comprehensive_example.com.json")
	require.NoError(t, os.WriteFile(keep, []byte("{}"), 0o644))

	c := New(workDir, nil)
	require.NoError(t, c.Cleanup("example.com"))

	_, err := os.Stat(reportDir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(workDir, "urls_example.com.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(keep)
	assert.NoError(t, err, "aggregated report file is kept")
}

func TestCleanup_MissingPathsAreNotErrors(t *testing.T) {
	t.Parallel()

	c := New(t.TempDir(), nil)
	require.NoError(t, c.Cleanup("never-audited.example.com"))
	require.NoError(t, c.Cleanup("never-audited.example.com"))
}
