package lighthouse

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStub installs a shell script standing in for the lighthouse binary. It
// writes body to whatever --output-path argument it receives.
func writeStub(t *testing.T, dir, body string, exitCode int) string {
	t.Helper()
	script := `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--output-path" ]; then
    out="$2"
    shift
  fi
  shift
done
if [ -n "$out" ]; then
  printf '%s' '` + body + `' > "$out"
fi
exit ` + strconv.Itoa(exitCode) + `
`
	path := filepath.Join(dir, "lighthouse-stub.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

const stubReport = `{"requestedUrl":"https://example.com/pricing","categories":{"performance":{"id":"performance","title":"Performance","score":0.91}},"audits":{}}`

func TestCLIRunner_AuditParsesAndPersists(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	binDir := t.TempDir()
	runner := NewCLIRunner(Config{
		Binary:  writeStub(t, binDir, stubReport, 0),
		WorkDir: workDir,
	}, nil)

	pr, err := runner.Audit(context.Background(), "https://example.com/pricing", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/pricing", pr.RequestedURL)
	require.NotNil(t, pr.Categories.Performance)
	require.NotNil(t, pr.Categories.Performance.Score)
	assert.InDelta(t, 0.91, *pr.Categories.Performance.Score, 1e-9)

	raw := filepath.Join(workDir, "reports", "example.com", "https___example.com_pricing.json")
	_, statErr := os.Stat(raw)
	assert.NoError(t, statErr, "raw report stays on disk for diagnosis")
}

func TestCLIRunner_NonZeroExitIsAnError(t *testing.T) {
	t.Parallel()

	runner := NewCLIRunner(Config{
		Binary:  writeStub(t, t.TempDir(), stubReport, 1),
		WorkDir: t.TempDir(),
	}, nil)

	_, err := runner.Audit(context.Background(), "https://example.com/", "example.com")
	assert.Error(t, err)
}

func TestCLIRunner_MalformedOutputIsAnError(t *testing.T) {
	t.Parallel()

	runner := NewCLIRunner(Config{
		Binary:  writeStub(t, t.TempDir(), `{"requestedUrl":`, 0),
		WorkDir: t.TempDir(),
	}, nil)

	_, err := runner.Audit(context.Background(), "https://example.com/", "example.com")
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://example.com/a/b?x=1": "https___example.com_a_b_x_1",
		"example.com":                 "example.com",
		"hello world":                 "hello_world",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}
}
