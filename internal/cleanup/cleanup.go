// Package cleanup removes transient per-job artifacts from the work
// directory.
package cleanup

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FSCleaner deletes the per-page report directory and the discovered URL
// list for a job key. The aggregated report file is kept as the locally
// persisted copy.
type FSCleaner struct {
	workDir string
	logger  *zap.Logger
}

// New creates a cleaner rooted at workDir.
func New(workDir string, logger *zap.Logger) *FSCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSCleaner{workDir: workDir, logger: logger}
}

// Cleanup removes the job's transient files. Idempotent: paths that are
// already gone are not errors.
func (c *FSCleaner) Cleanup(key string) error {
	paths := []string{
		filepath.Join(c.workDir, "reports", key),
		filepath.Join(c.workDir, fmt.Sprintf("urls_%s.txt", key)),
	}
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
		c.logger.Debug("removed transient artifact", zap.String("path", p))
	}
	return nil
}
