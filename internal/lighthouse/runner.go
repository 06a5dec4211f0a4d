// Package lighthouse runs the Lighthouse CLI for single pages and parses its
// JSON output.
package lighthouse

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/planetbun/scanova/internal/report"
)

// Config controls how the CLI is invoked.
type Config struct {
	// Binary is the lighthouse executable name or path.
	Binary string
	// WorkDir is the root for raw per-page report files.
	WorkDir string
	// MaxWaitMs bounds how long Lighthouse waits for page load; this is the
	// only per-page time bound.
	MaxWaitMs int
	// ChromeFlags are passed through to the controlled Chrome instance.
	ChromeFlags string
}

// CLIRunner audits one URL per call by spawning the Lighthouse CLI. Runners
// share no mutable state, so one page's failure cannot affect its siblings.
type CLIRunner struct {
	cfg    Config
	logger *zap.Logger
}

// NewCLIRunner constructs a CLIRunner with defaults filled in.
func NewCLIRunner(cfg Config, logger *zap.Logger) *CLIRunner {
	if cfg.Binary == "" {
		cfg.Binary = "lighthouse"
	}
	if cfg.MaxWaitMs <= 0 {
		cfg.MaxWaitMs = 120000
	}
	if cfg.ChromeFlags == "" {
		cfg.ChromeFlags = "--headless --no-sandbox"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CLIRunner{cfg: cfg, logger: logger}
}

// ReportDir returns the directory holding raw page reports for a job key.
func (r *CLIRunner) ReportDir(key string) string {
	return filepath.Join(r.cfg.WorkDir, "reports", key)
}

// Audit runs Lighthouse against pageURL and parses the produced document.
// The raw JSON stays on disk regardless of the aggregation outcome so
// failures remain diagnosable after the fact.
func (r *CLIRunner) Audit(ctx context.Context, pageURL, key string) (report.PageReport, error) {
	dir := r.ReportDir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report.PageReport{}, fmt.Errorf("create report dir: %w", err)
	}
	outPath := filepath.Join(dir, SanitizeFilename(pageURL)+".json")

	cmd := exec.CommandContext(ctx, r.cfg.Binary,
		pageURL,
		"--output=json",
		"--quiet",
		"--no-enable-error-reporting",
		fmt.Sprintf("--chrome-flags=%s", r.cfg.ChromeFlags),
		fmt.Sprintf("--max-wait-for-load=%d", r.cfg.MaxWaitMs),
		"--output-path", outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return report.PageReport{}, fmt.Errorf("lighthouse failed for %s: %w: %s",
			pageURL, err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return report.PageReport{}, fmt.Errorf("read lighthouse output for %s: %w", pageURL, err)
	}
	pr, err := report.Parse(data)
	if err != nil {
		return report.PageReport{}, fmt.Errorf("parse lighthouse output for %s: %w", pageURL, err)
	}
	r.logger.Debug("lighthouse report saved",
		zap.String("key", key),
		zap.String("url", pageURL),
		zap.String("path", outPath),
	)
	return pr, nil
}

// SanitizeFilename maps a URL to a safe file name: anything that is not
// alphanumeric or a dot becomes an underscore.
func SanitizeFilename(url string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.':
			return c
		default:
			return '_'
		}
	}, url)
}
