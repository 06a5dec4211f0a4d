package audit

import (
	"context"
	"time"

	"github.com/planetbun/scanova/internal/report"
)

// Crawler lists the page paths of a target, bounded by maxPages. Failure
// surfaces as a single error; the orchestrator treats it as fatal for the job.
type Crawler interface {
	Discover(ctx context.Context, target string, maxPages int) ([]string, error)
}

// Runner executes one audit for one URL. A nil error means the raw document
// was produced and parsed; any other outcome is a per-page failure that must
// not affect sibling runners.
type Runner interface {
	Audit(ctx context.Context, pageURL, key string) (report.PageReport, error)
}

// BlobStore uploads the finished report; best-effort from the orchestrator's
// point of view.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Notifier delivers job notifications. Fire-and-forget; errors are logged by
// the caller, never fatal.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Cleaner removes transient per-job artifacts. Idempotent; a missing path is
// not an error.
type Cleaner interface {
	Cleanup(key string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
