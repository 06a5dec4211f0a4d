// Package pipeline fans page audits out across goroutines and collects the
// successful reports.
package pipeline

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/planetbun/scanova/internal/audit"
	"github.com/planetbun/scanova/internal/joblog"
	"github.com/planetbun/scanova/internal/metrics"
	"github.com/planetbun/scanova/internal/report"
)

// Result summarizes a fan-out run. Reports holds only the pages that audited
// cleanly; failed pages are counted but never abort the job.
type Result struct {
	Reports   []report.PageReport
	Attempted int
	Failed    int
}

// Pipeline runs one audit per URL concurrently. Concurrency is bounded only
// by the crawl page cap upstream.
type Pipeline struct {
	runner audit.Runner
	events joblog.Emitter
	logger *zap.Logger
}

// New constructs a Pipeline.
func New(runner audit.Runner, events joblog.Emitter, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = (*joblog.Hub)(nil)
	}
	return &Pipeline{runner: runner, events: events, logger: logger}
}

// Run audits every URL and joins on all of them before returning. The slice
// order follows completion, not input; aggregation downstream does not depend
// on page order.
func (p *Pipeline) Run(ctx context.Context, key string, urls []string) Result {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		reports []report.PageReport
		failed  int
	)

	for _, pageURL := range urls {
		wg.Add(1)
		go func(pageURL string) {
			defer wg.Done()

			pr, err := p.runner.Audit(ctx, pageURL, key)
			if err != nil {
				p.logger.Warn("page audit failed",
					zap.String("key", key),
					zap.String("url", pageURL),
					zap.Error(err),
				)
				metrics.ObservePage(metrics.OutcomeFailed)
				p.events.Emit(joblog.Event{Key: key, Stage: joblog.StagePageFail, URL: pageURL, Err: err.Error()})

				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			metrics.ObservePage(metrics.OutcomeOK)
			p.events.Emit(joblog.Event{Key: key, Stage: joblog.StagePageDone, URL: pageURL})

			mu.Lock()
			reports = append(reports, pr)
			mu.Unlock()
		}(pageURL)
	}
	wg.Wait()

	return Result{Reports: reports, Attempted: len(urls), Failed: failed}
}
