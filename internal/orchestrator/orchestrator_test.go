package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planetbun/scanova/internal/audit"
	"github.com/planetbun/scanova/internal/kv/memory"
	"github.com/planetbun/scanova/internal/lease"
	"github.com/planetbun/scanova/internal/metrics"
	notifymem "github.com/planetbun/scanova/internal/notify/memory"
	"github.com/planetbun/scanova/internal/pipeline"
	"github.com/planetbun/scanova/internal/report"
	storagemem "github.com/planetbun/scanova/internal/storage/memory"
)

func init() {
	metrics.Init()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type fakeCrawler struct {
	mu    sync.Mutex
	urls  []string
	err   error
	panic bool
	calls int
}

func (c *fakeCrawler) Discover(context.Context, string, int) ([]string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.panic {
		panic("crawler exploded")
	}
	return c.urls, c.err
}

func (c *fakeCrawler) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeRunner struct{}

func (fakeRunner) Audit(_ context.Context, pageURL, _ string) (report.PageReport, error) {
	score := 0.8
	return report.PageReport{
		RequestedURL: pageURL,
		Categories: report.Categories{
			Performance: &report.Category{Score: &score},
		},
	}, nil
}

type failingBlobStore struct{}

func (failingBlobStore) PutObject(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket unavailable")
}

type recordingCleaner struct {
	mu   sync.Mutex
	keys []string
}

func (c *recordingCleaner) Cleanup(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	return nil
}

type erroringKV struct{}

func (erroringKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store unreachable")
}
func (erroringKV) Set(context.Context, string, string, time.Duration) error {
	return errors.New("store unreachable")
}
func (erroringKV) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("store unreachable")
}
func (erroringKV) Delete(context.Context, string) error {
	return errors.New("store unreachable")
}

type harness struct {
	orch     *Orchestrator
	crawler  *fakeCrawler
	leases   *lease.Manager
	blobs    *storagemem.BlobStore
	notifier *notifymem.Notifier
	cleaner  *recordingCleaner
	clock    *fakeClock
}

func newHarness(t *testing.T, mutate func(*harness)) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStoreWithClock(clock.Now)
	h := &harness{
		crawler:  &fakeCrawler{urls: []string{"https://example.com/", "https://example.com/about"}},
		leases:   lease.NewManager(store, clock, lease.DefaultConfig()),
		blobs:    storagemem.NewBlobStore(),
		notifier: notifymem.NewNotifier(),
		cleaner:  &recordingCleaner{},
		clock:    clock,
	}
	if mutate != nil {
		mutate(h)
	}
	pipe := pipeline.New(fakeRunner{}, nil, nil)
	h.orch = New(h.leases, h.crawler, pipe, h.blobs, h.notifier, h.cleaner, clock, nil,
		Config{MaxPages: 10, WorkDir: t.TempDir()}, nil)
	return h
}

func TestStart_RunsJobAndCachesCompletedResult(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	ack, err := h.orch.Start(ctx, audit.Request{Target: "example.com", Email: "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, audit.StatusStarted, ack.Status)

	h.orch.Wait()

	res, found, err := h.leases.GetFreshResult(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, audit.StatusCompleted, res.Status)
	assert.Equal(t, "memory://reports/example.com.json", res.ResultURL)

	var agg report.AggregateReport
	require.NoError(t, json.Unmarshal(res.Payload, &agg))
	require.Len(t, agg.Pages, 2)
	require.NotNil(t, agg.CategoryStats.Performance)

	// The lease must be gone: a second submission after expiry of freshness
	// would acquire, but a fresh-cache submission is served without work.
	ack2, err := h.orch.Start(ctx, audit.Request{Target: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, audit.StatusCompleted, ack2.Status)
	assert.Equal(t, 1, h.crawler.callCount(), "cached result must not re-crawl")

	// Both notifications went out.
	notes := h.notifier.Sent()
	require.Len(t, notes, 2)
	assert.Contains(t, notes[0].Subject, "started")
	assert.Contains(t, notes[1].Subject, "completed")

	assert.Equal(t, []string{"example.com"}, h.cleaner.keys)
}

func TestStart_SecondCallerSeesProcessing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	// Hold the lease by hand so the job is "in flight".
	acq, err := h.leases.TryAcquire(ctx, "busy.example.com")
	require.NoError(t, err)
	require.True(t, acq.Acquired)

	ack, err := h.orch.Start(ctx, audit.Request{Target: "busy.example.com"})
	require.NoError(t, err)
	assert.Equal(t, audit.StatusProcessing, ack.Status)
	assert.Zero(t, h.crawler.callCount())
}

func TestStart_CrawlFailureEndsInError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(h *harness) {
		h.crawler.err = errors.New("dns lookup failed")
	})
	ctx := context.Background()

	ack, err := h.orch.Start(ctx, audit.Request{Target: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, audit.StatusStarted, ack.Status)

	h.orch.Wait()

	res, found, err := h.leases.GetFreshResult(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, audit.StatusError, res.Status)
	assert.Contains(t, res.Message, "page discovery failed")
	// Error results carry the short expiry window.
	assert.Equal(t, h.clock.Now().Add(24*time.Hour), res.ExpiresAt)

	// The lease is released, so a retry can acquire immediately.
	acq, err := h.leases.TryAcquire(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, acq.Acquired)
}

func TestStart_ZeroPagesIsSparseCompleted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(h *harness) {
		h.crawler.urls = nil
	})
	ctx := context.Background()

	_, err := h.orch.Start(ctx, audit.Request{Target: "example.com"})
	require.NoError(t, err)
	h.orch.Wait()

	res, found, err := h.leases.GetFreshResult(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, audit.StatusCompleted, res.Status)

	var agg report.AggregateReport
	require.NoError(t, json.Unmarshal(res.Payload, &agg))
	assert.Nil(t, agg.CategoryStats.Performance)
	assert.Nil(t, agg.BestPerformancePage)
	assert.Nil(t, agg.WorstPerformancePage)
	assert.Empty(t, agg.CommonFailingAudits)
	assert.Empty(t, agg.Pages)
}

func TestStart_PanicStillReleasesLease(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(h *harness) {
		h.crawler.panic = true
	})
	ctx := context.Background()

	_, err := h.orch.Start(ctx, audit.Request{Target: "example.com"})
	require.NoError(t, err)
	h.orch.Wait()

	res, found, err := h.leases.GetFreshResult(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, audit.StatusError, res.Status)
	assert.Contains(t, res.Message, "internal failure")

	acq, err := h.leases.TryAcquire(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, acq.Acquired, "a panicked job must not leak its lease")
}

func TestStart_InfrastructureFailureFailsClosed(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	leases := lease.NewManager(erroringKV{}, clock, lease.DefaultConfig())
	crawler := &fakeCrawler{}
	orch := New(leases, crawler, pipeline.New(fakeRunner{}, nil, nil),
		storagemem.NewBlobStore(), nil, nil, clock, nil, Config{WorkDir: t.TempDir()}, nil)

	_, err := orch.Start(context.Background(), audit.Request{Target: "example.com"})
	require.Error(t, err)
	assert.Zero(t, crawler.callCount(), "no work may start without dedup")
}

func TestStart_InvalidTargetRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	_, err := h.orch.Start(context.Background(), audit.Request{Target: "not a domain"})
	assert.Error(t, err)
}

func TestStart_PublishFailureStaysCompleted(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStoreWithClock(clock.Now)
	leases := lease.NewManager(store, clock, lease.DefaultConfig())
	crawler := &fakeCrawler{urls: []string{"https://example.com/"}}
	orch := New(leases, crawler, pipeline.New(fakeRunner{}, nil, nil),
		failingBlobStore{}, nil, nil, clock, nil, Config{WorkDir: t.TempDir()}, nil)

	ctx := context.Background()
	_, err := orch.Start(ctx, audit.Request{Target: "example.com"})
	require.NoError(t, err)
	orch.Wait()

	res, found, err := leases.GetFreshResult(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, audit.StatusCompleted, res.Status, "upload is best-effort")
	assert.Empty(t, res.ResultURL)
}

func TestResult_RoundTrip(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	ctx := context.Background()

	_, found, err := h.orch.Result(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = h.orch.Start(ctx, audit.Request{Target: "example.com"})
	require.NoError(t, err)
	h.orch.Wait()

	res, found, err := h.orch.Result(ctx, "https://www.example.com/")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "example.com", res.Key, "target normalization applies on reads too")
}
