// Package crawler discovers the audit-eligible pages of a target site.
package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Config controls page discovery.
type Config struct {
	// MaxPages caps how many URLs a single discovery run may return.
	MaxPages int
	// MaxDepth bounds how many links deep the collector follows.
	MaxDepth int
	// UserAgent is sent on every discovery request.
	UserAgent string
	// Delay spaces out requests against the target host.
	Delay time.Duration
	// Parallelism bounds concurrent discovery requests per host.
	Parallelism int
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 25
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 2
	}
	if c.UserAgent == "" {
		c.UserAgent = "scanova-audit/1.0"
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	return c
}

// Renderer loads a page in a JavaScript-capable browser and reports the
// anchors found in the rendered DOM. It backs the fallback path for sites
// whose markup is empty until scripts run.
type Renderer interface {
	DiscoverLinks(ctx context.Context, pageURL string) ([]string, error)
}

// CollyCrawler walks a site with colly, collecting same-site page URLs. When
// plain fetching finds nothing beyond the root it retries the root through
// the Renderer.
type CollyCrawler struct {
	cfg      Config
	renderer Renderer
	logger   *zap.Logger
}

// NewCollyCrawler creates a crawler. renderer may be nil to disable the
// headless fallback.
func NewCollyCrawler(cfg Config, renderer Renderer, logger *zap.Logger) *CollyCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollyCrawler{cfg: cfg.withDefaults(), renderer: renderer, logger: logger}
}

// Discover returns up to maxPages absolute URLs for the target, always
// including the root page first. A maxPages of zero or less falls back to the
// configured cap. The error return covers total failure only; pages that
// merely fail to load are skipped.
func (c *CollyCrawler) Discover(ctx context.Context, target string, maxPages int) ([]string, error) {
	if maxPages <= 0 {
		maxPages = c.cfg.MaxPages
	}
	root := "https://" + target + "/"

	set := newLinkSet(target, maxPages)
	set.add(root)

	collector := colly.NewCollector(
		colly.AllowedDomains(target, "www."+target),
		colly.MaxDepth(c.cfg.MaxDepth),
		colly.UserAgent(c.cfg.UserAgent),
		colly.Async(true),
	)
	collector.AllowURLRevisit = false

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.cfg.Parallelism,
		Delay:       c.cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configure collector limits: %w", err)
	}

	var (
		mu       sync.Mutex
		rootErr  error
		rootSeen bool
	)

	collector.OnResponse(func(r *colly.Response) {
		if r.Request.URL.String() == root || r.Request.Depth <= 1 {
			mu.Lock()
			rootSeen = true
			mu.Unlock()
		}
	})
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if !set.add(link) {
			return
		}
		if set.full() {
			return
		}
		if err := e.Request.Visit(link); err != nil {
			c.logger.Debug("skip link", zap.String("url", link), zap.Error(err))
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		c.logger.Warn("discovery request failed",
			zap.String("url", r.Request.URL.String()),
			zap.Int("status_code", r.StatusCode),
			zap.Error(err),
		)
		if r.Request.URL.String() == root {
			mu.Lock()
			rootErr = err
			mu.Unlock()
		}
	})

	if err := collector.Visit(root); err != nil {
		return nil, fmt.Errorf("visit root %s: %w", root, err)
	}
	collector.Wait()

	mu.Lock()
	failed := rootErr != nil && !rootSeen
	mu.Unlock()
	if failed {
		return nil, fmt.Errorf("fetch root %s: %w", root, rootErr)
	}

	urls := set.slice()
	if len(urls) <= 1 && c.renderer != nil {
		urls = c.renderFallback(ctx, root, set)
	}
	return urls, nil
}

// renderFallback re-crawls the root page through headless Chrome so script
// generated anchors become visible.
func (c *CollyCrawler) renderFallback(ctx context.Context, root string, set *linkSet) []string {
	c.logger.Info("no links found in static markup, rendering root page", zap.String("url", root))
	links, err := c.renderer.DiscoverLinks(ctx, root)
	if err != nil {
		c.logger.Warn("headless link discovery failed", zap.String("url", root), zap.Error(err))
		return set.slice()
	}
	for _, link := range links {
		set.add(link)
		if set.full() {
			break
		}
	}
	return set.slice()
}

// linkSet dedupes and bounds discovered URLs while preserving first-seen
// order (root first).
type linkSet struct {
	mu    sync.Mutex
	host  string
	max   int
	seen  map[string]struct{}
	order []string
}

func newLinkSet(host string, max int) *linkSet {
	return &linkSet{host: host, max: max, seen: make(map[string]struct{})}
}

// add normalizes and records the link. It reports whether the link is a new,
// auditable page within the cap.
func (s *linkSet) add(raw string) bool {
	norm, ok := NormalizeLink(s.host, raw)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) >= s.max {
		return false
	}
	if _, dup := s.seen[norm]; dup {
		return false
	}
	s.seen[norm] = struct{}{}
	s.order = append(s.order, norm)
	return true
}

func (s *linkSet) full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order) >= s.max
}

func (s *linkSet) slice() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
