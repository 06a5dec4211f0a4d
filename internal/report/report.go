// Package report models Lighthouse page reports and their aggregation.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Category carries one category score for one page. A nil score means
// Lighthouse could not compute the category.
type Category struct {
	Score *float64 `json:"score"`
}

// Categories holds the five fixed Lighthouse categories.
type Categories struct {
	Performance   *Category `json:"performance"`
	Accessibility *Category `json:"accessibility"`
	BestPractices *Category `json:"best_practices"`
	SEO           *Category `json:"seo"`
	PWA           *Category `json:"pwa"`
}

// Audit is one individual check result on one page.
type Audit struct {
	Score *float64 `json:"score"`
}

// PageReport is the parsed document produced by one Lighthouse run.
// Immutable once parsed.
type PageReport struct {
	RequestedURL string           `json:"requestedUrl"`
	Categories   Categories       `json:"categories"`
	Audits       map[string]Audit `json:"audits"`
}

// ScoreStats summarizes a non-empty sequence of scores for one category.
type ScoreStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// CategoryStats holds per-category statistics; a nil entry means no page
// produced a score for that category.
type CategoryStats struct {
	Performance   *ScoreStats `json:"performance"`
	Accessibility *ScoreStats `json:"accessibility"`
	BestPractices *ScoreStats `json:"best_practices"`
	SEO           *ScoreStats `json:"seo"`
	PWA           *ScoreStats `json:"pwa"`
}

// AggregateReport is the comparative report built once per job.
type AggregateReport struct {
	CategoryStats        CategoryStats `json:"category_stats"`
	BestPerformancePage  *string       `json:"best_performance_page"`
	WorstPerformancePage *string       `json:"worst_performance_page"`
	CommonFailingAudits  []string      `json:"common_failing_audits"`
	Pages                []PageReport  `json:"lighthouse_reports"`
}

// Parse decodes raw Lighthouse JSON into a PageReport. Malformed JSON or a
// document without a requested URL is a parse failure; the page is dropped,
// never retried.
func Parse(data []byte) (PageReport, error) {
	var pr PageReport
	if err := json.Unmarshal(data, &pr); err != nil {
		return PageReport{}, fmt.Errorf("decode lighthouse report: %w", err)
	}
	if pr.RequestedURL == "" {
		return PageReport{}, errors.New("lighthouse report has no requestedUrl")
	}
	return pr, nil
}
