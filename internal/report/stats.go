package report

import (
	"math"
	"sort"
)

const (
	failingScoreThreshold = 0.5
	maxFailingAudits      = 5
)

// computeScoreStats summarizes a non-empty score sequence. Standard deviation
// is the population form (divide by count, not count-1).
func computeScoreStats(scores []float64) ScoreStats {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	count := len(sorted)
	var sum float64
	for _, s := range sorted {
		sum += s
	}
	mean := sum / float64(count)

	var sqDev float64
	for _, s := range sorted {
		sqDev += (s - mean) * (s - mean)
	}
	stdDev := math.Sqrt(sqDev / float64(count))

	var median float64
	if count%2 == 0 {
		median = (sorted[count/2-1] + sorted[count/2]) / 2
	} else {
		median = sorted[count/2]
	}

	return ScoreStats{
		Min:    sorted[0],
		Max:    sorted[count-1],
		Median: median,
		StdDev: stdDev,
	}
}

// Aggregate folds many page reports into one comparative report. Best/worst
// page tracking is intentionally strict: a page must score strictly above 0.0
// (or strictly below 1.0) to ever be recorded, and ties keep the first page
// seen. An all-zero performance set therefore reports no best page even when
// pages exist; downstream consumers rely on that.
func Aggregate(pages []PageReport) AggregateReport {
	scores := make(map[string][]float64)
	auditFails := make(map[string]int)
	var auditOrder []string

	var bestURL, worstURL *string
	bestScore, worstScore := 0.0, 1.0

	for i := range pages {
		page := &pages[i]
		cats := []struct {
			name string
			cat  *Category
		}{
			{"performance", page.Categories.Performance},
			{"accessibility", page.Categories.Accessibility},
			{"best_practices", page.Categories.BestPractices},
			{"seo", page.Categories.SEO},
			{"pwa", page.Categories.PWA},
		}
		for _, c := range cats {
			if c.cat == nil || c.cat.Score == nil {
				continue
			}
			score := *c.cat.Score
			scores[c.name] = append(scores[c.name], score)
			if c.name == "performance" {
				if score > bestScore {
					bestScore = score
					url := page.RequestedURL
					bestURL = &url
				}
				if score < worstScore {
					worstScore = score
					url := page.RequestedURL
					worstURL = &url
				}
			}
		}

		// Walk audits in name order so first-seen tracking is deterministic.
		names := make([]string, 0, len(page.Audits))
		for name := range page.Audits {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			a := page.Audits[name]
			if a.Score == nil || *a.Score >= failingScoreThreshold {
				continue
			}
			if _, seen := auditFails[name]; !seen {
				auditOrder = append(auditOrder, name)
			}
			auditFails[name]++
		}
	}

	stat := func(name string) *ScoreStats {
		vals := scores[name]
		if len(vals) == 0 {
			return nil
		}
		s := computeScoreStats(vals)
		return &s
	}

	// Stable sort keeps insertion order for equal failure counts.
	ranked := append([]string(nil), auditOrder...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return auditFails[ranked[i]] > auditFails[ranked[j]]
	})
	if len(ranked) > maxFailingAudits {
		ranked = ranked[:maxFailingAudits]
	}
	if ranked == nil {
		ranked = []string{}
	}

	return AggregateReport{
		CategoryStats: CategoryStats{
			Performance:   stat("performance"),
			Accessibility: stat("accessibility"),
			BestPractices: stat("best_practices"),
			SEO:           stat("seo"),
			PWA:           stat("pwa"),
		},
		BestPerformancePage:  bestURL,
		WorstPerformancePage: worstURL,
		CommonFailingAudits:  ranked,
		Pages:                pages,
	}
}
