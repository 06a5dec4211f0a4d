package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 {
	return &v
}

func perfPage(url string, perf float64) PageReport {
	return PageReport{
		RequestedURL: url,
		Categories: Categories{
			Performance: &Category{Score: score(perf)},
		},
	}
}

func TestComputeScoreStats_ExactValues(t *testing.T) {
	t.Parallel()

	stats := computeScoreStats([]float64{0.2, 0.4, 0.6, 0.8})

	assert.InDelta(t, 0.2, stats.Min, 1e-9)
	assert.InDelta(t, 0.8, stats.Max, 1e-9)
	assert.InDelta(t, 0.5, stats.Median, 1e-9)
	assert.InDelta(t, math.Sqrt(0.05), stats.StdDev, 1e-9)
}

func TestComputeScoreStats_OddCountMedian(t *testing.T) {
	t.Parallel()

	stats := computeScoreStats([]float64{0.9, 0.1, 0.5})
	assert.InDelta(t, 0.5, stats.Median, 1e-9)
	assert.InDelta(t, 0.1, stats.Min, 1e-9)
	assert.InDelta(t, 0.9, stats.Max, 1e-9)
}

func TestAggregate_BestPageFirstMaxWinsOnTie(t *testing.T) {
	t.Parallel()

	agg := Aggregate([]PageReport{
		perfPage("https://example.com/a", 0.9),
		perfPage("https://example.com/b", 0.4),
		perfPage("https://example.com/c", 0.9),
	})

	require.NotNil(t, agg.BestPerformancePage)
	assert.Equal(t, "https://example.com/a", *agg.BestPerformancePage)
	require.NotNil(t, agg.WorstPerformancePage)
	assert.Equal(t, "https://example.com/b", *agg.WorstPerformancePage)
}

func TestAggregate_AllZeroPerformanceYieldsNoBestPage(t *testing.T) {
	t.Parallel()

	agg := Aggregate([]PageReport{
		perfPage("https://example.com/a", 0),
		perfPage("https://example.com/b", 0),
	})

	assert.Nil(t, agg.BestPerformancePage)
	require.NotNil(t, agg.WorstPerformancePage)
	assert.Equal(t, "https://example.com/a", *agg.WorstPerformancePage)
}

func TestAggregate_AllOnePerformanceYieldsNoWorstPage(t *testing.T) {
	t.Parallel()

	agg := Aggregate([]PageReport{
		perfPage("https://example.com/a", 1),
		perfPage("https://example.com/b", 1),
	})

	assert.Nil(t, agg.WorstPerformancePage)
	require.NotNil(t, agg.BestPerformancePage)
	assert.Equal(t, "https://example.com/a", *agg.BestPerformancePage)
}

func TestAggregate_FailingAuditRanking(t *testing.T) {
	t.Parallel()

	pages := []PageReport{
		{
			RequestedURL: "https://example.com/1",
			Audits: map[string]Audit{
				"a": {Score: score(0.1)},
				"b": {Score: score(0.6)},
			},
		},
		{
			RequestedURL: "https://example.com/2",
			Audits: map[string]Audit{
				"a": {Score: score(0.2)},
				"c": {Score: score(0.3)},
			},
		},
	}

	agg := Aggregate(pages)
	assert.Equal(t, []string{"a", "c"}, agg.CommonFailingAudits)
}

func TestAggregate_FailingAuditsCappedAtFive(t *testing.T) {
	t.Parallel()

	audits := map[string]Audit{}
	for _, name := range []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7"} {
		audits[name] = Audit{Score: score(0.1)}
	}
	agg := Aggregate([]PageReport{{RequestedURL: "https://example.com", Audits: audits}})

	assert.Len(t, agg.CommonFailingAudits, 5)
	// Single page, all tied: sorted name order is the insertion order.
	assert.Equal(t, []string{"a1", "a2", "a3", "a4", "a5"}, agg.CommonFailingAudits)
}

func TestAggregate_NoPages(t *testing.T) {
	t.Parallel()

	agg := Aggregate(nil)

	assert.Nil(t, agg.CategoryStats.Performance)
	assert.Nil(t, agg.CategoryStats.Accessibility)
	assert.Nil(t, agg.CategoryStats.BestPractices)
	assert.Nil(t, agg.CategoryStats.SEO)
	assert.Nil(t, agg.CategoryStats.PWA)
	assert.Nil(t, agg.BestPerformancePage)
	assert.Nil(t, agg.WorstPerformancePage)
	assert.Empty(t, agg.CommonFailingAudits)
}

func TestAggregate_MissingCategoryStatsAbsent(t *testing.T) {
	t.Parallel()

	agg := Aggregate([]PageReport{
		{
			RequestedURL: "https://example.com",
			Categories: Categories{
				SEO: &Category{Score: score(0.7)},
			},
		},
	})

	require.NotNil(t, agg.CategoryStats.SEO)
	assert.InDelta(t, 0.7, agg.CategoryStats.SEO.Median, 1e-9)
	assert.Nil(t, agg.CategoryStats.Performance)
	assert.Nil(t, agg.CategoryStats.PWA)
}

func TestParse_RejectsMalformedAndEmptyURL(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("{not json"))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"categories":{}}`))
	assert.Error(t, err)

	pr, err := Parse([]byte(`{"requestedUrl":"https://example.com","categories":{"performance":{"score":0.5}},"audits":{"x":{"score":null}}}`))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", pr.RequestedURL)
	require.NotNil(t, pr.Categories.Performance)
	assert.InDelta(t, 0.5, *pr.Categories.Performance.Score, 1e-9)
	require.Contains(t, pr.Audits, "x")
	assert.Nil(t, pr.Audits["x"].Score)
}
