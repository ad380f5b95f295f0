package compliance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compliance-rag/backend/internal/audit"
)

type stubIndex struct {
	chunks []ChunkMetadata
	err    error
}

func (s *stubIndex) ListChunkMetadata(ctx context.Context) ([]ChunkMetadata, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

func (s *stubIndex) CountChunks(ctx context.Context) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return int64(len(s.chunks)), nil
}

func chunksFor(source string, n int) []ChunkMetadata {
	out := make([]ChunkMetadata, n)
	for i := range out {
		out[i] = ChunkMetadata{SourceFile: source, ChunkIndex: i}
	}
	return out
}

func newTestAggregator(t *testing.T, index DocumentIndex) (*Aggregator, *audit.Store) {
	t.Helper()
	store, err := audit.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewAggregator(index, store), store
}

func TestDocumentCoverageBucketing(t *testing.T) {
	index := &stubIndex{}
	index.chunks = append(index.chunks, chunksFor("rbi_kyc_directions.pdf", 3)...)
	index.chunks = append(index.chunks, chunksFor("SEBI_guidelines.pdf", 2)...)
	index.chunks = append(index.chunks, chunksFor("internal_notes.txt", 1)...)

	agg, _ := newTestAggregator(t, index)
	coverage := agg.GetDocumentCoverage(context.Background())

	assert.Empty(t, coverage.Error)
	assert.Equal(t, 3, coverage.TotalDocuments)
	assert.Equal(t, 6, coverage.TotalChunks)
	assert.Equal(t, 3, coverage.CoverageByRegulation["RBI"])
	assert.Equal(t, 2, coverage.CoverageByRegulation["SEBI"])
	assert.Equal(t, 0, coverage.CoverageByRegulation["FATF"])
	assert.Equal(t, 1, coverage.CoverageByRegulation["Other"])
	assert.Len(t, coverage.DocumentList, 3)
}

func TestDocumentCoveragePercentageCapped(t *testing.T) {
	index := &stubIndex{chunks: chunksFor("fatf_recommendations.pdf", 250)}

	agg, _ := newTestAggregator(t, index)
	coverage := agg.GetDocumentCoverage(context.Background())

	assert.Equal(t, 250, coverage.CoverageByRegulation["FATF"])
	// 100 chunks is treated as full coverage.
	assert.Equal(t, 100, coverage.CoveragePercentage["FATF"])
}

func TestDocumentCoverageDegradesOnIndexFailure(t *testing.T) {
	index := &stubIndex{err: errors.New("index unavailable")}

	agg, _ := newTestAggregator(t, index)
	coverage := agg.GetDocumentCoverage(context.Background())

	assert.Equal(t, "index unavailable", coverage.Error)
	assert.Equal(t, 0, coverage.TotalDocuments)
	assert.Empty(t, coverage.CoveragePercentage)
}

func TestQueryStatisticsBoundedSample(t *testing.T) {
	agg, store := newTestAggregator(t, &stubIndex{})

	for i := 0; i < 4; i++ {
		risk := 10
		if i == 0 {
			risk = 80
		}
		_, err := store.LogQuery("u", fmt.Sprintf("q%d", i), "a", nil, 0.8, risk, nil)
		require.NoError(t, err)
	}

	stats := agg.GetQueryStatistics(context.Background())

	assert.Equal(t, 4, stats.TotalQueries)
	assert.Equal(t, 4, stats.RecentQueryCount)
	assert.InDelta(t, 0.8, stats.AvgConfidenceScore, 0.001)
	assert.InDelta(t, 27.5, stats.AvgRiskScore, 0.001)
	assert.Equal(t, 1, stats.HighRiskQueries)
}

func TestComplianceScoreExcellentScenario(t *testing.T) {
	// Coverage averaging 80% across categories: 80 chunks per category.
	index := &stubIndex{}
	for _, source := range []string{"rbi.pdf", "sebi.pdf", "fatf.pdf", "gdpr.pdf", "misc.pdf"} {
		index.chunks = append(index.chunks, chunksFor(source, 80)...)
	}

	agg, store := newTestAggregator(t, index)
	for i := 0; i < 10; i++ {
		_, err := store.LogQuery("u", fmt.Sprintf("q%d", i), "a", nil, 0.9, 20, nil)
		require.NoError(t, err)
	}

	score := agg.GetComplianceScore(context.Background())

	// 0.4*80 + 0.3*90 + 0.3*80 = 32 + 27 + 24 = 83
	assert.Equal(t, 83.0, score.OverallScore)
	assert.Equal(t, "EXCELLENT", score.Status)
	assert.Equal(t, "green", score.StatusColor)
	assert.Equal(t, 32.0, score.Components.DocumentCoverage)
	assert.Equal(t, 27.0, score.Components.QueryConfidence)
	assert.Equal(t, 24.0, score.Components.RiskManagement)
}

func TestComplianceScoreOmitsMissingComponents(t *testing.T) {
	// Index down, queries present: only the two query-driven components
	// contribute; the sum is not renormalized.
	index := &stubIndex{err: errors.New("index unavailable")}

	agg, store := newTestAggregator(t, index)
	for i := 0; i < 5; i++ {
		_, err := store.LogQuery("u", fmt.Sprintf("q%d", i), "a", nil, 0.9, 20, nil)
		require.NoError(t, err)
	}

	score := agg.GetComplianceScore(context.Background())

	assert.Equal(t, 51.0, score.OverallScore)
	assert.Equal(t, "FAIR", score.Status)
	assert.Equal(t, 0.0, score.Components.DocumentCoverage)
}

func TestComplianceScoreNoQueries(t *testing.T) {
	index := &stubIndex{chunks: chunksFor("rbi.pdf", 50)}

	agg, _ := newTestAggregator(t, index)
	score := agg.GetComplianceScore(context.Background())

	// Only coverage contributes: avg percentage 10 across 5 categories.
	assert.Equal(t, 4.0, score.OverallScore)
	assert.Equal(t, "NEEDS IMPROVEMENT", score.Status)
	assert.Equal(t, 0.0, score.Components.QueryConfidence)
	assert.Equal(t, 0.0, score.Components.RiskManagement)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"RBI_master_direction.pdf", "RBI"},
		{"guidelines-sebi-2024.pdf", "SEBI"},
		{"FATF recommendations.docx", "FATF"},
		{"gdpr_article_30.txt", "GDPR"},
		{"employee_handbook.pdf", "Other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.source), tt.source)
	}
}

func TestDashboardSummary(t *testing.T) {
	index := &stubIndex{chunks: chunksFor("rbi.pdf", 5)}
	agg, store := newTestAggregator(t, index)

	_, err := store.LogAlert("HIGH_RISK_QUERY", "HIGH", "suspicious query detected", "", "u", nil)
	require.NoError(t, err)

	summary := agg.DashboardSummary(context.Background())
	assert.Contains(t, summary, "Compliance Dashboard Summary")
	assert.Contains(t, summary, "RBI: 5%")
	assert.Contains(t, summary, "[HIGH] suspicious query detected")
}
