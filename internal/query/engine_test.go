package query

import (
	"strings"
	"testing"

	"github.com/compliance-rag/backend/internal/vector/milvus"
)

func TestCalculateConfidenceNoResults(t *testing.T) {
	e := &Engine{}
	if got := e.calculateConfidence(nil, "some answer"); got != 0.3 {
		t.Errorf("expected 0.3 for no results, got %v", got)
	}
}

func TestCalculateConfidenceBounds(t *testing.T) {
	e := &Engine{}
	results := []milvus.SearchResult{
		{ChunkID: "a", Score: 0.0},
		{ChunkID: "b", Score: 0.5},
		{ChunkID: "c", Score: 1.2},
	}
	long := strings.Repeat("x", 300)

	got := e.calculateConfidence(results, long)
	// best distance 0 -> similarity 1.0 -> 0.4 + 0.4 + 0.1 + 0.1 = 1.0
	if got != 1.0 {
		t.Errorf("expected clamp at 1.0, got %v", got)
	}

	got = e.calculateConfidence(results[:1], "short")
	if got <= 0.3 || got > 1.0 {
		t.Errorf("confidence out of range: %v", got)
	}
}

func TestCalculateConfidenceUsesBestDistance(t *testing.T) {
	e := &Engine{}
	near := e.calculateConfidence([]milvus.SearchResult{{Score: 0.1}}, "short")
	far := e.calculateConfidence([]milvus.SearchResult{{Score: 5.0}}, "short")
	if near <= far {
		t.Errorf("closer match should score higher: near=%v far=%v", near, far)
	}
}

func TestFormatContext(t *testing.T) {
	ctx := formatContext(nil)
	if !strings.Contains(ctx, "No relevant regulatory documents") {
		t.Errorf("unexpected empty context: %q", ctx)
	}

	results := []milvus.SearchResult{
		{ChunkID: "c1", Text: "Banks must report cash deposits above the threshold.", SourceFile: "rbi_kyc_master.pdf", Regulation: "RBI"},
		{ChunkID: "c2", Text: strings.Repeat("long ", 400), SourceFile: "fatf_rec.pdf", Regulation: "FATF"},
	}
	ctx = formatContext(results)

	if !strings.Contains(ctx, "rbi_kyc_master.pdf (RBI)") {
		t.Errorf("context missing source attribution: %q", ctx)
	}
	if !strings.Contains(ctx, "[Source 2: fatf_rec.pdf (FATF)]") {
		t.Errorf("context missing second source header")
	}
	// Each excerpt is truncated to 800 characters.
	if len(ctx) > 2000 {
		t.Errorf("context not truncated, length %d", len(ctx))
	}
}
