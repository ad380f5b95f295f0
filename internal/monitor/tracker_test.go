package monitor

import (
	"sync"
	"testing"
)

func TestPercentileNearestRank(t *testing.T) {
	tr := NewTracker(1000)
	for i := 1; i <= 100; i++ {
		tr.RecordDuration(OpQuery, float64(i))
	}

	snap := tr.GetSnapshot()
	if snap.QueryTime == nil {
		t.Fatal("expected query stats")
	}
	// Nearest rank: index floor(0.95*100)=95 -> value 96; index 99 -> 100.
	if snap.QueryTime.P95 != 96 {
		t.Fatalf("expected p95=96, got %v", snap.QueryTime.P95)
	}
	if snap.QueryTime.P99 != 100 {
		t.Fatalf("expected p99=100, got %v", snap.QueryTime.P99)
	}
	if snap.QueryTime.Min != 1 || snap.QueryTime.Max != 100 {
		t.Fatalf("unexpected min/max: %+v", snap.QueryTime)
	}
	if snap.QueryTime.Avg != 50.5 || snap.QueryTime.Median != 50.5 {
		t.Fatalf("unexpected avg/median: %+v", snap.QueryTime)
	}
}

func TestCacheHitRate(t *testing.T) {
	tr := NewTracker(10)

	snap := tr.GetSnapshot()
	if snap.CacheHitRate != 0 {
		t.Fatalf("expected 0 hit rate with no activity, got %v", snap.CacheHitRate)
	}

	tr.RecordCacheHit()
	tr.RecordCacheHit()
	tr.RecordCacheHit()
	tr.RecordCacheMiss()

	snap = tr.GetSnapshot()
	if snap.CacheHitRate != 75.0 {
		t.Fatalf("expected hit rate 75.0, got %v", snap.CacheHitRate)
	}
	if snap.CacheHits != 3 || snap.CacheMisses != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
}

func TestWindowEviction(t *testing.T) {
	tr := NewTracker(3)
	for _, v := range []float64{10, 20, 30, 40} {
		tr.RecordDuration(OpSearch, v)
	}

	snap := tr.GetSnapshot()
	if snap.SearchTime == nil {
		t.Fatal("expected search stats")
	}
	// Oldest sample (10) evicted: window holds 20, 30, 40.
	if snap.SearchTime.Min != 20 || snap.SearchTime.Max != 40 || snap.SearchTime.Median != 30 {
		t.Fatalf("unexpected stats after eviction: %+v", snap.SearchTime)
	}
}

func TestTotalQueriesOnlyCountsQueryClass(t *testing.T) {
	tr := NewTracker(10)
	tr.RecordDuration(OpQuery, 1.0)
	tr.RecordDuration(OpQuery, 1.5)
	tr.RecordDuration(OpEmbedding, 0.1)
	tr.RecordDuration(OpSearch, 0.2)
	tr.RecordDuration(OpLLM, 0.3)
	tr.RecordDuration("unknown", 9.9)

	snap := tr.GetSnapshot()
	if snap.TotalQueries != 2 {
		t.Fatalf("expected 2 total queries, got %d", snap.TotalQueries)
	}
	if snap.QueriesPerMinute <= 0 {
		t.Fatalf("expected positive queries/minute, got %v", snap.QueriesPerMinute)
	}
}

func TestEmptyWindowsOmitted(t *testing.T) {
	tr := NewTracker(10)
	tr.RecordDuration(OpEmbedding, 0.25)

	snap := tr.GetSnapshot()
	if snap.EmbeddingTime == nil {
		t.Fatal("expected embedding stats")
	}
	if snap.QueryTime != nil || snap.SearchTime != nil || snap.LLMTime != nil {
		t.Fatal("expected nil stats for empty windows")
	}
}

func TestSinglePercentileSampleClamped(t *testing.T) {
	tr := NewTracker(10)
	tr.RecordDuration(OpLLM, 2.5)

	snap := tr.GetSnapshot()
	// floor(0.99*1)=0, already last index; floor(0.95*1)=0.
	if snap.LLMTime.P95 != 2.5 || snap.LLMTime.P99 != 2.5 {
		t.Fatalf("expected clamped percentiles, got %+v", snap.LLMTime)
	}
}

func TestConcurrentRecording(t *testing.T) {
	tr := NewTracker(100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tr.RecordDuration(OpQuery, 0.5)
				tr.RecordCacheHit()
				tr.RecordCacheMiss()
				_ = tr.GetSnapshot()
			}
		}()
	}
	wg.Wait()

	snap := tr.GetSnapshot()
	if snap.TotalQueries != 400 {
		t.Fatalf("expected 400 total queries, got %d", snap.TotalQueries)
	}
	if snap.CacheHits != 400 || snap.CacheMisses != 400 {
		t.Fatalf("unexpected cache counters: %+v", snap)
	}
	if snap.CacheHitRate != 50.0 {
		t.Fatalf("expected 50.0 hit rate, got %v", snap.CacheHitRate)
	}
}
