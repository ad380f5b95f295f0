package monitor

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Operation classes with their own rolling windows.
const (
	OpQuery     = "query"
	OpEmbedding = "embedding"
	OpSearch    = "search"
	OpLLM       = "llm"
)

const DefaultWindowSize = 1000

// Stats summarizes one operation class's rolling window, seconds, rounded
// to three decimals.
type Stats struct {
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
}

type Snapshot struct {
	UptimeSeconds    float64   `json:"uptime_seconds"`
	UptimeFormatted  string    `json:"uptime_formatted"`
	TotalQueries     int64     `json:"total_queries"`
	QueriesPerMinute float64   `json:"queries_per_minute"`
	CacheHitRate     float64   `json:"cache_hit_rate"`
	CacheHits        int64     `json:"cache_hits"`
	CacheMisses      int64     `json:"cache_misses"`
	Timestamp        time.Time `json:"timestamp"`

	QueryTime     *Stats `json:"query_time,omitempty"`
	EmbeddingTime *Stats `json:"embedding_time,omitempty"`
	SearchTime    *Stats `json:"search_time,omitempty"`
	LLMTime       *Stats `json:"llm_time,omitempty"`
}

// window is a fixed-capacity ring; once full, the oldest sample is evicted.
type window struct {
	buf  []float64
	next int
	n    int
}

func newWindow(size int) *window {
	return &window{buf: make([]float64, size)}
}

func (w *window) push(v float64) {
	w.buf[w.next] = v
	w.next = (w.next + 1) % len(w.buf)
	if w.n < len(w.buf) {
		w.n++
	}
}

func (w *window) values() []float64 {
	out := make([]float64, w.n)
	copy(out, w.buf[:w.n])
	return out
}

// Tracker records per-operation durations and cache counters for one
// process. Construct once at startup and pass to request handlers; state is
// in-memory only and resets on restart.
type Tracker struct {
	mu           sync.Mutex
	windows      map[string]*window
	totalQueries int64
	cacheHits    int64
	cacheMisses  int64
	startTime    time.Time
}

func NewTracker(windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Tracker{
		windows: map[string]*window{
			OpQuery:     newWindow(windowSize),
			OpEmbedding: newWindow(windowSize),
			OpSearch:    newWindow(windowSize),
			OpLLM:       newWindow(windowSize),
		},
		startTime: time.Now(),
	}
}

// RecordDuration pushes a sample into the class's window. The cumulative
// query counter advances only for the overall-query class. Unknown classes
// are ignored.
func (t *Tracker) RecordDuration(class string, seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.windows[class]
	if !ok {
		return
	}
	w.push(seconds)
	if class == OpQuery {
		t.totalQueries++
	}
}

// StartTimer returns a function that records the elapsed time for class
// when invoked, for deferring around a timed phase.
func (t *Tracker) StartTimer(class string) func() {
	start := time.Now()
	return func() {
		t.RecordDuration(class, time.Since(start).Seconds())
	}
}

func (t *Tracker) RecordCacheHit() {
	t.mu.Lock()
	t.cacheHits++
	t.mu.Unlock()
}

func (t *Tracker) RecordCacheMiss() {
	t.mu.Lock()
	t.cacheMisses++
	t.mu.Unlock()
}

// GetSnapshot computes live statistics. Windows are copied before sorting so
// concurrent recording never observes a partially sorted buffer.
func (t *Tracker) GetSnapshot() Snapshot {
	t.mu.Lock()
	uptime := time.Since(t.startTime).Seconds()
	totalQueries := t.totalQueries
	hits := t.cacheHits
	misses := t.cacheMisses
	samples := make(map[string][]float64, len(t.windows))
	for class, w := range t.windows {
		if w.n > 0 {
			samples[class] = w.values()
		}
	}
	t.mu.Unlock()

	qpm := 0.0
	if uptime > 0 {
		qpm = round2(float64(totalQueries) / uptime * 60)
	}

	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = round2(float64(hits) / float64(hits+misses) * 100)
	}

	return Snapshot{
		UptimeSeconds:    round2(uptime),
		UptimeFormatted:  formatUptime(uptime),
		TotalQueries:     totalQueries,
		QueriesPerMinute: qpm,
		CacheHitRate:     hitRate,
		CacheHits:        hits,
		CacheMisses:      misses,
		Timestamp:        time.Now(),
		QueryTime:        computeStats(samples[OpQuery]),
		EmbeddingTime:    computeStats(samples[OpEmbedding]),
		SearchTime:       computeStats(samples[OpSearch]),
		LLMTime:          computeStats(samples[OpLLM]),
	}
}

// Summary renders a human-readable metrics report.
func (t *Tracker) Summary() string {
	snap := t.GetSnapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "# Performance Metrics\nGenerated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString("## System Uptime\n")
	fmt.Fprintf(&b, "- Uptime: %s\n", snap.UptimeFormatted)
	fmt.Fprintf(&b, "- Total Queries: %d\n", snap.TotalQueries)
	fmt.Fprintf(&b, "- Queries/Minute: %.2f\n\n", snap.QueriesPerMinute)
	b.WriteString("## Cache Performance\n")
	fmt.Fprintf(&b, "- Cache Hit Rate: %.2f%%\n", snap.CacheHitRate)
	fmt.Fprintf(&b, "- Cache Hits: %d\n", snap.CacheHits)
	fmt.Fprintf(&b, "- Cache Misses: %d\n", snap.CacheMisses)

	sections := []struct {
		title string
		stats *Stats
	}{
		{"Query Performance", snap.QueryTime},
		{"Embedding Generation", snap.EmbeddingTime},
		{"Vector Search", snap.SearchTime},
		{"LLM Generation", snap.LLMTime},
	}
	for _, sec := range sections {
		if sec.stats == nil {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n", sec.title)
		fmt.Fprintf(&b, "- Average: %.3fs\n- Median: %.3fs\n- Min: %.3fs\n- Max: %.3fs\n- P95: %.3fs\n- P99: %.3fs\n",
			sec.stats.Avg, sec.stats.Median, sec.stats.Min, sec.stats.Max, sec.stats.P95, sec.stats.P99)
	}

	return b.String()
}

func computeStats(samples []float64) *Stats {
	if len(samples) == 0 {
		return nil
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return &Stats{
		Avg:    round3(sum / float64(len(sorted))),
		Median: round3(median(sorted)),
		Min:    round3(sorted[0]),
		Max:    round3(sorted[len(sorted)-1]),
		P95:    round3(percentile(sorted, 95)),
		P99:    round3(percentile(sorted, 99)),
	}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile uses nearest-rank on an ascending-sorted slice:
// index = floor(p/100 * n), clamped to the last valid index.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(p) / 100 * float64(len(sorted)))
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func formatUptime(seconds float64) string {
	days := int(seconds) / 86400
	hours := (int(seconds) % 86400) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60

	parts := []string{}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", secs))

	return strings.Join(parts, " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
