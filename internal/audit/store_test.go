package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestQueryRoundTrip(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := s.LogQuery("user1", fmt.Sprintf("question %d", i), "an answer", []string{"rbi_kyc.pdf"}, 0.9, 10, nil)
		if err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.QueryHistory("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	if records[0].Query != "question 0" || records[4].Query != "question 4" {
		t.Fatal("records not in append order")
	}
	if records[2].ConfidenceScore != 0.9 || records[2].RiskScore != 10 {
		t.Fatalf("payload not preserved: %+v", records[2])
	}
	if records[0].SourceCount != 1 || records[0].SourcesUsed[0] != "rbi_kyc.pdf" {
		t.Fatalf("sources not preserved: %+v", records[0])
	}
}

func TestQueryHistoryLimitAndFilter(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 10; i++ {
		user := "alice"
		if i%2 == 1 {
			user = "bob"
		}
		if _, err := s.LogQuery(user, fmt.Sprintf("q%d", i), "a", nil, 0.5, 0, nil); err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.QueryHistory("", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[2].Query != "q9" {
		t.Fatalf("expected most recent record last, got %s", records[2].Query)
	}

	aliceOnly, err := s.QueryHistory("alice", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(aliceOnly) != 5 {
		t.Fatalf("expected 5 alice records, got %d", len(aliceOnly))
	}
	for _, r := range aliceOnly {
		if r.UserID != "alice" {
			t.Fatalf("unexpected user: %s", r.UserID)
		}
	}
}

func TestCorruptLinesSkipped(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.LogQuery("u", "first", "a", nil, 0.5, 0, nil); err != nil {
		t.Fatal(err)
	}

	// Inject garbage between valid records.
	f, err := os.OpenFile(s.query.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{not json at all\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := s.LogQuery("u", "second", "a", nil, 0.5, 0, nil); err != nil {
		t.Fatal(err)
	}

	records, err := s.QueryHistory("", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 valid records, got %d", len(records))
	}

	// Line counts are gross and include the corrupt line.
	stats := s.GetStatistics()
	if stats.TotalQueries != 3 {
		t.Fatalf("expected 3 counted lines, got %d", stats.TotalQueries)
	}
}

func TestMissingPartitionIsEmpty(t *testing.T) {
	s := newTestStore(t)

	records, err := s.QueryHistory("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty history, got %d", len(records))
	}

	stats := s.GetStatistics()
	if stats.TotalQueries != 0 || stats.TotalAlerts != 0 {
		t.Fatalf("expected zero counts, got %+v", stats)
	}
}

func TestDistinctIDs(t *testing.T) {
	s := newTestStore(t)

	id1, err := s.LogQuery("u", "query a", "answer", nil, 0.5, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.LogQuery("u", "query b", "answer", nil, 0.5, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Identical content, distinct instants: the timestamp salt still
	// separates the IDs.
	id3, err := s.LogQuery("u", "query a", "answer", nil, 0.5, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	if id1 == id2 || id1 == id3 {
		t.Fatalf("expected distinct IDs, got %s, %s, %s", id1, id2, id3)
	}
	if len(id1) != 12 {
		t.Fatalf("expected 12-character ID, got %q", id1)
	}
}

func TestAlertSeverityFilter(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		if _, err := s.LogAlert("HIGH_RISK_QUERY", "HIGH", fmt.Sprintf("alert %d", i), "", "u", nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.LogAlert("SYSTEM", "LOW", "routine", "", "u", nil); err != nil {
		t.Fatal(err)
	}

	high, err := s.Alerts("HIGH", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(high) != 3 {
		t.Fatalf("expected 3 high alerts, got %d", len(high))
	}

	stats := s.GetStatistics()
	if stats.RecentHighSeverityAlerts != 3 {
		t.Fatalf("expected 3 recent high-severity alerts, got %d", stats.RecentHighSeverityAlerts)
	}
	if stats.TotalAlerts != 4 {
		t.Fatalf("expected 4 alerts total, got %d", stats.TotalAlerts)
	}
}

func TestAnswerPreviewTruncation(t *testing.T) {
	s := newTestStore(t)

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := s.LogQuery("u", "q", string(long), nil, 0.5, 0, nil); err != nil {
		t.Fatal(err)
	}

	records, err := s.QueryHistory("", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(records[0].AnswerPreview) != 203 {
		t.Fatalf("expected 200 chars plus ellipsis, got %d", len(records[0].AnswerPreview))
	}
	if records[0].AnswerLength != 500 {
		t.Fatalf("expected answer length 500, got %d", records[0].AnswerLength)
	}
}

func TestExportTrail(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.LogQuery("u", "q", "a", nil, 0.8, 20, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.LogAccess("u", "login", "dashboard", "success", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LogAlert("TEST", "HIGH", "msg", "", "u", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.LogDocument("u", "fatf_guidance.pdf", 1024, "pdf", 7, "abcd1234", "success"); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "export.json")
	path, err := s.ExportTrail("2024-01-01", "2024-12-31", out)
	if err != nil {
		t.Fatal(err)
	}
	if path != out {
		t.Fatalf("expected export at %s, got %s", out, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatal(err)
	}

	if len(export.Queries) != 1 || len(export.AccessLogs) != 1 || len(export.Alerts) != 1 || len(export.Documents) != 1 {
		t.Fatalf("unexpected export contents: %+v", export)
	}
	// Date parameters are recorded but never filter the trail.
	if export.DateRange.Start != "2024-01-01" || export.DateRange.End != "2024-12-31" {
		t.Fatalf("date range not echoed: %+v", export.DateRange)
	}
	if export.ExportTimestamp.IsZero() {
		t.Fatal("export timestamp missing")
	}
	if export.Documents[0].ContentHash != "abcd1234" {
		t.Fatalf("document payload not preserved: %+v", export.Documents[0])
	}
}
