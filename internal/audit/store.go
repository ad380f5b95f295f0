package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/compliance-rag/backend/pkg/logger"
	"github.com/compliance-rag/backend/pkg/utils"
)

const (
	recordIDLength = 12

	defaultHistoryLimit = 100
	defaultAlertLimit   = 50
)

// QueryRecord captures one answered user query. AnswerPreview is truncated
// at 200 characters; the full answer lives in the query history database.
type QueryRecord struct {
	QueryID         string            `json:"query_id"`
	Timestamp       time.Time         `json:"timestamp"`
	UserID          string            `json:"user_id"`
	Query           string            `json:"query"`
	AnswerPreview   string            `json:"answer_preview"`
	AnswerLength    int               `json:"answer_length"`
	SourcesUsed     []string          `json:"sources_used"`
	SourceCount     int               `json:"source_count"`
	ConfidenceScore float64           `json:"confidence_score"`
	RiskScore       int               `json:"risk_score"`
	Metadata        map[string]string `json:"metadata"`
}

type AccessRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	UserID    string            `json:"user_id"`
	Action    string            `json:"action"`
	Resource  string            `json:"resource"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata"`
}

type AlertRecord struct {
	AlertID   string            `json:"alert_id"`
	Timestamp time.Time         `json:"timestamp"`
	AlertType string            `json:"alert_type"`
	Severity  string            `json:"severity"`
	Message   string            `json:"message"`
	QueryID   string            `json:"query_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Metadata  map[string]string `json:"metadata"`
}

type DocumentRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	UserID        string    `json:"user_id"`
	Filename      string    `json:"filename"`
	FileSize      int64     `json:"file_size"`
	FileType      string    `json:"file_type"`
	ChunksCreated int       `json:"chunks_created"`
	ContentHash   string    `json:"content_hash,omitempty"`
	Status        string    `json:"status"`
}

// Statistics is a gross line-count summary across all partitions. Counts
// include malformed lines.
type Statistics struct {
	TotalQueries             int       `json:"total_queries"`
	TotalAccessLogs          int       `json:"total_access_logs"`
	TotalAlerts              int       `json:"total_alerts"`
	TotalDocumentsProcessed  int       `json:"total_documents_processed"`
	RecentHighSeverityAlerts int       `json:"recent_high_severity_alerts"`
	LastUpdated              time.Time `json:"last_updated"`
}

// Export bundles every partition for regulatory reporting. The date range is
// recorded but not applied as a filter; see ExportTrail.
type Export struct {
	ExportTimestamp time.Time        `json:"export_timestamp"`
	DateRange       ExportDateRange  `json:"date_range"`
	Queries         []QueryRecord    `json:"queries"`
	AccessLogs      []AccessRecord   `json:"access_logs"`
	Alerts          []AlertRecord    `json:"alerts"`
	Documents       []DocumentRecord `json:"documents"`
}

type ExportDateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type partition struct {
	path string
	mu   sync.Mutex
}

// Store is an append-only, file-backed audit trail. Each record kind lives
// in its own newline-delimited JSON file so per-kind reads and counts cost
// only that kind's volume. Records are never updated or deleted.
type Store struct {
	dir      string
	query    partition
	access   partition
	alert    partition
	document partition
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log dir: %w", err)
	}

	logger.Info("Audit store initialized", zap.String("dir", dir))

	return &Store{
		dir:      dir,
		query:    partition{path: filepath.Join(dir, "query_log.jsonl")},
		access:   partition{path: filepath.Join(dir, "access_log.jsonl")},
		alert:    partition{path: filepath.Join(dir, "alert_log.jsonl")},
		document: partition{path: filepath.Join(dir, "document_log.jsonl")},
	}, nil
}

// LogQuery appends a query record and returns its ID. A write failure is
// returned to the caller; an audit record must never be dropped silently.
func (s *Store) LogQuery(userID, query, answer string, sources []string, confidence float64, riskScore int, metadata map[string]string) (string, error) {
	id := generateID(query, userID)

	preview := answer
	if len(answer) > 200 {
		preview = answer[:200] + "..."
	}
	if sources == nil {
		sources = []string{}
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	rec := QueryRecord{
		QueryID:         id,
		Timestamp:       time.Now(),
		UserID:          userID,
		Query:           query,
		AnswerPreview:   preview,
		AnswerLength:    len(answer),
		SourcesUsed:     sources,
		SourceCount:     len(sources),
		ConfidenceScore: confidence,
		RiskScore:       riskScore,
		Metadata:        metadata,
	}

	if err := appendRecord(&s.query, rec); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) LogAccess(userID, action, resource, status string, metadata map[string]string) error {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return appendRecord(&s.access, AccessRecord{
		Timestamp: time.Now(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		Status:    status,
		Metadata:  metadata,
	})
}

// LogAlert appends a compliance alert and returns its ID.
func (s *Store) LogAlert(alertType, severity, message, queryID, userID string, metadata map[string]string) (string, error) {
	id := generateID(message, alertType)

	if metadata == nil {
		metadata = map[string]string{}
	}
	rec := AlertRecord{
		AlertID:   id,
		Timestamp: time.Now(),
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
		QueryID:   queryID,
		UserID:    userID,
		Metadata:  metadata,
	}

	if err := appendRecord(&s.alert, rec); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) LogDocument(userID, filename string, fileSize int64, fileType string, chunksCreated int, contentHash, status string) error {
	return appendRecord(&s.document, DocumentRecord{
		Timestamp:     time.Now(),
		UserID:        userID,
		Filename:      filename,
		FileSize:      fileSize,
		FileType:      fileType,
		ChunksCreated: chunksCreated,
		ContentHash:   contentHash,
		Status:        status,
	})
}

// QueryHistory returns up to limit query records, last-appended last. When
// userID is non-empty only that user's records are considered. Corrupt lines
// are skipped.
func (s *Store) QueryHistory(userID string, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return readRecords(&s.query, limit, func(r QueryRecord) bool {
		return userID == "" || r.UserID == userID
	})
}

// Alerts returns up to limit alert records in file-append order. The
// severity filter is applied to the tail sample, matching the dashboard's
// bounded-sample semantics.
func (s *Store) Alerts(severity string, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	alerts, err := readRecords(&s.alert, limit, func(AlertRecord) bool { return true })
	if err != nil {
		return nil, err
	}

	if severity == "" {
		return alerts, nil
	}
	filtered := make([]AlertRecord, 0, len(alerts))
	for _, a := range alerts {
		if a.Severity == severity {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

func (s *Store) AccessLogs(limit int) ([]AccessRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return readRecords(&s.access, limit, func(AccessRecord) bool { return true })
}

func (s *Store) DocumentLogs(limit int) ([]DocumentRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return readRecords(&s.document, limit, func(DocumentRecord) bool { return true })
}

// GetStatistics counts lines per partition, tolerating corrupt lines, and
// inspects the ten most recent alerts for high severity.
func (s *Store) GetStatistics() Statistics {
	recent, _ := s.Alerts("", 10)
	high := 0
	for _, a := range recent {
		if a.Severity == "HIGH" {
			high++
		}
	}

	return Statistics{
		TotalQueries:             countLines(&s.query),
		TotalAccessLogs:          countLines(&s.access),
		TotalAlerts:              countLines(&s.alert),
		TotalDocumentsProcessed:  countLines(&s.document),
		RecentHighSeverityAlerts: high,
		LastUpdated:              time.Now(),
	}
}

// ExportTrail writes a consolidated JSON export of every partition and
// returns the output path. startDate and endDate are echoed into the export
// header but intentionally not applied as a filter; downstream tooling
// expects the complete trail.
func (s *Store) ExportTrail(startDate, endDate, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = filepath.Join(s.dir, fmt.Sprintf("audit_export_%s.json", time.Now().Format("20060102_150405")))
	}

	queries, err := readRecords(&s.query, 0, func(QueryRecord) bool { return true })
	if err != nil {
		return "", err
	}
	access, err := readRecords(&s.access, 0, func(AccessRecord) bool { return true })
	if err != nil {
		return "", err
	}
	alerts, err := readRecords(&s.alert, 0, func(AlertRecord) bool { return true })
	if err != nil {
		return "", err
	}
	documents, err := readRecords(&s.document, 0, func(DocumentRecord) bool { return true })
	if err != nil {
		return "", err
	}

	export := Export{
		ExportTimestamp: time.Now(),
		DateRange:       ExportDateRange{Start: startDate, End: endDate},
		Queries:         queries,
		AccessLogs:      access,
		Alerts:          alerts,
		Documents:       documents,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	logger.Info("Audit trail exported",
		zap.String("path", outputPath),
		zap.Int("queries", len(queries)),
		zap.Int("alerts", len(alerts)),
	)

	return outputPath, nil
}

// generateID derives a deterministic short ID from the record's semantic
// content salted with the current timestamp: identical content at distinct
// instants yields distinct IDs.
func generateID(parts ...string) string {
	content := strings.Join(parts, "") + time.Now().Format(time.RFC3339Nano)
	return utils.ShortHash(content, recordIDLength)
}

func appendRecord(p *partition, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// readRecords scans a partition top to bottom, dropping malformed lines, and
// returns the last limit well-formed records that pass keep. limit <= 0
// means no bound.
func readRecords[T any](p *partition, limit int, keep func(T) bool) ([]T, error) {
	f, err := os.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec T
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if keep(rec) {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan audit log: %w", err)
	}

	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

func countLines(p *partition) int {
	f, err := os.Open(p.path)
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		count++
	}
	return count
}
