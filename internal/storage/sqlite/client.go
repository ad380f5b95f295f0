package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/compliance-rag/backend/internal/storage/models"
	"github.com/compliance-rag/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT UNIQUE NOT NULL,
		file_type TEXT,
		regulation TEXT,
		content_hash TEXT,
		size_bytes INTEGER,
		chunk_count INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_regulation ON documents(regulation);
	CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON document_chunks(doc_id);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		query_text TEXT NOT NULL,
		answer TEXT,
		confidence REAL,
		risk_score INTEGER,
		risk_level TEXT,
		source_count INTEGER,
		cache_hit INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_user ON query_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertDocument(doc *models.Document) error {
	query := `
		INSERT INTO documents (id, filename, file_type, regulation, content_hash, size_bytes, chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		doc.ID,
		doc.Filename,
		doc.FileType,
		doc.Regulation,
		doc.ContentHash,
		doc.SizeBytes,
		doc.ChunkCount,
		doc.CreatedAt.Unix(),
		doc.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return nil
}

func (c *Client) InsertChunk(chunk *models.DocumentChunk) error {
	query := `
		INSERT OR REPLACE INTO document_chunks (id, doc_id, chunk_index, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		chunk.ID,
		chunk.DocID,
		chunk.ChunkIndex,
		chunk.Text,
		chunk.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	return nil
}

func (c *Client) ListDocuments() ([]models.Document, error) {
	rows, err := c.db.Query(`
		SELECT id, filename, file_type, regulation, content_hash, size_bytes, chunk_count, created_at, updated_at
		FROM documents
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var createdAt, updatedAt int64
		err := rows.Scan(
			&doc.ID,
			&doc.Filename,
			&doc.FileType,
			&doc.Regulation,
			&doc.ContentHash,
			&doc.SizeBytes,
			&doc.ChunkCount,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.CreatedAt = time.Unix(createdAt, 0)
		doc.UpdatedAt = time.Unix(updatedAt, 0)
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, user_id, query_text, answer, confidence, risk_score, risk_level, source_count, cache_hit, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	cacheHit := 0
	if record.CacheHit {
		cacheHit = 1
	}

	_, err := c.db.Exec(
		query,
		record.ID,
		record.UserID,
		record.QueryText,
		record.Answer,
		record.Confidence,
		record.RiskScore,
		record.RiskLevel,
		record.SourceCount,
		cacheHit,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	return nil
}

func (c *Client) GetQueryHistory(userID string, limit int) ([]models.QueryRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, user_id, query_text, answer, confidence, risk_score, risk_level, source_count, cache_hit, latency_ms, created_at
		FROM query_history
	`
	args := []interface{}{}
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var record models.QueryRecord
		var cacheHit int
		var createdAt int64
		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.QueryText,
			&record.Answer,
			&record.Confidence,
			&record.RiskScore,
			&record.RiskLevel,
			&record.SourceCount,
			&cacheHit,
			&record.LatencyMS,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query record: %w", err)
		}
		record.CacheHit = cacheHit == 1
		record.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, record)
	}

	return records, rows.Err()
}
