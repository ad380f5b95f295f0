package models

import "time"

type Document struct {
	ID          string
	Filename    string
	FileType    string
	Regulation  string
	ContentHash string
	SizeBytes   int64
	ChunkCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type DocumentChunk struct {
	ID         string
	DocID      string
	ChunkIndex int
	Text       string
	CreatedAt  time.Time
}

type QueryRecord struct {
	ID          string
	UserID      string
	QueryText   string
	Answer      string
	Confidence  float64
	RiskScore   int
	RiskLevel   string
	SourceCount int
	CacheHit    bool
	LatencyMS   int
	CreatedAt   time.Time
}
