package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jdkato/prose/v2"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/compliance-rag/backend/internal/audit"
	"github.com/compliance-rag/backend/internal/cache/redis"
	"github.com/compliance-rag/backend/internal/compliance"
	"github.com/compliance-rag/backend/internal/llm"
	"github.com/compliance-rag/backend/internal/metrics"
	"github.com/compliance-rag/backend/internal/storage/models"
	"github.com/compliance-rag/backend/internal/storage/sqlite"
	"github.com/compliance-rag/backend/internal/vector/milvus"
	"github.com/compliance-rag/backend/pkg/logger"
	"github.com/compliance-rag/backend/pkg/utils"
)

const contentHashLength = 8

var whitespaceRe = regexp.MustCompile(`\s+`)

type Processor struct {
	db        *sqlite.Client
	vectorDB  *milvus.Client
	llmClient *llm.Client
	cache     *redis.Client
	auditLog  *audit.Store
	chunkSize int
}

type Result struct {
	DocID         string `json:"doc_id"`
	Filename      string `json:"filename"`
	Regulation    string `json:"regulation"`
	ChunksCreated int    `json:"chunks_created"`
	ContentHash   string `json:"content_hash"`
}

func NewProcessor(db *sqlite.Client, vectorDB *milvus.Client, llmClient *llm.Client, cache *redis.Client, auditLog *audit.Store) *Processor {
	return &Processor{
		db:        db,
		vectorDB:  vectorDB,
		llmClient: llmClient,
		cache:     cache,
		auditLog:  auditLog,
		chunkSize: 1000,
	}
}

// ProcessDocument extracts text, chunks it sentence-aware, embeds the
// chunks, and stores them in the vector index and the document registry.
// Every ingestion is recorded in the audit trail, including failures.
func (p *Processor) ProcessDocument(ctx context.Context, userID, filename string, content []byte) (*Result, error) {
	logger.Info("Processing document",
		zap.String("filename", filename),
		zap.Int("size", len(content)),
	)

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	text := extractText(fileType, content)
	if text == "" {
		p.logDocumentEvent(userID, filename, int64(len(content)), fileType, 0, "", "failed")
		return nil, fmt.Errorf("no text extracted from %s", filename)
	}

	contentHash := utils.ShortHash(text, contentHashLength)
	regulation := compliance.Categorize(filename)
	docID := utils.HashString(filename)

	chunks := p.chunkText(text)
	logger.Info("Document chunked", zap.String("filename", filename), zap.Int("chunks", len(chunks)))

	embeddings, err := p.llmClient.GenerateBatchEmbeddings(ctx, chunks)
	if err != nil {
		p.logDocumentEvent(userID, filename, int64(len(content)), fileType, 0, contentHash, "failed")
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	now := time.Now()
	doc := &models.Document{
		ID:          docID,
		Filename:    filename,
		FileType:    fileType,
		Regulation:  regulation,
		ContentHash: contentHash,
		SizeBytes:   int64(len(content)),
		ChunkCount:  len(chunks),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.db.InsertDocument(doc); err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	vectorChunks := make([]milvus.DocumentChunk, 0, len(chunks))
	for i, chunkText := range chunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", docID, i)
		vectorChunks = append(vectorChunks, milvus.DocumentChunk{
			ID:         chunkID,
			Embedding:  embeddings[i],
			Text:       chunkText,
			SourceFile: filename,
			Regulation: regulation,
			ChunkIndex: i,
			Timestamp:  now,
		})

		dbChunk := &models.DocumentChunk{
			ID:         chunkID,
			DocID:      docID,
			ChunkIndex: i,
			Text:       chunkText,
			CreatedAt:  now,
		}
		if err := p.db.InsertChunk(dbChunk); err != nil {
			logger.Warn("Failed to insert chunk", zap.String("chunk_id", chunkID), zap.Error(err))
		}
	}

	if err := p.vectorDB.Insert(ctx, vectorChunks); err != nil {
		p.logDocumentEvent(userID, filename, int64(len(content)), fileType, 0, contentHash, "failed")
		return nil, fmt.Errorf("failed to insert into vector DB: %w", err)
	}

	p.logDocumentEvent(userID, filename, int64(len(content)), fileType, len(chunks), contentHash, "success")
	metrics.DocumentsProcessed.Inc()

	// New content can change answers, so cached answers are stale.
	if p.cache != nil {
		if err := p.cache.InvalidateAnswers(ctx); err != nil {
			logger.Warn("Failed to invalidate cached answers", zap.Error(err))
		}
	}

	logger.Info("Document processed successfully",
		zap.String("doc_id", docID),
		zap.String("regulation", regulation),
		zap.Int("chunks", len(vectorChunks)),
	)

	return &Result{
		DocID:         docID,
		Filename:      filename,
		Regulation:    regulation,
		ChunksCreated: len(chunks),
		ContentHash:   contentHash,
	}, nil
}

func (p *Processor) logDocumentEvent(userID, filename string, size int64, fileType string, chunks int, contentHash, status string) {
	if err := p.auditLog.LogDocument(userID, filename, size, fileType, chunks, contentHash, status); err != nil {
		logger.Error("Failed to audit document ingestion", zap.String("filename", filename), zap.Error(err))
	}
}

func extractText(fileType string, content []byte) string {
	var text string
	switch fileType {
	case "html", "htm":
		text = cleanHTML(string(content))
	case "pdf":
		text = extractPDF(content)
	default:
		text = string(content)
	}

	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// extractPDF returns the plain text of a PDF, or "" when the bytes do not
// parse as one. An empty result makes ProcessDocument fail the ingestion
// instead of embedding raw binary content.
func extractPDF(content []byte) (text string) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("PDF parser panicked", zap.Any("cause", r))
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		logger.Warn("Failed to parse PDF", zap.Error(err))
		return ""
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		logger.Warn("Failed to extract PDF text", zap.Error(err))
		return ""
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		logger.Warn("Failed to read PDF text", zap.Error(err))
		return ""
	}

	return buf.String()
}

func cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return doc.Find("body").Text()
}

// chunkText groups sentences into chunks of at most chunkSize characters.
// Sentence boundaries come from prose; if segmentation fails the text is
// split on fixed-size boundaries instead.
func (p *Processor) chunkText(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	return groupSentences(sentences, p.chunkSize)
}

func splitSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Warn("Sentence segmentation failed, using fixed-size chunks", zap.Error(err))
		return fixedSplit(text, 1000)
	}

	sentences := []string{}
	for _, s := range doc.Sentences() {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

func groupSentences(sentences []string, maxChars int) []string {
	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences {
		// A single oversized sentence becomes its own chunk rather than
		// being split mid-sentence.
		if current.Len() > 0 && current.Len()+len(sentence)+1 > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

func fixedSplit(text string, size int) []string {
	var parts []string
	for len(text) > size {
		parts = append(parts, text[:size])
		text = text[size:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
