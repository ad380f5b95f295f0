package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/compliance-rag/backend/internal/audit"
	"github.com/compliance-rag/backend/internal/cache/redis"
	"github.com/compliance-rag/backend/internal/llm"
	"github.com/compliance-rag/backend/internal/metrics"
	"github.com/compliance-rag/backend/internal/monitor"
	"github.com/compliance-rag/backend/internal/risk"
	"github.com/compliance-rag/backend/internal/storage/models"
	"github.com/compliance-rag/backend/internal/storage/sqlite"
	"github.com/compliance-rag/backend/internal/vector/milvus"
	"github.com/compliance-rag/backend/pkg/logger"
	"github.com/compliance-rag/backend/pkg/utils"
)

const defaultTopK = 5

type Engine struct {
	db        *sqlite.Client
	vectorDB  *milvus.Client
	llmClient *llm.Client
	cache     *redis.Client
	auditLog  *audit.Store
	tracker   *monitor.Tracker
	queryTTL  time.Duration
	embedTTL  time.Duration
}

// cachedAnswer is the Redis representation of a completed answer.
type cachedAnswer struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
}

type QueryRequest struct {
	Query      string
	UserID     string
	Regulation string
}

type QueryResponse struct {
	ID         string               `json:"id"`
	Query      string               `json:"query"`
	Answer     string               `json:"answer"`
	Sources    []Source             `json:"sources"`
	Confidence float64              `json:"confidence"`
	Risk       risk.QueryAssessment `json:"risk"`
	CacheHit   bool                 `json:"cache_hit"`
	LatencyMS  int                  `json:"latency_ms"`
}

type Source struct {
	ChunkID    string  `json:"chunk_id"`
	SourceFile string  `json:"source_file"`
	Regulation string  `json:"regulation"`
	Score      float64 `json:"score"`
}

func NewEngine(db *sqlite.Client, vectorDB *milvus.Client, llmClient *llm.Client, cache *redis.Client, auditLog *audit.Store, tracker *monitor.Tracker, queryTTL, embedTTL time.Duration) *Engine {
	return &Engine{
		db:        db,
		vectorDB:  vectorDB,
		llmClient: llmClient,
		cache:     cache,
		auditLog:  auditLog,
		tracker:   tracker,
		queryTTL:  queryTTL,
		embedTTL:  embedTTL,
	}
}

func (e *Engine) ProcessQuery(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	startTime := time.Now()
	queryID := uuid.New().String()

	logger.Info("Processing query",
		zap.String("query_id", queryID),
		zap.String("user_id", req.UserID),
	)

	assessment := risk.AnalyzeQuery(req.Query)
	metrics.QueryRiskScore.Observe(float64(assessment.Score))

	if cached := e.lookupCache(ctx, req.Query); cached != nil {
		cached.ID = queryID
		cached.Risk = assessment
		cached.CacheHit = true
		cached.LatencyMS = int(time.Since(startTime).Milliseconds())
		e.recordQuery(ctx, queryID, req, cached, assessment, startTime)
		logger.Info("Query served from cache", zap.String("query_id", queryID))
		return cached, nil
	}

	embedding, err := e.generateEmbedding(ctx, req.Query)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, err := e.searchChunks(ctx, embedding, req.Regulation)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	metrics.VectorResultsCount.Observe(float64(len(results)))

	answer, err := e.generateAnswer(ctx, req.Query, results)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	confidence := e.calculateConfidence(results, answer)
	metrics.ConfidenceScore.Observe(confidence)

	sources := make([]Source, 0, len(results))
	for _, result := range results {
		sources = append(sources, Source{
			ChunkID:    result.ChunkID,
			SourceFile: result.SourceFile,
			Regulation: result.Regulation,
			Score:      float64(result.Score),
		})
	}

	resp := &QueryResponse{
		ID:         queryID,
		Query:      req.Query,
		Answer:     answer,
		Sources:    sources,
		Confidence: confidence,
		Risk:       assessment,
		CacheHit:   false,
		LatencyMS:  int(time.Since(startTime).Milliseconds()),
	}

	e.storeInCache(ctx, req.Query, resp)
	e.recordQuery(ctx, queryID, req, resp, assessment, startTime)

	logger.Info("Query processed successfully",
		zap.String("query_id", queryID),
		zap.Float64("confidence", confidence),
		zap.Int("risk_score", assessment.Score),
		zap.Int("latency_ms", resp.LatencyMS),
	)

	return resp, nil
}

func (e *Engine) lookupCache(ctx context.Context, query string) *QueryResponse {
	if e.cache == nil {
		return nil
	}

	var cached cachedAnswer
	found, err := e.cache.GetAnswer(ctx, utils.HashString(query), &cached)
	if err != nil {
		logger.Warn("Cache lookup failed", zap.Error(err))
		return nil
	}
	if !found {
		e.tracker.RecordCacheMiss()
		metrics.CacheMisses.WithLabelValues("answer").Inc()
		return nil
	}

	e.tracker.RecordCacheHit()
	metrics.CacheHits.WithLabelValues("answer").Inc()

	return &QueryResponse{
		Query:      query,
		Answer:     cached.Answer,
		Sources:    cached.Sources,
		Confidence: cached.Confidence,
	}
}

func (e *Engine) storeInCache(ctx context.Context, query string, resp *QueryResponse) {
	if e.cache == nil {
		return
	}

	entry := cachedAnswer{
		Answer:     resp.Answer,
		Sources:    resp.Sources,
		Confidence: resp.Confidence,
	}

	if err := e.cache.SetAnswer(ctx, utils.HashString(query), entry, e.queryTTL); err != nil {
		logger.Warn("Failed to cache answer", zap.Error(err))
	}
}

func (e *Engine) generateEmbedding(ctx context.Context, query string) ([]float32, error) {
	hash := utils.HashString(query)
	if e.cache != nil {
		if embedding, found, err := e.cache.GetEmbedding(ctx, hash); err == nil && found {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return embedding, nil
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
	}

	stop := e.tracker.StartTimer(monitor.OpEmbedding)
	embedding, err := e.llmClient.GenerateEmbedding(ctx, query)
	stop()
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetEmbedding(ctx, hash, embedding, e.embedTTL); err != nil {
			logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}

	return embedding, nil
}

func (e *Engine) searchChunks(ctx context.Context, embedding []float32, regulation string) ([]milvus.SearchResult, error) {
	stop := e.tracker.StartTimer(monitor.OpSearch)
	defer stop()
	return e.vectorDB.Search(ctx, embedding, defaultTopK, regulation)
}

func (e *Engine) generateAnswer(ctx context.Context, query string, results []milvus.SearchResult) (string, error) {
	stop := e.tracker.StartTimer(monitor.OpLLM)
	defer stop()
	return e.llmClient.GenerateAnswer(ctx, query, formatContext(results))
}

// recordQuery writes the audit record, query history row, and performance
// sample for one completed query, and raises an alert when the risk
// assessment calls for one.
func (e *Engine) recordQuery(ctx context.Context, queryID string, req QueryRequest, resp *QueryResponse, assessment risk.QueryAssessment, startTime time.Time) {
	sourceFiles := make([]string, 0, len(resp.Sources))
	for _, s := range resp.Sources {
		sourceFiles = append(sourceFiles, s.SourceFile)
	}

	metadata := map[string]string{"cache_hit": fmt.Sprintf("%t", resp.CacheHit)}
	if _, err := e.auditLog.LogQuery(req.UserID, req.Query, resp.Answer, sourceFiles, resp.Confidence, assessment.Score, metadata); err != nil {
		logger.Error("Failed to audit query", zap.String("query_id", queryID), zap.Error(err))
	}

	if assessment.RequiresAlert {
		message := fmt.Sprintf("High-risk query from user %s (score %d): %s",
			req.UserID, assessment.Score, strings.Join(assessment.KeywordsFound, ", "))
		if _, err := e.auditLog.LogAlert("HIGH_RISK_QUERY", "HIGH", message, queryID, req.UserID, nil); err != nil {
			logger.Error("Failed to log alert", zap.String("query_id", queryID), zap.Error(err))
		}
		metrics.AlertsTriggered.WithLabelValues("HIGH_RISK_QUERY", "HIGH").Inc()
	}

	record := &models.QueryRecord{
		ID:          queryID,
		UserID:      req.UserID,
		QueryText:   req.Query,
		Answer:      resp.Answer,
		Confidence:  resp.Confidence,
		RiskScore:   assessment.Score,
		RiskLevel:   assessment.Level,
		SourceCount: len(resp.Sources),
		CacheHit:    resp.CacheHit,
		LatencyMS:   resp.LatencyMS,
		CreatedAt:   time.Now(),
	}
	if err := e.db.InsertQueryRecord(record); err != nil {
		logger.Error("Failed to persist query record", zap.String("query_id", queryID), zap.Error(err))
	}

	elapsed := time.Since(startTime).Seconds()
	e.tracker.RecordDuration(monitor.OpQuery, elapsed)
	metrics.QueryDuration.WithLabelValues("total").Observe(elapsed)
	metrics.QueryTotal.WithLabelValues("success").Inc()
}

func (e *Engine) calculateConfidence(results []milvus.SearchResult, answer string) float64 {
	if len(results) == 0 {
		return 0.3
	}

	// Milvus L2 distances: smaller is closer. Map the best distance
	// into a similarity-like score before blending.
	best := float64(results[0].Score)
	for _, r := range results[1:] {
		if float64(r.Score) < best {
			best = float64(r.Score)
		}
	}
	similarity := 1.0 / (1.0 + best)

	confidence := 0.4 + similarity*0.4

	if len(results) >= 3 {
		confidence += 0.1
	}
	if len(answer) > 200 {
		confidence += 0.1
	}

	if confidence > 1.0 {
		confidence = 1.0
	}

	return confidence
}

func formatContext(results []milvus.SearchResult) string {
	if len(results) == 0 {
		return "No relevant regulatory documents found."
	}

	var builder strings.Builder
	builder.WriteString("Relevant regulatory excerpts:\n")

	for i, result := range results {
		text := result.Text
		if len(text) > 800 {
			text = text[:800]
		}
		builder.WriteString(fmt.Sprintf("\n[Source %d: %s (%s)]\n%s\n",
			i+1, result.SourceFile, result.Regulation, text))
	}

	return builder.String()
}
