package milvus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/compliance-rag/backend/internal/compliance"
	"github.com/compliance-rag/backend/pkg/logger"
)

// Client stores regulation document chunks and their embeddings. It also
// serves as the document index consumed by the compliance aggregator.
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

type DocumentChunk struct {
	ID         string
	Embedding  []float32
	Text       string
	SourceFile string
	Regulation string
	ChunkIndex int
	Timestamp  time.Time
}

type SearchResult struct {
	ChunkID    string
	Text       string
	SourceFile string
	Regulation string
	Score      float32
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	var c client.Client
	var err error
	if apiKey != "" {
		c, err = client.NewClient(context.Background(), client.Config{Address: endpoint, APIKey: apiKey})
	} else {
		c, err = client.NewGrpcClient(context.Background(), endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Regulation document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "source_file",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "regulation",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, chunks []DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	texts := make([]string, len(chunks))
	sourceFiles := make([]string, len(chunks))
	regulations := make([]string, len(chunks))
	chunkIndexes := make([]int64, len(chunks))
	timestamps := make([]int64, len(chunks))

	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		texts[i] = chunk.Text
		sourceFiles[i] = chunk.SourceFile
		regulations[i] = chunk.Regulation
		chunkIndexes[i] = int64(chunk.ChunkIndex)
		timestamps[i] = chunk.Timestamp.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("source_file", sourceFiles),
		entity.NewColumnVarChar("regulation", regulations),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
		entity.NewColumnInt64("timestamp", timestamps),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted into vector DB", zap.Int("count", len(chunks)))

	return nil
}

func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, regulation string) ([]SearchResult, error) {
	expr := ""
	if regulation != "" {
		expr = fmt.Sprintf(`regulation == "%s"`, regulation)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "text", "source_file", "regulation"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		chunkIDCol := sr.Fields.GetColumn("chunk_id")
		textCol := sr.Fields.GetColumn("text")
		sourceCol := sr.Fields.GetColumn("source_file")
		regulationCol := sr.Fields.GetColumn("regulation")

		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := chunkIDCol.Get(i)
			text, _ := textCol.Get(i)
			source, _ := sourceCol.Get(i)
			reg, _ := regulationCol.Get(i)

			results = append(results, SearchResult{
				ChunkID:    chunkID.(string),
				Text:       text.(string),
				SourceFile: source.(string),
				Regulation: reg.(string),
				Score:      sr.Scores[i],
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
		zap.String("filter", expr),
	)

	return results, nil
}

// ListChunkMetadata returns source filename and chunk index for every stored
// chunk. Part of the compliance.DocumentIndex contract.
func (m *Client) ListChunkMetadata(ctx context.Context) ([]compliance.ChunkMetadata, error) {
	rs, err := m.client.Query(
		ctx,
		m.collectionName,
		[]string{},
		"chunk_index >= 0",
		[]string{"chunk_id", "source_file", "chunk_index"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk metadata: %w", err)
	}

	var sourceCol, indexCol entity.Column
	for _, col := range rs {
		switch col.Name() {
		case "source_file":
			sourceCol = col
		case "chunk_index":
			indexCol = col
		}
	}
	if sourceCol == nil || indexCol == nil {
		return []compliance.ChunkMetadata{}, nil
	}

	metadata := make([]compliance.ChunkMetadata, 0, sourceCol.Len())
	for i := 0; i < sourceCol.Len(); i++ {
		source, _ := sourceCol.Get(i)
		idx, _ := indexCol.Get(i)

		sourceStr, _ := source.(string)
		idxInt, _ := idx.(int64)

		metadata = append(metadata, compliance.ChunkMetadata{
			SourceFile: sourceStr,
			ChunkIndex: int(idxInt),
		})
	}

	return metadata, nil
}

// CountChunks reports the stored chunk count from collection statistics.
func (m *Client) CountChunks(ctx context.Context) (int64, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.collectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}

	rowCount, ok := stats["row_count"]
	if !ok {
		return 0, nil
	}

	count, err := strconv.ParseInt(rowCount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse row count %q: %w", rowCount, err)
	}
	return count, nil
}
