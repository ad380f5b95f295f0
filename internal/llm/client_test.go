package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/compliance-rag/backend/pkg/circuitbreaker"
	"github.com/compliance-rag/backend/pkg/retry"
)

func newTestClient(baseURL string) *Client {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = baseURL + "/v1"

	return &Client{
		client:         openai.NewClientWithConfig(cfg),
		model:          "gpt-4o-mini",
		embeddingModel: "text-embedding-3-small",
		maxTokens:      100,
		cb: circuitbreaker.New("llm-test", circuitbreaker.Config{
			FailureThreshold: 10,
			SuccessThreshold: 1,
			OpenTimeout:      time.Second,
			Logger:           zap.NewNop(),
		}),
		retryConfig: retry.Config{
			MaxAttempts:  1,
			InitialDelay: time.Millisecond,
			Logger:       zap.NewNop(),
		},
	}
}

func TestGenerateAnswerEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.GenerateAnswer(context.Background(), "What is KYC?", "context")
	if err == nil {
		t.Fatal("expected error for response with no choices")
	}
}

func TestGenerateEmbeddingEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.GenerateEmbedding(context.Background(), "some text")
	if err == nil {
		t.Fatal("expected error for embedding response with no data")
	}
}

func TestGenerateAnswerSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"KYC stands for Know Your Customer."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	answer, err := c.GenerateAnswer(context.Background(), "What is KYC?", "context")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "KYC stands for Know Your Customer." {
		t.Errorf("unexpected answer: %q", answer)
	}
}
