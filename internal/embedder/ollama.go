package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/quill/internal/common"
	"github.com/ternarybob/quill/internal/interfaces"
)

// Ollama's llama runner can crash under concurrent embedding requests, so
// all calls are serialized through one mutex.
var embedMu sync.Mutex

// OllamaEmbedder produces embeddings via an Ollama-compatible /api/embed
// endpoint. Vectors come back L2-normalized.
type OllamaEmbedder struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
	logger     arbor.ILogger
}

type embedRequest struct {
	Model string      `json:"model"`
	Input interface{} `json:"input"` // string or []string
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewFromConfig builds the embedder from application config
func NewFromConfig(cfg *common.Config, logger arbor.ILogger) *OllamaEmbedder {
	timeout := cfg.Embedder.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEmbedder{
		client:     &http.Client{Timeout: timeout},
		baseURL:    cfg.Embedder.BaseURL,
		model:      cfg.Embedder.Model,
		dimensions: cfg.Embedder.Dimensions,
		logger:     logger,
	}
}

func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed converts a batch of texts into vectors, one per input, in order
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embedMu.Lock()
	defer embedMu.Unlock()

	var input interface{} = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	reqBody, err := json.Marshal(embedRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request to %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding API returned %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}

	e.logger.Debug().
		Str("model", e.model).
		Int("count", len(texts)).
		Dur("duration", time.Since(start)).
		Msg("Generated embeddings")

	return response.Embeddings, nil
}

var _ interfaces.Embedder = (*OllamaEmbedder)(nil)
