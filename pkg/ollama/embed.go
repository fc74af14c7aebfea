// Package ollama embeds chunk texts with an Ollama server's batch
// /api/embed endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of texts sent per request.
const DefaultBatchSize = 64

// EmbedClient calls Ollama's /api/embed.
type EmbedClient struct {
	baseURL   string
	model     string
	batchSize int
	dims      int
	client    *http.Client
	limiter   *rate.Limiter
}

// Option configures an EmbedClient.
type Option func(*EmbedClient)

// WithHTTPClient replaces the traced default client.
func WithHTTPClient(c *http.Client) Option { return func(e *EmbedClient) { e.client = c } }

// WithBatchSize sets how many texts go in one request.
func WithBatchSize(n int) Option {
	return func(e *EmbedClient) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithDims makes Embed reject vectors of any other length.
func WithDims(n int) Option { return func(e *EmbedClient) { e.dims = n } }

// WithRateLimit caps requests per second; zero or less disables the limit.
func WithRateLimit(rps float64) Option {
	return func(e *EmbedClient) {
		if rps > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewEmbedClient creates an Ollama embedding client.
func NewEmbedClient(baseURL, model string, opts ...Option) *EmbedClient {
	c := &EmbedClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		batchSize: DefaultBatchSize,
		client: &http.Client{
			Timeout:   5 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns one vector per text, in order.
func (c *EmbedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += c.batchSize {
		end := min(i+c.batchSize, len(texts))
		vecs, err := c.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("ollama embed [%d:%d]: %w", i, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *EmbedClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	body, err := json.Marshal(embedReq{Model: c.model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result embedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("server: %s", result.Error)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}
	if c.dims > 0 {
		for j, v := range result.Embeddings {
			if len(v) != c.dims {
				return nil, fmt.Errorf("embedding %d has %d dims, want %d", j, len(v), c.dims)
			}
		}
	}
	return result.Embeddings, nil
}
