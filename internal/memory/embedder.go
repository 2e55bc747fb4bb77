package memory

import (
	"context"
	"log/slog"
)

// EmbeddingClient produces an embedding vector for text using a named model.
type EmbeddingClient interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Embedder turns text into a fixed-dimension vector. It never fails: when
// the backend is unreachable or answers with the wrong dimension the zero
// vector is returned instead.
type Embedder struct {
	client EmbeddingClient
	model  string
	dim    int
	logger *slog.Logger
}

// NewEmbedder creates an Embedder producing vectors of length dim.
func NewEmbedder(c EmbeddingClient, model string, dim int, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{client: c, model: model, dim: dim, logger: logger}
}

// Embed returns the embedding for text, always exactly the configured
// dimension long.
func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	vec, _ := e.embed(ctx, text)
	return vec
}

// embed is Embed that also reports whether the returned vector is a placeholder.
func (e *Embedder) embed(ctx context.Context, text string) ([]float32, bool) {
	vec, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		e.logger.Error("embedding failed, storing zero vector", "model", e.model, "error", err)
		return make([]float32, e.dim), true
	}
	if len(vec) != e.dim {
		e.logger.Error("embedding dimension mismatch, storing zero vector",
			"model", e.model, "got", len(vec), "want", e.dim)
		return make([]float32, e.dim), true
	}
	return vec, false
}
