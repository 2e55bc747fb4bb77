package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/christopher/internal/storage"
)

// Saver persists a memory entry.
type Saver interface {
	SaveMemory(ctx context.Context, text string, embedding []float32) (storage.MemoryEntry, error)
}

// Writer records completed exchanges into long-term memory.
type Writer struct {
	embedder *Embedder
	store    Saver
	logger   *slog.Logger
}

// NewWriter creates a Writer.
func NewWriter(e *Embedder, s Saver, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{embedder: e, store: s, logger: logger}
}

// Record is the outcome of one Writer.Record call.
type Record struct {
	Entry storage.MemoryEntry
	// ZeroEmbedding is set when the embedding backend failed and the entry
	// holds the zero vector.
	ZeroEmbedding bool
}

// Text joins the user input and the model response the way memory stores them.
func Text(userInput, response string) string {
	return userInput + "\n" + response
}

// Record embeds userInput and response together and stores them. Sentinel
// responses are stored like any other text.
func (w *Writer) Record(ctx context.Context, userInput, response string) (Record, error) {
	text := Text(userInput, response)
	vec, zero := w.embedder.embed(ctx, text)

	entry, err := w.store.SaveMemory(ctx, text, vec)
	if err != nil {
		return Record{ZeroEmbedding: zero}, fmt.Errorf("recording memory: %w", err)
	}
	w.logger.Debug("memory recorded", "id", entry.ID, "dims", len(vec), "zero", zero)
	return Record{Entry: entry, ZeroEmbedding: zero}, nil
}
