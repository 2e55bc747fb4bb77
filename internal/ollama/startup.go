package ollama

import (
	"context"
	"fmt"
	"io"
	"time"
)

// EnsureReady checks that Ollama is running and the given models are available.
// It pulls missing models automatically with progress output written to w.
// When warmModel is non-empty it is sent a one-token generation so the first
// real request doesn't pay the cold-load penalty.
// Returns a non-nil error if Ollama is unreachable or a pull fails.
func EnsureReady(ctx context.Context, c *Client, models []string, warmModel string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return fmt.Errorf("%w: Ollama is not running at %s. Start it with: ollama serve", ErrUnavailable, c.BaseURL())
	}

	seen := make(map[string]bool, len(models))
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		if c.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: ready\n", model)
			continue
		}

		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := c.PullModel(ctx, model, func(p PullProgress) {
			if p.Total > 0 {
				pct := float64(p.Completed) / float64(p.Total) * 100
				fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, pct)
			} else {
				fmt.Fprintf(w, "  %s\n", p.Status)
			}
		})
		if err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}

	if warmModel == "" {
		return nil
	}

	fmt.Fprintf(w, "model %s: warming up...\n", warmModel)
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := c.Generate(warmCtx, GenerateRequest{Model: warmModel, Prompt: "ping", NumPredict: 1})
	if err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed (non-fatal): %v\n", warmModel, err)
	} else {
		fmt.Fprintf(w, "model %s: warm\n", warmModel)
	}

	return nil
}
