package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/christopher/internal/ollama"
)

// Generator runs one blocking completion.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (string, error)
}

// errEmptyPrompt is returned when the auxiliary model answers with nothing.
var errEmptyPrompt = errors.New("auxiliary model returned an empty prompt")

// Engineer turns a natural-language description into a prompt for the code
// model using the auxiliary model.
type Engineer struct {
	client Generator
	model  string
}

// NewEngineer creates an Engineer backed by model.
func NewEngineer(c Generator, model string) *Engineer {
	return &Engineer{client: c, model: model}
}

// Rewrite returns the engineered English prompt for description.
func (e *Engineer) Rewrite(ctx context.Context, description, language string) (string, error) {
	out, err := e.client.Generate(ctx, ollama.GenerateRequest{
		Model:  e.model,
		Prompt: EngineerPrompt(description, language),
	})
	if err != nil {
		return "", fmt.Errorf("engineering prompt: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmptyPrompt
	}
	return out, nil
}
