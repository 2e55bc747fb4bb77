// Package prompt maps a task request onto the model, prompt text and
// generation options used to answer it.
package prompt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/christopher/internal/ollama"
	"github.com/kalambet/christopher/internal/task"
)

// Options carries the model names and generation parameters the router
// writes into plans.
type Options struct {
	CodeModel         string
	AuxModel          string
	System            string
	CodeNumPredict    int
	ExplainNumPredict int
	Temperature       float64
	Stream            bool
}

// Plan is a fully built generation request for one task.
type Plan struct {
	Prompt      string
	Model       string
	System      string
	NumPredict  int
	// Temperature is nil when the model default applies.
	Temperature *float64
	Stream      bool
	// Degraded is set when prompt engineering failed and Prompt holds the
	// placeholder text.
	Degraded bool
}

// Request converts the plan into a backend request.
func (p Plan) Request() ollama.GenerateRequest {
	return ollama.GenerateRequest{
		Model:       p.Model,
		Prompt:      p.Prompt,
		System:      p.System,
		NumPredict:  p.NumPredict,
		Temperature: p.Temperature,
	}
}

// Router builds plans for each task type.
type Router struct {
	engineer *Engineer
	opts     Options
	logger   *slog.Logger
}

// NewRouter creates a Router. The auxiliary model in opts is used for both
// prompt engineering and explanations.
func NewRouter(gen Generator, opts Options, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.System == "" {
		opts.System = DefaultSystemPrompt
	}
	return &Router{
		engineer: NewEngineer(gen, opts.AuxModel),
		opts:     opts,
		logger:   logger,
	}
}

// Route builds the plan for req. It only fails for an unknown task type;
// a failed engineering stage yields a degraded plan instead.
func (r *Router) Route(ctx context.Context, req task.Request) (Plan, error) {
	switch req.Type {
	case task.GenerateFromDescription:
		p := r.codePlan("")
		engineered, err := r.engineer.Rewrite(ctx, req.Input, req.Language)
		if err != nil {
			r.logger.Error("prompt engineering failed", "model", r.opts.AuxModel, "error", err)
			p.Prompt = task.SentinelPromptUnavailable
			p.Degraded = true
			return p, nil
		}
		p.Prompt = engineered
		return p, nil
	case task.Explain:
		return Plan{
			Prompt:     ExplainPrompt(req.Input, req.ExplanationLanguage),
			Model:      r.opts.AuxModel,
			NumPredict: r.opts.ExplainNumPredict,
		}, nil
	case task.Complete:
		return r.codePlan(CompletePrompt(req.Input, req.Language)), nil
	case task.Debug:
		return r.codePlan(DebugPrompt(req.Input, req.Language)), nil
	}
	return Plan{}, fmt.Errorf("no route for task %v", req.Type)
}

func (r *Router) codePlan(prompt string) Plan {
	temp := r.opts.Temperature
	return Plan{
		Prompt:      prompt,
		Model:       r.opts.CodeModel,
		System:      r.opts.System,
		NumPredict:  r.opts.CodeNumPredict,
		Temperature: &temp,
		Stream:      r.opts.Stream,
	}
}
