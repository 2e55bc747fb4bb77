// Package pipeline runs one assistant task end to end: build the prompt,
// dispatch it, aggregate the answer, then log the interaction and record it
// in long-term memory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kalambet/christopher/internal/memory"
	"github.com/kalambet/christopher/internal/ollama"
	"github.com/kalambet/christopher/internal/prompt"
	"github.com/kalambet/christopher/internal/storage"
	"github.com/kalambet/christopher/internal/task"
)

// Generator is the generation half of the backend client.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (string, error)
	GenerateStream(ctx context.Context, req ollama.GenerateRequest) (*ollama.Stream, error)
}

// InteractionLog appends one row to the audit log.
type InteractionLog interface {
	SaveInteraction(ctx context.Context, i storage.Interaction) (storage.Interaction, error)
}

// MemoryRecorder stores an exchange in long-term memory.
type MemoryRecorder interface {
	Record(ctx context.Context, userInput, response string) (memory.Record, error)
}

// Degraded stage names reported in task.Result.Degraded.
const (
	StagePrompt     = "prompt"
	StageGeneration = "generation"
	StageLog        = "log"
	StageEmbedding  = "embedding"
	StageMemory     = "memory"
)

// Option configures an Assistant.
type Option func(*Assistant)

// WithMaxConcurrent caps how many runs execute at once. Values below 1 are
// ignored.
func WithMaxConcurrent(n int) Option {
	return func(a *Assistant) {
		if n >= 1 {
			a.maxConcurrent = n
		}
	}
}

// Assistant orchestrates task runs. By default runs are serialised: at most
// one interaction executes at a time.
type Assistant struct {
	router *prompt.Router
	gen    Generator
	log    InteractionLog
	memory MemoryRecorder
	sem    *semaphore.Weighted
	logger *slog.Logger

	maxConcurrent int
}

// NewAssistant creates an Assistant wired to its collaborators.
func NewAssistant(router *prompt.Router, gen Generator, log InteractionLog, mem MemoryRecorder, logger *slog.Logger, opts ...Option) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assistant{
		router:        router,
		gen:           gen,
		log:           log,
		memory:        mem,
		logger:        logger,
		maxConcurrent: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.sem = semaphore.NewWeighted(int64(a.maxConcurrent))
	return a
}

// Run executes req and returns once the exchange is logged and recorded.
// It only returns an error for an invalid request or when ctx is done
// before the run starts; every stage failure degrades instead.
func (a *Assistant) Run(ctx context.Context, req task.Request) (task.Result, error) {
	return a.RunStream(ctx, req, nil)
}

// RunStream is Run with onFragment called for every response fragment as
// it arrives. Non-streaming plans deliver the whole answer as one fragment.
func (a *Assistant) RunStream(ctx context.Context, req task.Request, onFragment func(string)) (task.Result, error) {
	if err := req.Validate(); err != nil {
		return task.Result{}, err
	}
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return task.Result{}, fmt.Errorf("waiting for running task: %w", err)
	}
	defer a.sem.Release(1)

	start := time.Now()
	logger := a.logger.With("task", req.Type.String())
	var res task.Result
	stage := func(s task.Stage) { logger.Debug("task stage", "stage", s.String()) }

	stage(task.Received)

	plan, err := a.router.Route(ctx, req)
	if err != nil {
		return task.Result{}, err
	}
	if plan.Degraded {
		res.Degraded = append(res.Degraded, StagePrompt)
	}
	res.Prompt = plan.Prompt
	stage(task.PromptBuilt)

	res.Response = a.generate(ctx, logger, plan, onFragment, &res, stage)
	stage(task.Aggregated)

	// Persistence outlives a cancelled caller so the exchange is never lost.
	persistCtx := context.WithoutCancel(ctx)

	saved, err := a.log.SaveInteraction(persistCtx, storage.Interaction{
		TaskType:  req.Type.String(),
		UserInput: req.Input,
		Language:  req.Language,
		Prompt:    res.Prompt,
		Response:  res.Response,
	})
	if err != nil {
		logger.Error("logging interaction failed", "error", err)
		res.Degraded = append(res.Degraded, StageLog)
	} else {
		res.InteractionID = saved.ID
	}
	stage(task.Logged)

	rec, err := a.memory.Record(persistCtx, req.Input, res.Response)
	if rec.ZeroEmbedding {
		res.Degraded = append(res.Degraded, StageEmbedding)
	}
	if err != nil {
		logger.Error("saving to long-term memory failed", "error", err)
		res.Degraded = append(res.Degraded, StageMemory)
	} else {
		res.MemoryID = rec.Entry.ID
	}
	stage(task.MemoryWritten)

	stage(task.Done)
	logger.Info("task complete",
		"model", plan.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"degraded", res.Degraded,
	)
	return res, nil
}

// generate dispatches plan and returns the final text, substituting a
// sentinel when the backend fails or produces nothing.
func (a *Assistant) generate(ctx context.Context, logger *slog.Logger, plan prompt.Plan, onFragment func(string), res *task.Result, stage func(task.Stage)) string {
	emit := func(s string) {
		if onFragment != nil {
			onFragment(s)
		}
	}

	if !plan.Stream {
		stage(task.Dispatched)
		out, err := a.gen.Generate(ctx, plan.Request())
		if err != nil {
			logger.Error("generation failed", "model", plan.Model, "error", err)
			res.Degraded = append(res.Degraded, StageGeneration)
			return task.SentinelGenerationUnavailable
		}
		if strings.TrimSpace(out) == "" {
			return task.SentinelNoOutput
		}
		emit(out)
		return out
	}

	stream, err := a.gen.GenerateStream(ctx, plan.Request())
	if err != nil {
		logger.Error("generation failed", "model", plan.Model, "error", err)
		res.Degraded = append(res.Degraded, StageGeneration)
		return task.SentinelGenerationUnavailable
	}
	defer stream.Close()
	stage(task.Dispatched)

	out := ollama.Aggregate(func(yield func(string) bool) {
		for f := range stream.Fragments() {
			emit(f)
			if !yield(f) {
				return
			}
		}
	})
	if err := stream.Err(); err != nil {
		// A truncated answer is kept as is.
		logger.Warn("stream ended early", "model", plan.Model, "error", err)
		res.Degraded = append(res.Degraded, StageGeneration)
		if errors.Is(err, ollama.ErrUnavailable) && out == task.SentinelNoOutput {
			return task.SentinelGenerationUnavailable
		}
	}
	if n := stream.Skipped(); n > 0 {
		logger.Warn("dropped malformed stream fragments", "count", n)
	}
	return out
}
