// Package task defines the closed set of assistant tasks and the
// request/result values exchanged between callers and the pipeline.
package task

import (
	"fmt"
	"strings"
)

// Type identifies one of the four assistant tasks.
type Type int

const (
	GenerateFromDescription Type = iota + 1
	Explain
	Complete
	Debug
)

// All lists every task type in menu order.
var All = []Type{GenerateFromDescription, Explain, Complete, Debug}

// String returns the canonical name stored in the interactions table.
func (t Type) String() string {
	switch t {
	case GenerateFromDescription:
		return "generate"
	case Explain:
		return "explain"
	case Complete:
		return "complete"
	case Debug:
		return "debug"
	default:
		return fmt.Sprintf("task(%d)", int(t))
	}
}

// Valid reports whether t is one of the known task types.
func (t Type) Valid() bool {
	return t >= GenerateFromDescription && t <= Debug
}

// ParseType accepts a canonical name ("generate", "explain", "complete",
// "debug") or the corresponding menu digit ("1".."4").
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generate", "1":
		return GenerateFromDescription, nil
	case "explain", "2":
		return Explain, nil
	case "complete", "3":
		return Complete, nil
	case "debug", "4":
		return Debug, nil
	}
	return 0, fmt.Errorf("unknown task type %q (want generate, explain, complete or debug)", s)
}

// Request is what a caller hands to the pipeline.
type Request struct {
	Type                Type
	Input               string
	Language            string
	ExplanationLanguage string
}

// Validate checks the caller-supplied fields.
func (r Request) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("invalid task type %d", int(r.Type))
	}
	if strings.TrimSpace(r.Input) == "" {
		return fmt.Errorf("input is required")
	}
	return nil
}

// Result is what the pipeline returns after a run has reached its terminal state.
type Result struct {
	Response      string `json:"response"`
	Prompt        string `json:"prompt"`
	InteractionID string `json:"interaction_id,omitempty"`
	MemoryID      string `json:"memory_id,omitempty"`
	// Degraded names the stages that substituted a placeholder value.
	Degraded []string `json:"degraded,omitempty"`
}

// Stage is a step of a single task execution.
type Stage int

const (
	Received Stage = iota
	PromptBuilt
	Dispatched
	Aggregated
	Logged
	MemoryWritten
	Done
)

func (s Stage) String() string {
	switch s {
	case Received:
		return "received"
	case PromptBuilt:
		return "prompt_built"
	case Dispatched:
		return "dispatched"
	case Aggregated:
		return "aggregated"
	case Logged:
		return "logged"
	case MemoryWritten:
		return "memory_written"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// User-visible placeholders substituted when a stage degrades.
const (
	SentinelGenerationUnavailable = "❌ generation unavailable"
	SentinelNoOutput              = "⚠️ the model produced no output"
	SentinelPromptUnavailable     = "prompt engineering unavailable"
)

// IsSentinel reports whether response is a placeholder substituted for a
// failed or empty generation.
func IsSentinel(response string) bool {
	return response == SentinelGenerationUnavailable || response == SentinelNoOutput
}
