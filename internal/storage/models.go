package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Interaction is one row of the append-only audit log.
type Interaction struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	TaskType  string    `json:"task_type"`
	UserInput string    `json:"user_input"`
	Language  string    `json:"language"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
}

// MemoryEntry is one (text, embedding) pair of the long-term memory.
type MemoryEntry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
}
