package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/christopher/internal/storage"
	"github.com/kalambet/christopher/internal/task"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Runner executes one assistant task.
type Runner interface {
	Run(ctx context.Context, req task.Request) (task.Result, error)
}

// Deps holds what the HTTP and MCP surfaces need.
type Deps struct {
	Assistant Runner
	Store     *storage.Store
}

// TaskRequest is the JSON body of POST /v1/tasks.
type TaskRequest struct {
	Task                string `json:"task"`
	Input               string `json:"input"`
	Language            string `json:"language"`
	ExplanationLanguage string `json:"explanation_language,omitempty"`
}

// NewHandler returns the local REST API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/v1/tasks", handleRunTask(deps))
	r.Get("/v1/interactions", handleListInteractions(deps))
	r.Get("/v1/interactions/{id}", handleGetInteraction(deps))
	r.Get("/v1/memory/stats", handleMemoryStats(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleRunTask(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var body TaskRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		req, err := body.toTask()
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		res, err := deps.Assistant.Run(r.Context(), req)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			httpError(w, http.StatusServiceUnavailable, "busy", "task not started: %v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

func (b TaskRequest) toTask() (task.Request, error) {
	typ, err := task.ParseType(b.Task)
	if err != nil {
		return task.Request{}, err
	}
	req := task.Request{
		Type:                typ,
		Input:               b.Input,
		Language:            b.Language,
		ExplanationLanguage: b.ExplanationLanguage,
	}
	if err := req.Validate(); err != nil {
		return task.Request{}, err
	}
	return req, nil
}

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		interactions, err := deps.Store.ListInteractions(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list interactions: %v", err)
			return
		}

		if interactions == nil {
			interactions = []storage.Interaction{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(interactions)
	}
}

func handleGetInteraction(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		interaction, err := deps.Store.GetInteraction(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "interaction not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get interaction: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(interaction)
	}
}

func handleMemoryStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Store.MemoryStats(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read memory stats: %v", err)
			return
		}
		if stats.BlobBytes == nil {
			stats.BlobBytes = []int{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
