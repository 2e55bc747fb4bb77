package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/christopher/internal/storage"
	"github.com/kalambet/christopher/internal/task"
)

// mockRunner records requests and answers with a canned result.
type mockRunner struct {
	got    []task.Request
	result task.Result
	err    error
}

func (m *mockRunner) Run(_ context.Context, req task.Request) (task.Result, error) {
	m.got = append(m.got, req)
	if m.err != nil {
		return task.Result{}, m.err
	}
	return m.result, nil
}

func newTestDeps(t *testing.T, runner *mockRunner) (Deps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return Deps{Assistant: runner, Store: store}, store
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	deps, _ := newTestDeps(t, &mockRunner{})
	rr := serve(NewHandler(deps), http.MethodGet, "/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestRunTask_OK(t *testing.T) {
	runner := &mockRunner{result: task.Result{
		Response:      "This prints hi.",
		Prompt:        "explain it",
		InteractionID: "i-1",
		MemoryID:      "m-1",
	}}
	deps, _ := newTestDeps(t, runner)

	rr := serve(NewHandler(deps), http.MethodPost, "/v1/tasks",
		`{"task":"explain","input":"print('hi')","language":"python","explanation_language":"English"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp task.Result
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Response != "This prints hi." || resp.InteractionID != "i-1" || resp.MemoryID != "m-1" {
		t.Errorf("response = %+v", resp)
	}

	if len(runner.got) != 1 {
		t.Fatalf("runner called %d times", len(runner.got))
	}
	want := task.Request{Type: task.Explain, Input: "print('hi')", Language: "python", ExplanationLanguage: "English"}
	if runner.got[0] != want {
		t.Errorf("request = %+v, want %+v", runner.got[0], want)
	}
}

func TestRunTask_AcceptsMenuDigit(t *testing.T) {
	runner := &mockRunner{}
	deps, _ := newTestDeps(t, runner)

	rr := serve(NewHandler(deps), http.MethodPost, "/v1/tasks", `{"task":"4","input":"x = ","language":"python"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if runner.got[0].Type != task.Debug {
		t.Errorf("Type = %v, want debug", runner.got[0].Type)
	}
}

func TestRunTask_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"task":`},
		{"unknown task", `{"task":"refactor","input":"x"}`},
		{"empty input", `{"task":"debug","input":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			deps, _ := newTestDeps(t, runner)
			rr := serve(NewHandler(deps), http.MethodPost, "/v1/tasks", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
			if len(runner.got) != 0 {
				t.Error("runner should not be called for invalid input")
			}
		})
	}
}

func TestRunTask_Busy(t *testing.T) {
	deps, _ := newTestDeps(t, &mockRunner{err: context.DeadlineExceeded})
	rr := serve(NewHandler(deps), http.MethodPost, "/v1/tasks", `{"task":"explain","input":"x"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestRunTask_RunnerRejects(t *testing.T) {
	deps, _ := newTestDeps(t, &mockRunner{err: errors.New("no route for task")})
	rr := serve(NewHandler(deps), http.MethodPost, "/v1/tasks", `{"task":"explain","input":"x"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestInteractions_ListAndGet(t *testing.T) {
	deps, store := newTestDeps(t, &mockRunner{})
	ctx := context.Background()

	saved, err := store.SaveInteraction(ctx, storage.Interaction{TaskType: "complete", UserInput: "def f", Response: "def f(): pass"})
	if err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}
	h := NewHandler(deps)

	rr := serve(h, http.MethodGet, "/v1/interactions?limit=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list []storage.Interaction
	json.NewDecoder(rr.Body).Decode(&list)
	if len(list) != 1 || list[0].ID != saved.ID {
		t.Errorf("list = %+v", list)
	}

	rr = serve(h, http.MethodGet, "/v1/interactions/"+saved.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var got storage.Interaction
	json.NewDecoder(rr.Body).Decode(&got)
	if got.Response != "def f(): pass" || got.TaskType != "complete" {
		t.Errorf("got = %+v", got)
	}

	rr = serve(h, http.MethodGet, "/v1/interactions/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rr.Code)
	}
}

func TestInteractions_EmptyListIsArray(t *testing.T) {
	deps, _ := newTestDeps(t, &mockRunner{})
	rr := serve(NewHandler(deps), http.MethodGet, "/v1/interactions", "")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rr.Body.String())
	}
}

func TestMemoryStats(t *testing.T) {
	deps, store := newTestDeps(t, &mockRunner{})
	if _, err := store.SaveMemory(context.Background(), "a\nb", make([]float32, 384)); err != nil {
		t.Fatalf("SaveMemory: %v", err)
	}

	rr := serve(NewHandler(deps), http.MethodGet, "/v1/memory/stats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var stats storage.MemoryStats
	json.NewDecoder(rr.Body).Decode(&stats)
	if stats.Entries != 1 || stats.Degraded != 1 || len(stats.BlobBytes) != 1 || stats.BlobBytes[0] != 1536 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=-1", 20},
		{"limit=abc", 20},
		{"limit=1000", 100},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/v1/interactions?"+tt.query, nil)
		if got := parseIntParam(r, "limit", 20, 100); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
