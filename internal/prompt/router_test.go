package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/christopher/internal/ollama"
	"github.com/kalambet/christopher/internal/task"
)

// mockGenerator implements Generator for testing.
type mockGenerator struct {
	response string
	err      error
	got      []ollama.GenerateRequest
}

func (m *mockGenerator) Generate(_ context.Context, req ollama.GenerateRequest) (string, error) {
	m.got = append(m.got, req)
	return m.response, m.err
}

var testOptions = Options{
	CodeModel:         "qwen2.5-coder:7b",
	AuxModel:          "gemma3",
	CodeNumPredict:    16384,
	ExplainNumPredict: 2048,
	Temperature:       0.7,
	Stream:            true,
}

func TestRoute_Templates(t *testing.T) {
	tests := []struct {
		name       string
		req        task.Request
		wantPrompt string
		wantModel  string
		wantStream bool
		wantTokens int
	}{
		{
			name:       "complete",
			req:        task.Request{Type: task.Complete, Input: "def add(a, b):", Language: "python"},
			wantPrompt: "This is an incomplete code in python:\ndef add(a, b):\nPlease complete the code properly.",
			wantModel:  "qwen2.5-coder:7b",
			wantStream: true,
			wantTokens: 16384,
		},
		{
			name:       "debug",
			req:        task.Request{Type: task.Debug, Input: "int main() { return 0 }", Language: "c"},
			wantPrompt: "This code has errors in c:\nint main() { return 0 }\nPlease debug and fix all issues.",
			wantModel:  "qwen2.5-coder:7b",
			wantStream: true,
			wantTokens: 16384,
		},
		{
			name:       "explain",
			req:        task.Request{Type: task.Explain, Input: "print('hi')", Language: "python", ExplanationLanguage: "English"},
			wantPrompt: ExplainPrompt("print('hi')", "English"),
			wantModel:  "gemma3",
			wantStream: false,
			wantTokens: 2048,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{}
			r := NewRouter(gen, testOptions, nil)
			p, err := r.Route(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Route: %v", err)
			}
			if p.Prompt != tt.wantPrompt {
				t.Errorf("Prompt = %q, want %q", p.Prompt, tt.wantPrompt)
			}
			if p.Model != tt.wantModel || p.Stream != tt.wantStream || p.NumPredict != tt.wantTokens {
				t.Errorf("plan = %+v", p)
			}
			if p.Degraded {
				t.Error("unexpected degraded plan")
			}
			if len(gen.got) != 0 {
				t.Errorf("single-stage task called the auxiliary model %d times", len(gen.got))
			}
		})
	}
}

func TestRoute_CodePlanCarriesSystemPrompt(t *testing.T) {
	r := NewRouter(&mockGenerator{}, testOptions, nil)
	p, _ := r.Route(context.Background(), task.Request{Type: task.Debug, Input: "x", Language: "go"})
	if p.System != DefaultSystemPrompt || p.Temperature == nil || *p.Temperature != 0.7 {
		t.Errorf("plan = %+v", p)
	}
	if req := p.Request(); req.System != p.System || req.NumPredict != 16384 {
		t.Errorf("Request() = %+v", req)
	}
}

func TestRoute_ZeroTemperatureKept(t *testing.T) {
	opts := testOptions
	opts.Temperature = 0
	r := NewRouter(&mockGenerator{}, opts, nil)

	p, _ := r.Route(context.Background(), task.Request{Type: task.Complete, Input: "x", Language: "go"})
	if p.Temperature == nil || *p.Temperature != 0 {
		t.Errorf("code plan Temperature = %v, want explicit 0", p.Temperature)
	}
	if req := p.Request(); req.Temperature == nil || *req.Temperature != 0 {
		t.Errorf("Request().Temperature = %v, want explicit 0", req.Temperature)
	}

	p, _ = r.Route(context.Background(), task.Request{Type: task.Explain, Input: "x"})
	if p.Temperature != nil {
		t.Errorf("explain plan Temperature = %v, want nil", *p.Temperature)
	}
}

func TestRoute_ExplainDefaultsLanguage(t *testing.T) {
	r := NewRouter(&mockGenerator{}, testOptions, nil)
	p, _ := r.Route(context.Background(), task.Request{Type: task.Explain, Input: "x"})
	if !strings.Contains(p.Prompt, "line by line in English") {
		t.Errorf("Prompt = %q", p.Prompt)
	}
	if p.System != "" {
		t.Errorf("explain plan should carry no system prompt, got %q", p.System)
	}
}

func TestRoute_GenerateEngineersPrompt(t *testing.T) {
	gen := &mockGenerator{response: "  Write a Go function that reverses a string.\n"}
	r := NewRouter(gen, testOptions, nil)

	p, err := r.Route(context.Background(), task.Request{
		Type: task.GenerateFromDescription, Input: "reverse a string", Language: "go",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if p.Prompt != "Write a Go function that reverses a string." {
		t.Errorf("Prompt = %q", p.Prompt)
	}
	if p.Model != "qwen2.5-coder:7b" || !p.Stream || p.Degraded {
		t.Errorf("plan = %+v", p)
	}
	if len(gen.got) != 1 {
		t.Fatalf("auxiliary model called %d times, want 1", len(gen.got))
	}
	aux := gen.got[0]
	if aux.Model != "gemma3" || !strings.Contains(aux.Prompt, "reverse a string") || !strings.Contains(aux.Prompt, "go") {
		t.Errorf("engineering request = %+v", aux)
	}
}

func TestRoute_GenerateEngineeringFails(t *testing.T) {
	tests := []struct {
		name string
		gen  *mockGenerator
	}{
		{"backend unavailable", &mockGenerator{err: ollama.ErrUnavailable}},
		{"empty answer", &mockGenerator{response: "  \n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(tt.gen, testOptions, nil)
			p, err := r.Route(context.Background(), task.Request{Type: task.GenerateFromDescription, Input: "x", Language: "go"})
			if err != nil {
				t.Fatalf("Route: %v", err)
			}
			if p.Prompt != task.SentinelPromptUnavailable || !p.Degraded {
				t.Errorf("plan = %+v", p)
			}
			if p.Model != "qwen2.5-coder:7b" {
				t.Errorf("degraded plan must still target the code model, got %q", p.Model)
			}
		})
	}
}

func TestRoute_UnknownType(t *testing.T) {
	r := NewRouter(&mockGenerator{}, testOptions, nil)
	if _, err := r.Route(context.Background(), task.Request{Type: task.Type(9), Input: "x"}); err == nil {
		t.Fatal("expected error for unknown task type")
	}
}

func TestEngineer_WrapsError(t *testing.T) {
	e := NewEngineer(&mockGenerator{err: ollama.ErrUnavailable}, "gemma3")
	_, err := e.Rewrite(context.Background(), "x", "go")
	if !errors.Is(err, ollama.ErrUnavailable) {
		t.Errorf("err = %v, want wrapped ErrUnavailable", err)
	}
}
