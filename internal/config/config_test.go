package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDefaults verifies all default values are applied when no config file exists.
func TestDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.CodeModel != "qwen2.5-coder:7b" {
		t.Errorf("Ollama.CodeModel = %q", cfg.Ollama.CodeModel)
	}
	if cfg.Ollama.AuxModel != "gemma3" {
		t.Errorf("Ollama.AuxModel = %q", cfg.Ollama.AuxModel)
	}
	if cfg.Ollama.EmbedModel != "all-minilm" {
		t.Errorf("Ollama.EmbedModel = %q", cfg.Ollama.EmbedModel)
	}
	if cfg.Memory.Dimension != 384 {
		t.Errorf("Memory.Dimension = %d, want 384", cfg.Memory.Dimension)
	}
	if cfg.Generation.CodeNumPredict != 16384 || cfg.Generation.ExplainNumPredict != 2048 {
		t.Errorf("Generation = %+v", cfg.Generation)
	}
	if cfg.Generation.Temperature != 0.7 || !cfg.Generation.Stream || cfg.Generation.MaxConcurrent != 1 {
		t.Errorf("Generation = %+v", cfg.Generation)
	}
	if cfg.Server.Port != 4100 || cfg.Server.MaxConns != 4 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Log.Format != "pretty" {
		t.Errorf("Log.Format = %q", cfg.Log.Format)
	}
}

// TestYAMLParsing verifies that nested sections are read from the YAML file.
func TestYAMLParsing(t *testing.T) {
	path := writeTempConfig(t, `
ollama:
  base_url: http://custom:11434
  code_model: custom-coder
  aux_model: custom-aux
  embed_model: custom-embed
memory:
  dimension: 768
generation:
  code_num_predict: 4096
  temperature: 0.2
  stream: false
  system_prompt: be brief
storage:
  data_dir: /tmp/christopher-test
server:
  port: 5000
log:
  level: debug
  format: json
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ollama.BaseURL != "http://custom:11434" || cfg.Ollama.CodeModel != "custom-coder" ||
		cfg.Ollama.AuxModel != "custom-aux" || cfg.Ollama.EmbedModel != "custom-embed" {
		t.Errorf("Ollama = %+v", cfg.Ollama)
	}
	if cfg.Memory.Dimension != 768 {
		t.Errorf("Memory.Dimension = %d", cfg.Memory.Dimension)
	}
	if cfg.Generation.CodeNumPredict != 4096 || cfg.Generation.Temperature != 0.2 ||
		cfg.Generation.Stream || cfg.Generation.SystemPrompt != "be brief" {
		t.Errorf("Generation = %+v", cfg.Generation)
	}
	if cfg.Generation.ExplainNumPredict != 2048 {
		t.Errorf("unset key lost its default: ExplainNumPredict = %d", cfg.Generation.ExplainNumPredict)
	}
	if cfg.Storage.DataDir != "/tmp/christopher-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	path := writeTempConfig(t, "ollama:\n  code_model: file-model\n")

	t.Setenv("CHRISTOPHER_OLLAMA_CODE_MODEL", "env-model")
	t.Setenv("CHRISTOPHER_SERVER_PORT", "6000")
	t.Setenv("CHRISTOPHER_GENERATION_STREAM", "false")
	t.Setenv("CHRISTOPHER_GENERATION_TEMPERATURE", "0.1")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ollama.CodeModel != "env-model" {
		t.Errorf("CodeModel = %q, want env-model", cfg.Ollama.CodeModel)
	}
	if cfg.Server.Port != 6000 || cfg.Generation.Stream || cfg.Generation.Temperature != 0.1 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestEnvOverride_BadIntKeepsDefault(t *testing.T) {
	t.Setenv("CHRISTOPHER_SERVER_PORT", "not-a-number")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default 4100", cfg.Server.Port)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"zero dimension", "memory:\n  dimension: 0\n", "memory.dimension"},
		{"bad log format", "log:\n  format: xml\n", "log.format"},
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"zero concurrency", "generation:\n  max_concurrent: 0\n", "generation.max_concurrent"},
		{"non-integer", "server:\n  port: abc\n", "server.port"},
		{"malformed yaml", "ollama: [unclosed\n", "parsing config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(writeTempConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestSetKey_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "christopher", "config.yaml")
	b, err := newFileBackend(path)
	if err != nil {
		t.Fatalf("newFileBackend: %v", err)
	}

	for key, val := range map[string]string{
		"ollama.code_model":      "deepseek-coder",
		"server.max_conns":       "8",
		"generation.stream":      "false",
		"generation.temperature": "0.3",
	} {
		if err := setKey(b, key, val); err != nil {
			t.Fatalf("setKey(%s): %v", key, err)
		}
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Ollama.CodeModel != "deepseek-coder" || cfg.Server.MaxConns != 8 ||
		cfg.Generation.Stream || cfg.Generation.Temperature != 0.3 {
		t.Errorf("cfg = %+v", cfg)
	}

	if err := b.Delete("ollama.code_model"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	cfg, _ = LoadFrom(path)
	if cfg.Ollama.CodeModel != "qwen2.5-coder:7b" {
		t.Errorf("deleted key did not fall back to default: %q", cfg.Ollama.CodeModel)
	}
}

func TestSetKey_Rejects(t *testing.T) {
	b, _ := newFileBackend(filepath.Join(t.TempDir(), "config.yaml"))
	if err := setKey(b, "nope.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := setKey(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(b, "generation.stream", "maybe"); err == nil {
		t.Error("expected error for non-bool stream")
	}
}

func TestShowAll_CoversEveryKey(t *testing.T) {
	infos := ShowAll(defaults())
	if len(infos) != len(ValidKeys()) {
		t.Fatalf("ShowAll returned %d keys, ValidKeys %d", len(infos), len(ValidKeys()))
	}
	for _, info := range infos {
		if !strings.HasPrefix(info.EnvVar, "CHRISTOPHER_") {
			t.Errorf("%s env var = %q", info.Key, info.EnvVar)
		}
	}
}
