package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Ollama     OllamaConfig
	Memory     MemoryConfig
	Generation GenerationConfig
	Storage    StorageConfig
	Server     ServerConfig
	Log        LogConfig
}

type OllamaConfig struct {
	BaseURL    string
	CodeModel  string
	AuxModel   string
	EmbedModel string
}

type MemoryConfig struct {
	// Dimension is the embedding length every memory entry is stored with.
	Dimension int
}

type GenerationConfig struct {
	CodeNumPredict    int
	ExplainNumPredict int
	Temperature       float64
	SystemPrompt      string
	Stream            bool
	// MaxConcurrent bounds how many tasks run at once.
	MaxConcurrent int
}

type StorageConfig struct {
	DataDir string
}

type ServerConfig struct {
	Port     int
	MaxConns int
}

type LogConfig struct {
	Level  string
	Format string
}

func defaults() Config {
	return Config{
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			CodeModel:  "qwen2.5-coder:7b",
			AuxModel:   "gemma3",
			EmbedModel: "all-minilm",
		},
		Memory: MemoryConfig{
			Dimension: 384,
		},
		Generation: GenerationConfig{
			CodeNumPredict:    16384,
			ExplainNumPredict: 2048,
			Temperature:       0.7,
			Stream:            true,
			MaxConcurrent:     1,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port:     4100,
			MaxConns: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "pretty",
		},
	}
}

// Load reads configuration from the YAML file at
// $XDG_CONFIG_HOME/christopher/config.yaml, then applies CHRISTOPHER_*
// environment variable overrides on top.
func Load() (Config, error) {
	return LoadFrom(FilePath())
}

// LoadFrom is Load with an explicit config file path. A missing file is not
// an error.
func LoadFrom(path string) (Config, error) {
	b, err := newFileBackend(path)
	if err != nil {
		return Config{}, err
	}
	return loadWith(b)
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the rest of the program cannot run with.
func (c Config) Validate() error {
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("invalid config: ollama.base_url must not be empty")
	}
	if c.Memory.Dimension <= 0 {
		return fmt.Errorf("invalid config: memory.dimension must be positive, got %d", c.Memory.Dimension)
	}
	if c.Generation.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid config: generation.max_concurrent must be positive, got %d", c.Generation.MaxConcurrent)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxConns <= 0 {
		return fmt.Errorf("invalid config: server.max_conns must be positive, got %d", c.Server.MaxConns)
	}
	switch c.Log.Format {
	case "pretty", "text", "json":
	default:
		return fmt.Errorf("invalid config: log.format %q (want pretty, text or json)", c.Log.Format)
	}
	return nil
}

// FilePath returns the location of the YAML config file.
func FilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "christopher", "config.yaml")
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "christopher-data"
		}
	}
	return filepath.Join(dir, "christopher")
}
