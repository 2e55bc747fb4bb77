package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "ollama.base_url", typ: kString, env: "CHRISTOPHER_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.code_model", typ: kString, env: "CHRISTOPHER_OLLAMA_CODE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.CodeModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.CodeModel },
	},
	{
		key: "ollama.aux_model", typ: kString, env: "CHRISTOPHER_OLLAMA_AUX_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.AuxModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.AuxModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "CHRISTOPHER_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "memory.dimension", typ: kInt, env: "CHRISTOPHER_MEMORY_DIMENSION",
		apply:   func(cfg *Config, v any) { cfg.Memory.Dimension = v.(int) },
		extract: func(cfg Config) any { return cfg.Memory.Dimension },
	},
	{
		key: "generation.code_num_predict", typ: kInt, env: "CHRISTOPHER_GENERATION_CODE_NUM_PREDICT",
		apply:   func(cfg *Config, v any) { cfg.Generation.CodeNumPredict = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.CodeNumPredict },
	},
	{
		key: "generation.explain_num_predict", typ: kInt, env: "CHRISTOPHER_GENERATION_EXPLAIN_NUM_PREDICT",
		apply:   func(cfg *Config, v any) { cfg.Generation.ExplainNumPredict = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.ExplainNumPredict },
	},
	{
		key: "generation.temperature", typ: kFloat, env: "CHRISTOPHER_GENERATION_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Generation.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Generation.Temperature },
	},
	{
		key: "generation.system_prompt", typ: kString, env: "CHRISTOPHER_GENERATION_SYSTEM_PROMPT",
		apply:   func(cfg *Config, v any) { cfg.Generation.SystemPrompt = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.SystemPrompt },
	},
	{
		key: "generation.stream", typ: kBool, env: "CHRISTOPHER_GENERATION_STREAM",
		apply:   func(cfg *Config, v any) { cfg.Generation.Stream = v.(bool) },
		extract: func(cfg Config) any { return cfg.Generation.Stream },
	},
	{
		key: "generation.max_concurrent", typ: kInt, env: "CHRISTOPHER_GENERATION_MAX_CONCURRENT",
		apply:   func(cfg *Config, v any) { cfg.Generation.MaxConcurrent = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.MaxConcurrent },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CHRISTOPHER_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "server.port", typ: kInt, env: "CHRISTOPHER_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "CHRISTOPHER_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "log.level", typ: kString, env: "CHRISTOPHER_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "CHRISTOPHER_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
