package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "TRAJECTORY_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "TRAJECTORY_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "pipeline.base_url", typ: kString, env: "TRAJECTORY_PIPELINE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.BaseURL },
	},
	{
		key: "pipeline.api_key", typ: kString, env: "TRAJECTORY_PIPELINE_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Pipeline.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.APIKey },
	},
	{
		key: "resume.max_upload_bytes", typ: kInt, env: "TRAJECTORY_RESUME_MAX_UPLOAD_BYTES",
		apply:   func(cfg *Config, v any) { cfg.Resume.MaxUploadBytes = v.(int) },
		extract: func(cfg Config) any { return cfg.Resume.MaxUploadBytes },
	},
	{
		key: "mcp.enabled", typ: kBool, env: "TRAJECTORY_MCP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.MCP.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.MCP.Enabled },
	},
	{
		key: "log.level", typ: kString, env: "TRAJECTORY_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
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
					slog.Warn("could not parse bool from config, using default", "key", s.key, "value", v, "error", err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
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
				slog.Warn("could not parse integer from env, using default", "env", s.env, "value", raw, "error", err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				slog.Warn("could not parse bool from env, using default", "env", s.env, "value", raw, "error", err)
			}
		}
	}
}
