package config

import (
	"fmt"
	"net/url"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	Resume   ResumeConfig
	MCP      MCPConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type PipelineConfig struct {
	BaseURL string
	APIKey  string
}

type ResumeConfig struct {
	MaxUploadBytes int
}

type MCPConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Pipeline: PipelineConfig{
			BaseURL: "http://localhost:8000",
		},
		Resume: ResumeConfig{
			MaxUploadBytes: 10 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/trajectory/config.json, then applies TRAJECTORY_*
// environment overrides. The pipeline API key is never read from the config
// file; it comes from TRAJECTORY_PIPELINE_API_KEY or the secrets file.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), NewSecrets())
}

func loadWith(b ConfigBackend, secrets SecretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Pipeline.APIKey == "" {
		if key, err := secrets.Get(pipelineKeyAccount); err == nil && key != "" {
			cfg.Pipeline.APIKey = key
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	u, err := url.Parse(c.Pipeline.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid config: pipeline.base_url %q is not an absolute URL", c.Pipeline.BaseURL)
	}
	if c.Resume.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid config: resume.max_upload_bytes must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid config: log.level %q (want debug, info, warn or error)", c.Log.Level)
	}
	return nil
}
