package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	DataDir string `yaml:"data_dir"`

	Engine struct {
		BaseURL        string   `yaml:"base_url"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		Platform       string   `yaml:"platform"`
		SampleRate     int      `yaml:"sample_rate"`
		DefaultModel   string   `yaml:"default_model"`
		Models         []string `yaml:"models"`
	} `yaml:"engine"`

	Generation struct {
		MaxTextLength int `yaml:"max_text_length"`
	} `yaml:"generation"`

	Tasks struct {
		RetentionHours       int `yaml:"retention_hours"`
		SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
	} `yaml:"tasks"`

	LogLevel  string `yaml:"log_level"`
	SentryDSN string `yaml:"-"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional, environment always wins over the yaml file
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var cfg Config
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Engine.BaseURL == "" {
		cfg.Engine.BaseURL = "http://127.0.0.1:9000"
	}
	if cfg.Engine.TimeoutSeconds == 0 {
		cfg.Engine.TimeoutSeconds = 600
	}
	if cfg.Engine.SampleRate == 0 {
		cfg.Engine.SampleRate = 24000
	}
	if cfg.Generation.MaxTextLength == 0 {
		cfg.Generation.MaxTextLength = 5000
	}
	if cfg.Tasks.RetentionHours == 0 {
		cfg.Tasks.RetentionHours = 24
	}
	if cfg.Tasks.SweepIntervalMinutes == 0 {
		cfg.Tasks.SweepIntervalMinutes = 60
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if v := os.Getenv("ENGINE_BASE_URL"); v != "" {
		cfg.Engine.BaseURL = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	cfg.SentryDSN = os.Getenv("SENTRY_DSN")

	return &cfg, nil
}

func (c *Config) VoicesDir() string {
	return filepath.Join(c.DataDir, "voices")
}

func (c *Config) GenerationsDir() string {
	return filepath.Join(c.DataDir, "generations")
}

func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}

func (c *Config) TaskRetention() time.Duration {
	return time.Duration(c.Tasks.RetentionHours) * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Tasks.SweepIntervalMinutes) * time.Minute
}
