// Package config loads server configuration from the environment, with an
// optional YAML file override for deployments that prefer files over env vars.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	DatabaseURL string `yaml:"database_url"`

	// ERP (system of record) connection.
	ERPBaseURL      string        `yaml:"erp_base_url"`
	ERPServiceToken string        `yaml:"erp_service_token"`
	ERPTimeout      time.Duration `yaml:"erp_timeout"`

	// Planner (LLM service) connection.
	PlannerBaseURL string `yaml:"planner_base_url"`
	PlannerAPIKey  string `yaml:"planner_api_key"`
	PlannerModel   string `yaml:"planner_model"`

	// Rate limiting for the HTTP surface.
	RateLimitRPS   int `yaml:"rate_limit_rps"`
	RateLimitBurst int `yaml:"rate_limit_burst"`
}

// Load builds a Config from environment variables. If ORDERMIND_CONFIG points
// at a YAML file, values from the file are applied first and env vars win.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           "8080",
		LogLevel:       "INFO",
		DatabaseURL:    "data/ordermind.db",
		ERPTimeout:     30 * time.Second,
		PlannerBaseURL: "https://api.openai.com/v1",
		PlannerModel:   "gpt-4o-mini",
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}

	if path := os.Getenv("ORDERMIND_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	setIfEnv(&cfg.Port, "PORT")
	setIfEnv(&cfg.LogLevel, "LOG_LEVEL")
	setIfEnv(&cfg.DatabaseURL, "DATABASE_URL")
	setIfEnv(&cfg.ERPBaseURL, "ERP_BASE_URL")
	setIfEnv(&cfg.ERPServiceToken, "ERP_SERVICE_TOKEN")
	setIfEnv(&cfg.PlannerBaseURL, "PLANNER_BASE_URL")
	setIfEnv(&cfg.PlannerAPIKey, "PLANNER_API_KEY")
	setIfEnv(&cfg.PlannerModel, "PLANNER_MODEL")

	if v := os.Getenv("ERP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid ERP_TIMEOUT %q: %w", v, err)
		}
		cfg.ERPTimeout = d
	}

	if cfg.ERPBaseURL == "" {
		return nil, fmt.Errorf("config: ERP_BASE_URL is required")
	}
	return cfg, nil
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
