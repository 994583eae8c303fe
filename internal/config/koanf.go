// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/billcall/config.yaml",
	"/etc/billcall/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080",
			Timeout:        10 * time.Second,
			RateLimitRPS:   5,
			RateLimitBurst: 10,
			RetryMaxTries:  3,
		},
		Realtime: RealtimeConfig{
			MaxAttempts:      10,
			InitialDelay:     time.Second,
			MaxDelay:         30 * time.Second,
			PingInterval:     30 * time.Second,
			PongWait:         60 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Notify: NotifyConfig{
			Duration:        5 * time.Second,
			DedupWindow:     5 * time.Second,
			DedupMaxEntries: 10000,
			MaxVisible:      0,
		},
		Reconcile: ReconcileConfig{
			Enabled:  true,
			Schedule: "@every 1m",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8787,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration with precedence ENV > file > defaults,
// then validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := FindConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// FindConfigFile returns the config file LoadWithKoanf would read, or "".
func FindConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"billcall_api_url":          "api.base_url",
	"billcall_api_timeout":      "api.timeout",
	"billcall_api_rate_limit":   "api.rate_limit_rps",
	"billcall_api_rate_burst":   "api.rate_limit_burst",
	"billcall_api_retry_tries":  "api.retry_max_tries",
	"billcall_restaurant_id":    "session.restaurant_id",
	"billcall_token":            "session.token",
	"billcall_ws_max_attempts":  "realtime.max_attempts",
	"billcall_ws_initial_delay": "realtime.initial_delay",
	"billcall_ws_max_delay":     "realtime.max_delay",
	"billcall_ws_ping_interval": "realtime.ping_interval",
	"billcall_ws_pong_wait":     "realtime.pong_wait",
	"billcall_notify_duration":  "notify.duration",
	"billcall_dedup_window":     "notify.dedup_window",
	"billcall_max_visible":      "notify.max_visible",
	"billcall_reconcile":        "reconcile.enabled",
	"billcall_reconcile_cron":   "reconcile.schedule",
	"http_host":                 "server.host",
	"http_port":                 "server.port",
	"cors_origins":              "server.cors_origins",
	"rate_limit_requests":       "server.rate_limit_requests",
	"rate_limit_window":         "server.rate_limit_window",
	"log_level":                 "logging.level",
	"log_format":                "logging.format",
	"log_caller":                "logging.caller",
	"log_file":                  "logging.file",
	"billcall_tui":              "tui.enabled",
	"telegram_enabled":          "telegram.enabled",
	"telegram_token":            "telegram.token",
	"telegram_chat_id":          "telegram.chat_id",
}

// envTransformFunc maps known environment variables onto config paths.
// Unknown variables map to "" and are dropped by koanf.
//
//	BILLCALL_API_URL -> api.base_url
//	HTTP_PORT        -> server.port
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls onChange whenever path is modified. Callers reload
// with LoadWithKoanf and swap the result under their own lock.
func WatchConfigFile(path string, onChange func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		onChange()
	})
}
