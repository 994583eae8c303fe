// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package config loads billcall's configuration.
//
// Sources are layered with koanf: built-in defaults, then an optional YAML
// file, then environment variables. See LoadWithKoanf.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration.
type Config struct {
	API        APIConfig        `koanf:"api"`
	Session    SessionConfig    `koanf:"session"`
	Realtime   RealtimeConfig   `koanf:"realtime"`
	Notify     NotifyConfig     `koanf:"notify"`
	Reconcile  ReconcileConfig  `koanf:"reconcile"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	TUI        TUIConfig        `koanf:"tui"`
	Telegram   TelegramConfig   `koanf:"telegram"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// APIConfig points at the restaurant backend. BaseURL serves both the REST
// endpoints and the bill-request WebSocket (http -> ws, https -> wss).
type APIConfig struct {
	BaseURL        string        `koanf:"base_url" validate:"required"`
	Timeout        time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimitRPS   float64       `koanf:"rate_limit_rps" validate:"gt=0"`
	RateLimitBurst int           `koanf:"rate_limit_burst" validate:"gte=1"`
	RetryMaxTries  uint          `koanf:"retry_max_tries" validate:"gte=1,lte=10"`
}

// SessionConfig carries the credentials issued by the backend's login flow.
type SessionConfig struct {
	RestaurantID string `koanf:"restaurant_id"`
	Token        string `koanf:"token"`
}

// RealtimeConfig tunes the reconnecting socket client.
type RealtimeConfig struct {
	MaxAttempts      int           `koanf:"max_attempts" validate:"gte=1"`
	InitialDelay     time.Duration `koanf:"initial_delay" validate:"gt=0"`
	MaxDelay         time.Duration `koanf:"max_delay" validate:"gt=0"`
	PingInterval     time.Duration `koanf:"ping_interval" validate:"gt=0"`
	PongWait         time.Duration `koanf:"pong_wait" validate:"gt=0"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout" validate:"gt=0"`
}

// NotifyConfig controls notification lifetime and duplicate suppression.
type NotifyConfig struct {
	Duration        time.Duration `koanf:"duration" validate:"gt=0"`
	DedupWindow     time.Duration `koanf:"dedup_window" validate:"gt=0"`
	DedupMaxEntries int           `koanf:"dedup_max_entries" validate:"gte=1"`
	MaxVisible      int           `koanf:"max_visible" validate:"gte=0"`
}

// ReconcileConfig schedules the periodic pending-request refresh.
type ReconcileConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule"`
}

// ServerConfig is the local dashboard listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig maps onto logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
	File   string `koanf:"file"`
}

// TUIConfig toggles the terminal dashboard.
type TUIConfig struct {
	Enabled bool `koanf:"enabled"`
}

// TelegramConfig forwards accepted bill requests to a staff chat.
type TelegramConfig struct {
	Enabled bool   `koanf:"enabled"`
	Token   string `koanf:"token"`
	ChatID  int64  `koanf:"chat_id"`
}

// SupervisorConfig mirrors supervisor.TreeConfig.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// ListenAddr returns host:port for the dashboard server.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
