// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/tomtom215/billcall/internal/logging"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the loaded configuration. Struct tags are checked first,
// then cross-field rules per section.
func (c *Config) Validate() error {
	if err := c.validateTags(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateRealtime(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateTelegram(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTags() error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func (c *Config) validateAPI() error {
	return validateBaseURL(c.API.BaseURL, "BILLCALL_API_URL")
}

func (c *Config) validateRealtime() error {
	if c.Realtime.InitialDelay > c.Realtime.MaxDelay {
		return fmt.Errorf("realtime.initial_delay (%s) must not exceed realtime.max_delay (%s)",
			c.Realtime.InitialDelay, c.Realtime.MaxDelay)
	}
	if c.Realtime.PingInterval >= c.Realtime.PongWait {
		return fmt.Errorf("realtime.ping_interval (%s) must be shorter than realtime.pong_wait (%s)",
			c.Realtime.PingInterval, c.Realtime.PongWait)
	}
	return nil
}

func (c *Config) validateNotify() error {
	// dedup keys are bucketed per second
	if c.Notify.DedupWindow < time.Second {
		return fmt.Errorf("notify.dedup_window (%s) must be at least 1s", c.Notify.DedupWindow)
	}
	return nil
}

func (c *Config) validateReconcile() error {
	if !c.Reconcile.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(c.Reconcile.Schedule); err != nil {
		return fmt.Errorf("reconcile.schedule %q is invalid: %w", c.Reconcile.Schedule, err)
	}
	return nil
}

func (c *Config) validateTelegram() error {
	if !c.Telegram.Enabled {
		return nil
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required when TELEGRAM_ENABLED=true")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_ENABLED=true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	return nil
}

// HasCredentials reports whether a subscription can be opened.
func (c *Config) HasCredentials() bool {
	return c.Session.RestaurantID != "" && c.Session.Token != ""
}
