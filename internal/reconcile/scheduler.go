// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package reconcile

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/billcall/internal/logging"
)

// Triggerer starts a background refresh.
type Triggerer interface {
	Trigger(reason string)
}

// Scheduler triggers a refresh on a cron schedule. It is a suture service.
type Scheduler struct {
	spec    string
	parser  cron.Parser
	trigger Triggerer
}

// NewScheduler validates spec ("@every 1m", "*/5 * * * *").
func NewScheduler(spec string, t Triggerer) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, parser: parser, trigger: t}, nil
}

// Serve runs the schedule until ctx is done.
func (s *Scheduler) Serve(ctx context.Context) error {
	c := cron.New(cron.WithParser(s.parser))
	if _, err := c.AddFunc(s.spec, func() { s.trigger.Trigger(TriggerSchedule) }); err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}
	c.Start()
	logging.Info().Str("schedule", s.spec).Msg("reconcile scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	logging.Info().Msg("reconcile scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) String() string {
	return "reconcile-scheduler"
}
