// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package router turns stream frames into staff notifications.
//
// A frame is parsed, filtered to pending requests, checked against the
// dedup window, surfaced as a notification with its own expiry countdown,
// and followed by a fire-and-forget refresh of the pending list.
package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/billcall/internal/clock"
	"github.com/tomtom215/billcall/internal/dedup"
	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/metrics"
	"github.com/tomtom215/billcall/internal/models"
	"github.com/tomtom215/billcall/internal/notify"
)

// DefaultDedupWindow is how long an accepted event suppresses repeats.
const DefaultDedupWindow = 5 * time.Second

// Reconciler refreshes the authoritative pending list. Trigger must not
// block.
type Reconciler interface {
	Trigger(reason string)
}

// Config wires a Router.
type Config struct {
	Window     *dedup.Window
	Store      *notify.Store
	Timer      *notify.Timer
	Reconciler Reconciler
	Clock      clock.Scheduler

	// DedupWindow defaults to DefaultDedupWindow.
	DedupWindow time.Duration

	// Duration is the presentation time; notify.DefaultDuration when zero.
	Duration time.Duration
}

// Router implements realtime.FrameHandler.
type Router struct {
	cfg   Config
	clock clock.Scheduler

	// admitMu makes the suppress check and the insert one step.
	admitMu sync.Mutex
}

// New returns a Router. Window, Store and Timer are required.
func New(cfg Config) *Router {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.Duration <= 0 {
		cfg.Duration = notify.DefaultDuration
	}
	return &Router{cfg: cfg, clock: clock.OrReal(cfg.Clock)}
}

// HandleFrame processes one frame. Malformed frames return an error
// wrapping ErrMalformedFrame; ignored and suppressed events return nil.
func (r *Router) HandleFrame(ctx context.Context, payload []byte) error {
	log := logging.Ctx(ctx)
	now := r.clock.Now()

	ev, err := ParseFrame(payload, now)
	if err != nil {
		var me *malformedError
		reason := "json"
		if errors.As(err, &me) {
			reason = me.reason
		}
		metrics.FramesMalformed.WithLabelValues(reason).Inc()
		return err
	}

	if ev.Status != models.StatusPending {
		metrics.EventsIgnored.WithLabelValues(string(ev.Status)).Inc()
		log.Debug().Int("table", ev.TableNumber).Str("status", string(ev.Status)).Msg("event ignored")
		return nil
	}

	if !r.admit(ev, now) {
		metrics.NotificationsSuppressed.Inc()
		log.Debug().Int("table", ev.TableNumber).Str("request_id", ev.RequestID).Msg("duplicate event suppressed")
		return nil
	}

	n := r.surface(ev.TableNumber, ev.RequestID, ev.Message, now, "realtime")
	log.Info().
		Int("table", n.TableNumber).
		Str("request_id", n.RequestID).
		Str("notification_id", n.ID).
		Msg("bill request notification")

	if r.cfg.Reconciler != nil {
		r.cfg.Reconciler.Trigger("event")
	}
	return nil
}

// AddNotification surfaces a notification without dedup, for manual
// triggers from the dashboard or TUI.
func (r *Router) AddNotification(table int, message string) models.Notification {
	return r.surface(table, "", message, r.clock.Now(), "manual")
}

// Dismiss removes a notification and cancels its countdown.
func (r *Router) Dismiss(id string) bool {
	return r.cfg.Timer.Dismiss(id)
}

// ClearAll removes every notification.
func (r *Router) ClearAll() {
	r.cfg.Timer.ClearAll()
}

// ResetWindow forgets every recently seen event. Call it whenever the
// subscription changes.
func (r *Router) ResetWindow() {
	r.admitMu.Lock()
	defer r.admitMu.Unlock()
	r.cfg.Window.Reset()
}

// Close empties the dedup window and stops every countdown. Visible
// notifications stay in the store.
func (r *Router) Close() {
	r.cfg.Window.Close()
	r.cfg.Timer.Stop()
}

func (r *Router) admit(ev models.BillRequestEvent, now time.Time) bool {
	r.admitMu.Lock()
	defer r.admitMu.Unlock()

	for _, key := range lookbackKeys(ev, now, r.cfg.DedupWindow) {
		if r.cfg.Window.ShouldSuppress(key) {
			return false
		}
	}
	r.cfg.Window.Remember(DedupKey(ev, now), r.cfg.DedupWindow)
	return true
}

func (r *Router) surface(table int, requestID, message string, now time.Time, source string) models.Notification {
	n := models.NewNotification(table, requestID, message, now)
	n.ExpiresAt = now.Add(r.cfg.Duration)

	r.cfg.Store.Add(n)
	r.cfg.Timer.Start(n, r.cfg.Duration)
	metrics.NotificationsAdded.WithLabelValues(source).Inc()
	return n
}
