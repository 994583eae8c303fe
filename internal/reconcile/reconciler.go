// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package reconcile keeps a local copy of the backend's pending bill
// requests in sync. The stream only says that something happened; the
// backend list is the source of truth.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tomtom215/billcall/internal/billrequest"
	"github.com/tomtom215/billcall/internal/bus"
	"github.com/tomtom215/billcall/internal/clock"
	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/metrics"
	"github.com/tomtom215/billcall/internal/models"
	"github.com/tomtom215/billcall/internal/session"
)

// Trigger reasons.
const (
	TriggerMount    = "mount"
	TriggerOpen     = "open"
	TriggerEvent    = "event"
	TriggerSession  = "session"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerAttended = "attended"
)

// Backend is the slice of billrequest.Client the reconciler needs.
type Backend interface {
	FetchPending(ctx context.Context, restaurantID string) ([]models.BillRequest, error)
	MarkAttended(ctx context.Context, requestID string) (*models.BillRequest, error)
}

// CredentialSource supplies the current session.
type CredentialSource interface {
	Get() session.Credentials
}

// Publisher publishes bus events. *bus.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Attender drops notifications for an attended request. *notify.Timer
// implements it.
type Attender interface {
	Attended(requestID string) int
}

// Config configures a Reconciler. Backend, Session and Cache are required.
type Config struct {
	Backend  Backend
	Session  CredentialSource
	Cache    *PendingCache
	Bus      Publisher
	Attender Attender
	Clock    clock.Scheduler

	// MaxTries bounds FetchPending attempts per refresh. Default 3.
	MaxTries uint

	// RetryInterval is the first backoff interval. Default 500ms.
	RetryInterval time.Duration

	// Timeout bounds one triggered refresh. Default 30s.
	Timeout time.Duration
}

// Reconciler refreshes the pending cache.
type Reconciler struct {
	cfg Config
	clk clock.Scheduler

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	running      bool
	queued       bool
	queuedReason string
}

// New returns a Reconciler.
func New(cfg Config) *Reconciler {
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Cache == nil {
		cfg.Cache = NewPendingCache()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		cfg:    cfg,
		clk:    clock.OrReal(cfg.Clock),
		base:   base,
		cancel: cancel,
	}
}

// Cache returns the pending cache.
func (r *Reconciler) Cache() *PendingCache {
	return r.cfg.Cache
}

// WatchSession triggers a refresh whenever h's credentials change.
func (r *Reconciler) WatchSession(h *session.Holder) {
	h.OnChange(func(session.Credentials) {
		r.Trigger(TriggerSession)
	})
}

// Trigger runs Refresh in the background. While a refresh is in flight,
// further triggers collapse into one queued run.
func (r *Reconciler) Trigger(reason string) {
	r.mu.Lock()
	if r.base.Err() != nil {
		r.mu.Unlock()
		return
	}
	if r.running {
		r.queued = true
		r.queuedReason = reason
		r.mu.Unlock()
		return
	}
	r.running = true
	r.wg.Add(1)
	r.mu.Unlock()

	go r.loop(reason)
}

func (r *Reconciler) loop(reason string) {
	defer r.wg.Done()
	for {
		ctx, cancel := context.WithTimeout(r.base, r.cfg.Timeout)
		_ = r.Refresh(logging.ContextWithNewCorrelationID(ctx), reason)
		cancel()

		r.mu.Lock()
		if !r.queued || r.base.Err() != nil {
			r.running = false
			r.mu.Unlock()
			return
		}
		reason = r.queuedReason
		r.queued = false
		r.mu.Unlock()
	}
}

// Wait blocks until no triggered refresh is running.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight refreshes and waits for them to return. Later
// triggers are ignored.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
}

// Refresh fetches the pending list and replaces the cache. On failure the
// previous cache is kept.
func (r *Reconciler) Refresh(ctx context.Context, trigger string) error {
	log := logging.Ctx(ctx)
	creds := r.cfg.Session.Get()
	if !creds.Complete() {
		log.Debug().Str("trigger", trigger).Msg("skipping refresh without credentials")
		return session.ErrMissingCredentials
	}

	start := r.clk.Now()
	list, err := backoff.Retry(ctx, func() ([]models.BillRequest, error) {
		reqs, err := r.cfg.Backend.FetchPending(ctx, creds.RestaurantID)
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return reqs, err
	},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug().Err(err).Dur("retry_in", next).Msg("pending fetch failed, retrying")
		}),
	)
	metrics.RecordReconcile(trigger, r.clk.Now().Sub(start), len(list), err)

	if err != nil {
		log.Warn().Err(err).
			Str("trigger", trigger).
			Str("user_message", billrequest.FriendlyMessage(err, billrequest.OpFetchRequests)).
			Msg("pending refresh failed")
		return err
	}

	now := r.clk.Now()
	r.cfg.Cache.Replace(list, now)
	log.Debug().Str("trigger", trigger).Int("pending", r.cfg.Cache.Count()).Msg("pending requests refreshed")
	r.publish(ctx, now)
	return nil
}

// MarkAttended marks requestID attended on the backend, drops its
// notifications and cache entry, and refreshes.
func (r *Reconciler) MarkAttended(ctx context.Context, requestID string) (*models.BillRequest, error) {
	req, err := r.cfg.Backend.MarkAttended(ctx, requestID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("request_id", requestID).
			Str("user_message", billrequest.FriendlyMessage(err, billrequest.OpMarkAttended)).
			Msg("mark attended failed")
		return nil, err
	}

	if r.cfg.Attender != nil {
		r.cfg.Attender.Attended(requestID)
	}
	if r.cfg.Cache.Drop(requestID) {
		r.publish(ctx, r.clk.Now())
	}
	r.Trigger(TriggerAttended)
	return req, nil
}

func (r *Reconciler) publish(ctx context.Context, at time.Time) {
	if r.cfg.Bus == nil {
		return
	}
	snap := r.cfg.Cache.Snapshot()
	ev := bus.PendingEvent{Requests: snap, Count: len(snap), UpdatedAt: at}
	if err := r.cfg.Bus.Publish(ctx, bus.TopicPendingUpdated, ev); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("failed to publish pending update")
	}
}

func (r *Reconciler) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryInterval
	b.MaxInterval = r.cfg.RetryInterval * 10
	return b
}

// retryable reports whether a fetch failure may succeed on retry. Client
// errors and an open breaker will not.
func retryable(err error) bool {
	var he *billrequest.HTTPError
	switch {
	case errors.As(err, &he):
		return !he.Client()
	case errors.Is(err, billrequest.ErrCircuitOpen),
		errors.Is(err, billrequest.ErrUnsuccessful),
		errors.Is(err, session.ErrMissingCredentials),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
