// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package services

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/realtime"
	"github.com/tomtom215/billcall/internal/session"
)

// ErrNotRunning is returned by Reconnect before Serve has started.
var ErrNotRunning = errors.New("realtime service not running")

// StreamClient is the part of *realtime.Client the service drives.
type StreamClient interface {
	Connect(ctx context.Context, creds session.Credentials) error
	Disconnect()
	Status() realtime.Status
}

// SessionSource is satisfied by *session.Holder.
type SessionSource interface {
	Get() session.Credentials
	OnChange(fn func(session.Credentials))
}

// RealtimeService owns the bill-request subscription for the current
// session. It connects when Serve starts, swaps the subscription when the
// credentials change, and disconnects deliberately when Serve returns.
type RealtimeService struct {
	client  StreamClient
	creds   SessionSource
	changes chan struct{}
	log     zerolog.Logger

	mu          sync.Mutex
	runCtx      context.Context
	onSubscribe []func()
}

// NewRealtimeService wires client to creds.
func NewRealtimeService(client StreamClient, creds SessionSource) *RealtimeService {
	s := &RealtimeService{
		client:  client,
		creds:   creds,
		changes: make(chan struct{}, 1),
		log:     logging.WithComponent("realtime-session"),
	}
	creds.OnChange(func(session.Credentials) {
		select {
		case s.changes <- struct{}{}:
		default:
		}
	})
	return s
}

// OnSubscribe registers fn to run before every new subscription: when Serve
// starts and after each credentials swap has disconnected the old stream.
// Per-subscription state such as the dedup window is reset here.
func (s *RealtimeService) OnSubscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSubscribe = append(s.onSubscribe, fn)
}

// Serve implements suture.Service. A failed first dial is not an error:
// the client is already retrying on its own schedule.
func (s *RealtimeService) Serve(ctx context.Context) error {
	s.setRunCtx(ctx)
	defer func() {
		s.client.Disconnect()
		s.setRunCtx(nil)
	}()

	s.subscribe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.changes:
			s.log.Info().Str("session", s.creds.Get().Redacted()).Msg("session changed, resubscribing")
			s.client.Disconnect()
			s.subscribe(ctx)
		}
	}
}

func (s *RealtimeService) subscribe(ctx context.Context) {
	s.mu.Lock()
	hooks := s.onSubscribe
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	s.connect(ctx)
}

func (s *RealtimeService) connect(ctx context.Context) {
	if err := s.client.Connect(ctx, s.creds.Get()); err != nil {
		s.log.Warn().Err(err).Msg("initial connect failed")
	}
}

// Status reports the client's state.
func (s *RealtimeService) Status() realtime.Status {
	return s.client.Status()
}

// Reconnect starts a fresh connect cycle after the client gave up. It is a
// no-op while a subscription is active. ctx is only used for cancellation
// of the call itself; the subscription lives as long as Serve.
func (s *RealtimeService) Reconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	runCtx := s.runCtx
	s.mu.Unlock()
	if runCtx == nil {
		return ErrNotRunning
	}

	creds := s.creds.Get()
	if !creds.Complete() {
		return session.ErrMissingCredentials
	}
	if st := s.client.Status(); st.State != realtime.StateIdle {
		return nil
	}
	s.log.Info().Msg("manual reconnect requested")
	s.connect(runCtx)
	return nil
}

func (s *RealtimeService) setRunCtx(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCtx = ctx
}

func (s *RealtimeService) String() string {
	return "realtime-session"
}
