// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/billcall/internal/alert"
	"github.com/tomtom215/billcall/internal/api"
	"github.com/tomtom215/billcall/internal/billrequest"
	"github.com/tomtom215/billcall/internal/bus"
	"github.com/tomtom215/billcall/internal/config"
	"github.com/tomtom215/billcall/internal/dedup"
	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/models"
	"github.com/tomtom215/billcall/internal/notify"
	"github.com/tomtom215/billcall/internal/realtime"
	"github.com/tomtom215/billcall/internal/reconcile"
	"github.com/tomtom215/billcall/internal/router"
	"github.com/tomtom215/billcall/internal/session"
	"github.com/tomtom215/billcall/internal/supervisor"
	"github.com/tomtom215/billcall/internal/supervisor/services"
	"github.com/tomtom215/billcall/internal/tui"
	ws "github.com/tomtom215/billcall/internal/websocket"
)

// app holds every long-lived component of one billcall process.
type app struct {
	cfg *config.Config

	bus      *bus.Bus
	store    *notify.Store
	timer    *notify.Timer
	router   *router.Router
	session  *session.Holder
	backend  *billrequest.Client
	rec      *reconcile.Reconciler
	stream   *realtime.Client
	realtime *services.RealtimeService
	hub      *ws.Hub
	handler  *api.Handler
	server   *http.Server
}

// notificationView is what the terminal dashboard drives: the router's
// mutations plus the store's list.
type notificationView struct {
	*router.Router
	store *notify.Store
}

func (v notificationView) List() []models.Notification {
	return v.store.List()
}

// newApp builds the component graph. transport may be nil for the default
// gorilla dialer.
func newApp(cfg *config.Config, transport realtime.Transport) *app {
	a := &app{cfg: cfg}

	a.bus = bus.New()
	a.store = notify.NewStore()
	a.store.SetLimit(cfg.Notify.MaxVisible)
	a.store.Subscribe(bus.StoreObserver(a.bus))
	a.timer = notify.NewTimer(a.store, nil)

	a.session = session.NewHolder(session.Credentials{
		RestaurantID: cfg.Session.RestaurantID,
		Token:        cfg.Session.Token,
	})

	a.backend = billrequest.NewClient(billrequest.Config{
		BaseURL:        cfg.API.BaseURL,
		Timeout:        cfg.API.Timeout,
		RateLimitRPS:   cfg.API.RateLimitRPS,
		RateLimitBurst: cfg.API.RateLimitBurst,
	}, a.session)

	a.rec = reconcile.New(reconcile.Config{
		Backend:  a.backend,
		Session:  a.session,
		Bus:      a.bus,
		Attender: a.timer,
		MaxTries: cfg.API.RetryMaxTries,
		Timeout:  cfg.API.Timeout * time.Duration(cfg.API.RetryMaxTries+1),
	})
	a.rec.WatchSession(a.session)

	a.router = router.New(router.Config{
		Window: dedup.New(dedup.Config{
			MaxEntries: cfg.Notify.DedupMaxEntries,
		}),
		Store:       a.store,
		Timer:       a.timer,
		Reconciler:  a.rec,
		DedupWindow: cfg.Notify.DedupWindow,
		Duration:    cfg.Notify.Duration,
	})

	if transport == nil {
		transport = realtime.NewWSTransport(cfg.Realtime.HandshakeTimeout)
	}
	a.stream = realtime.NewClient(realtime.Config{
		BaseURL: cfg.API.BaseURL,
		Policy: realtime.Policy{
			MaxAttempts:  cfg.Realtime.MaxAttempts,
			InitialDelay: cfg.Realtime.InitialDelay,
			MaxDelay:     cfg.Realtime.MaxDelay,
		},
		PingInterval: cfg.Realtime.PingInterval,
		PongWait:     cfg.Realtime.PongWait,
		Transport:    transport,
	}, a.router)
	a.stream.OnOpen(func() { a.rec.Trigger(reconcile.TriggerOpen) })
	a.stream.OnStatus(func(s realtime.Status) {
		if err := a.bus.Publish(context.Background(), bus.TopicConnectionStatus, s); err != nil {
			logging.Debug().Err(err).Msg("connection status not published")
		}
	})
	a.realtime = services.NewRealtimeService(a.stream, a.session)

	// Dedup keys carry no restaurant, so the window lives as long as one
	// subscription. The session hook covers frames handled before the
	// service swaps streams; OnSubscribe drops anything the old stream
	// delivered in between.
	a.session.OnChange(func(session.Credentials) { a.router.ResetWindow() })
	a.realtime.OnSubscribe(a.router.ResetWindow)

	a.hub = ws.NewHub()
	a.handler = api.NewHandler(api.Deps{
		Notifications: a.router,
		Store:         a.store,
		Pending:       a.rec,
		Realtime:      a.realtime,
		Hub:           a.hub,
		CORSOrigins:   cfg.Server.CORSOrigins,
	})
	a.hub.SetSnapshot(a.handler.Snapshot)

	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mw.RateLimitRequests = cfg.Server.RateLimitReqs
	mw.RateLimitWindow = cfg.Server.RateLimitWindow

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           api.NewRouter(a.handler, mw).SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return a
}

// tree assembles the supervisor tree. onQuit runs when the terminal
// dashboard asks to exit.
func (a *app) tree(onQuit func()) (*supervisor.SupervisorTree, error) {
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: a.cfg.Supervisor.FailureThreshold,
		FailureBackoff:   a.cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  a.cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}

	// Ingest layer
	tree.AddIngestService(a.realtime)
	if a.cfg.Reconcile.Enabled {
		sched, err := reconcile.NewScheduler(a.cfg.Reconcile.Schedule, a.rec)
		if err != nil {
			return nil, err
		}
		tree.AddIngestService(sched)
		logging.Info().Str("schedule", a.cfg.Reconcile.Schedule).Msg("Reconcile scheduler added to supervisor tree")
	}

	// Messaging layer
	tree.AddMessagingService(a.hub)
	tree.AddMessagingService(ws.NewForwarder(a.hub, a.bus))
	if a.cfg.Telegram.Enabled {
		sink, err := alert.NewTelegramSink(a.bus, alert.TelegramConfig{
			Token:  a.cfg.Telegram.Token,
			ChatID: a.cfg.Telegram.ChatID,
		})
		if err != nil {
			logging.Warn().Err(err).Msg("Telegram alerts disabled")
		} else {
			tree.AddMessagingService(sink)
			logging.Info().Int64("chat_id", a.cfg.Telegram.ChatID).Msg("Telegram sink added to supervisor tree")
		}
	}

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(a.server, a.cfg.Supervisor.ShutdownTimeout))
	logging.Info().Str("addr", a.server.Addr).Msg("HTTP server service added")
	if a.cfg.TUI.Enabled {
		tree.AddAPIService(tui.NewProgram(tui.Deps{
			Notifications: notificationView{Router: a.router, store: a.store},
			Pending:       a.rec,
			Realtime:      a.realtime,
			ActionTimeout: a.cfg.API.Timeout,
		}, a.bus, onQuit))
		logging.Info().Msg("Terminal dashboard added to supervisor tree")
	}
	return tree, nil
}

// start kicks off the initial pending fetch.
func (a *app) start() {
	a.rec.Trigger(reconcile.TriggerMount)
}

// close releases everything the supervisor tree does not own.
func (a *app) close() {
	a.rec.Close()
	a.router.Close()
	if err := a.bus.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing bus")
	}
}
