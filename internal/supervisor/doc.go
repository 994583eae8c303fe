// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

/*
Package supervisor runs billcall's long-lived services under suture v4.

	billcall
	├── ingest-layer
	│   ├── realtime-session      (services.RealtimeService)
	│   └── reconcile-scheduler   (reconcile.Scheduler, if enabled)
	├── messaging-layer
	│   ├── websocket-forwarder   (websocket.Forwarder)
	│   ├── websocket-hub         (websocket.Hub)
	│   └── telegram-sink         (alert.TelegramSink, if enabled)
	└── api-layer
	    ├── http-server           (services.HTTPServerService)
	    └── tui                   (tui.Program, if enabled)

Crashed services are restarted with suture's backoff. Supervisor events are
logged through sutureslog on top of the zerolog slog bridge:

	tree, _ := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	err := tree.Serve(ctx)
*/
package supervisor
