// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

/*
Package main is the entry point for billcall.

Billcall keeps restaurant staff informed when a table asks for the bill. It
subscribes to the backend's bill-request stream for one restaurant, turns
each pending request into a short-lived notification, and keeps an
authoritative pending list in sync through the REST API.

# Application Architecture

Long-running components run under a Suture v4 supervisor tree:

	RootSupervisor ("billcall")
	├── IngestSupervisor ("ingest-layer")
	│   ├── Realtime session (reconnecting WebSocket subscription)
	│   └── Reconcile scheduler (cron, optional)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Dashboard WebSocket hub
	│   ├── Bus to hub forwarder
	│   └── Telegram sink (optional)
	└── APISupervisor ("api-layer")
	    ├── HTTP server (dashboard API, /ws, /metrics)
	    └── Terminal dashboard (optional)

Initialization order:

 1. Configuration: koanf v2 (defaults, YAML file, environment)
 2. Logging: zerolog, to a file while the terminal dashboard runs
 3. Notification store, presentation timer and in-process bus
 4. REST client and reconciler
 5. Event router and realtime client
 6. Dashboard handlers, hub and HTTP server
 7. Supervisor tree

# Usage

	billcall                       # run with config.yaml or /etc/billcall/config.yaml
	billcall -config ./dev.yaml    # explicit config file
	billcall -request-bill -table 5 -table-id t5 -hash abc

-request-bill submits one request through the public endpoint the way a
table's QR page does, prints the result and exits.

# Configuration Reload

Changes to the config file are picked up while running. The log level
and session credentials apply immediately; a credentials change
resubscribes the stream. Everything else needs a restart.

# Graceful Shutdown

SIGINT or SIGTERM (or q in the terminal dashboard) cancels the root
context. The supervisor stops every service within
supervisor.shutdown_timeout, and services that miss it are logged.
*/
package main
