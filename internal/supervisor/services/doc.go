// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

/*
Package services adapts billcall components to suture's Serve pattern.

HTTPServerService turns http.Server's ListenAndServe/Shutdown pair into a
context-driven Serve. RealtimeService owns the bill-request stream for the
current session: it connects on start, reconnects when the credentials
change, and disconnects deliberately on shutdown.

Components that already expose Serve(ctx) error (the WebSocket hub, the bus
forwarder, the reconcile scheduler, the Telegram sink) are added to the tree
directly.
*/
package services
