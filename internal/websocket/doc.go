// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

/*
Package websocket pushes notification and connection updates to dashboard
browsers.

The package uses a hub-and-spoke pattern on top of gorilla/websocket:

	┌──────────┐      ┌───────────┐
	│   bus    │ ───▶ │ Forwarder │
	└──────────┘      └─────┬─────┘
	                        ▼
	                  ┌──────────┐
	                  │   Hub    │ ← broadcasts to all clients
	                  └────┬─────┘
	          ┌────────────┼────────────┐
	       Client1      Client2      Client3

Each client has two goroutines:
  - readPump: decodes browser requests and hands them to the hub
  - writePump: writes queued messages and protocol pings

Message types sent to browsers:

  - snapshot: current notifications, pending list and status, on connect
  - notification_added, notification_removed, notifications_cleared
  - pending_updated: the reconciled pending list
  - connection_status: upstream stream state, including the degraded flag
  - pong: answer to a client "ping"
  - error: answer to a request the hub does not understand

Browsers may send {"type": "ping"} or {"type": "resync"}; resync resends
the snapshot. Replies are queued by the hub goroutine, the only writer of a
client's send channel.

Messages are JSON objects {"type": ..., "data": ...}. A client whose send
buffer is full is disconnected rather than slowing the hub down.
*/
package websocket
