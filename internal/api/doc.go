// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

/*
Package api serves the local staff dashboard over HTTP.

Routes (chi):

	GET    /api/v1/health                    liveness
	GET    /api/v1/status                    stream state, degraded flag, counts
	GET    /api/v1/notifications             visible notifications, newest first
	POST   /api/v1/notifications             manual add {tableNumber, message?}
	DELETE /api/v1/notifications             clear all
	DELETE /api/v1/notifications/{id}        dismiss one
	GET    /api/v1/requests/pending          reconciled pending list
	POST   /api/v1/requests/refresh          trigger a reconcile
	PUT    /api/v1/requests/{id}/attended    mark attended on the backend
	POST   /api/v1/realtime/reconnect        retry after the stream gave up
	GET    /ws                               dashboard push
	GET    /metrics                          Prometheus

Every JSON response uses the envelope {success, data, error, meta}.
*/
package api
