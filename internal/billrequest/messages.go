// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package billrequest

// Operation names a backend call for metrics and staff-facing messages.
type Operation string

const (
	OpFetchRequests     Operation = "fetchRequests"
	OpMarkAttended      Operation = "markAttended"
	OpCreateBillRequest Operation = "createBillRequest"
)

const (
	msgServersDown    = "Our servers are unavailable right now. Please try again later."
	msgSessionExpired = "Your session expired. Please sign in again."
	msgServerError    = "Something went wrong on our servers. Please try again in a few minutes."
)

var messagesByStatus = map[Operation]map[int]string{
	OpFetchRequests: {
		401: msgSessionExpired,
		403: "You do not have permission to view requests.",
	},
	OpMarkAttended: {
		401: msgSessionExpired,
		404: "The request no longer exists or was already handled.",
	},
	OpCreateBillRequest: {
		400: "The request details are not valid.",
		409: "There is already an active request for this table.",
	},
}

var defaultMessages = map[Operation]string{
	OpFetchRequests:     "We could not load the requests. Please try again later.",
	OpMarkAttended:      "We could not mark the request as attended. Please try again later.",
	OpCreateBillRequest: "We could not send your request. Please try again later.",
}

// FriendlyMessage maps err from op onto text fit for staff. It returns ""
// for a nil error.
func FriendlyMessage(err error, op Operation) string {
	if err == nil {
		return ""
	}
	if IsNetworkError(err) {
		return msgServersDown
	}
	if status := StatusCode(err); status != 0 {
		if msg, ok := messagesByStatus[op][status]; ok {
			return msg
		}
		if status >= 500 {
			return msgServerError
		}
	}
	if msg, ok := defaultMessages[op]; ok {
		return msg
	}
	return "Something went wrong. Please try again later."
}
