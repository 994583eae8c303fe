// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package bus

import (
	"context"
	"time"

	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/models"
	"github.com/tomtom215/billcall/internal/notify"
)

// NotificationEvent is the payload of the notification topics.
type NotificationEvent struct {
	Notification *models.Notification `json:"notification,omitempty"`
	Reason       string               `json:"reason,omitempty"`
}

// PendingEvent is the payload of TopicPendingUpdated.
type PendingEvent struct {
	Requests  []models.BillRequest `json:"requests"`
	Count     int                  `json:"count"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// StoreObserver publishes every notify.Store change on the matching topic.
func StoreObserver(b *Bus) notify.Observer {
	return notify.ObserverFunc(func(c notify.Change) {
		topic, ev := changeEvent(c)
		if err := b.Publish(context.Background(), topic, ev); err != nil {
			logging.Warn().Err(err).Str("topic", topic).Msg("failed to publish notification change")
		}
	})
}

func changeEvent(c notify.Change) (string, NotificationEvent) {
	switch c.Kind {
	case notify.ChangeAdded:
		n := c.Notification
		return TopicNotificationAdded, NotificationEvent{Notification: &n}
	case notify.ChangeRemoved:
		n := c.Notification
		return TopicNotificationRemoved, NotificationEvent{Notification: &n, Reason: c.Reason}
	default:
		return TopicNotificationsCleared, NotificationEvent{Reason: c.Reason}
	}
}
