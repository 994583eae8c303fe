// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package bus is billcall's in-process event bus, a watermill GoChannel.
//
// Producers publish JSON payloads on the topics below; the dashboard hub
// forwarder and the Telegram sink consume them. Publish blocks until every
// subscriber acked the message, so each subscriber sees one topic in
// publish order. Subscribers must ack promptly.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/metrics"
)

// Topics.
const (
	TopicNotificationAdded    = "notification.added"
	TopicNotificationRemoved  = "notification.removed"
	TopicNotificationsCleared = "notifications.cleared"
	TopicPendingUpdated       = "pending.updated"
	TopicConnectionStatus     = "connection.status"
)

// Topics lists every topic in a stable order.
var Topics = []string{
	TopicNotificationAdded,
	TopicNotificationRemoved,
	TopicNotificationsCleared,
	TopicPendingUpdated,
	TopicConnectionStatus,
}

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("bus closed")

const metadataCorrelationID = "correlation_id"

// Bus wraps a GoChannel pub/sub.
type Bus struct {
	pubsub *gochannel.GoChannel
	closed atomic.Bool
}

// New returns an open bus logging through zerolog.
func New() *Bus {
	logger := watermill.NewSlogLogger(logging.NewSlogLogger().With("component", "bus"))
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, logger),
	}
}

// Publish encodes payload as JSON and publishes it on topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	if b.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(metadataCorrelationID, id)
	}
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.BusPublished.WithLabelValues(topic).Inc()
	return nil
}

// Subscribe returns the message channel for topic. It closes when ctx is
// done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close shuts the bus down. Safe to call more than once.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.pubsub.Close()
}

// Decode unmarshals msg's payload into v.
func Decode(msg *message.Message, v any) error {
	return json.Unmarshal(msg.Payload, v)
}

// MessageContext returns ctx carrying the message's correlation id.
func MessageContext(ctx context.Context, msg *message.Message) context.Context {
	if id := msg.Metadata.Get(metadataCorrelationID); id != "" {
		return logging.ContextWithCorrelationID(ctx, id)
	}
	return ctx
}
