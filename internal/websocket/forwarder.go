// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package websocket

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/billcall/internal/bus"
	"github.com/tomtom215/billcall/internal/logging"
)

// topicMessageTypes maps bus topics onto browser message types.
var topicMessageTypes = map[string]string{
	bus.TopicNotificationAdded:    MessageTypeNotificationAdded,
	bus.TopicNotificationRemoved:  MessageTypeNotificationRemoved,
	bus.TopicNotificationsCleared: MessageTypeNotificationsCleared,
	bus.TopicPendingUpdated:       MessageTypePendingUpdated,
	bus.TopicConnectionStatus:     MessageTypeConnectionStatus,
}

// Forwarder bridges bus events to hub broadcasts. Payloads pass through
// untouched.
type Forwarder struct {
	hub *Hub
	bus *bus.Bus
}

// NewForwarder creates a bus to hub bridge.
func NewForwarder(hub *Hub, b *bus.Bus) *Forwarder {
	return &Forwarder{hub: hub, bus: b}
}

// Serve forwards until ctx is done. It implements suture.Service.
func (f *Forwarder) Serve(ctx context.Context) error {
	deliveries, err := bus.Listen(ctx, f.bus, bus.Topics...)
	if err != nil {
		return fmt.Errorf("websocket forwarder: %w", err)
	}
	logging.Info().Msg("bus to websocket forwarder started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-deliveries:
			f.forward(d)
			d.Msg.Ack()
		}
	}
}

func (f *Forwarder) forward(d bus.Delivery) {
	msgType, ok := topicMessageTypes[d.Topic]
	if !ok {
		return
	}
	payload := json.RawMessage(append([]byte(nil), d.Msg.Payload...))
	if !json.Valid(payload) {
		logging.Warn().Str("topic", d.Topic).Msg("dropping non-JSON bus payload")
		return
	}
	f.hub.Broadcast(msgType, payload)
}

func (f *Forwarder) String() string {
	return "websocket-forwarder"
}
