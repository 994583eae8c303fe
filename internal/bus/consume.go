// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package bus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/billcall/internal/logging"
)

// Delivery is a message and the topic it arrived on.
type Delivery struct {
	Topic string
	Msg   *message.Message
}

// HandlerFunc handles one bus message.
type HandlerFunc func(ctx context.Context, d Delivery) error

// Listen subscribes to topics and merges them onto one channel. The
// subscriptions are live when Listen returns. Receivers must Ack every
// delivery.
func Listen(ctx context.Context, b *Bus, topics ...string) (<-chan Delivery, error) {
	merged := make(chan Delivery)
	for _, topic := range topics {
		ch, err := b.Subscribe(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", topic, err)
		}
		go func(topic string, ch <-chan *message.Message) {
			for msg := range ch {
				select {
				case merged <- Delivery{Topic: topic, Msg: msg}:
				case <-ctx.Done():
					msg.Nack()
					return
				}
			}
		}(topic, ch)
	}
	return merged, nil
}

// Consume calls fn for each message on topics until ctx is done. Messages
// are acked after fn returns; handler errors are logged, never
// redelivered.
func Consume(ctx context.Context, b *Bus, name string, fn HandlerFunc, topics ...string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deliveries, err := Listen(ctx, b, topics...)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return drain(ctx, name, deliveries, fn)
}

func drain(ctx context.Context, name string, deliveries <-chan Delivery, fn HandlerFunc) error {
	log := logging.WithComponent(name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-deliveries:
			if err := fn(MessageContext(ctx, d.Msg), d); err != nil {
				log.Warn().Err(err).Str("topic", d.Topic).Str("message_id", d.Msg.UUID).Msg("bus handler failed")
			}
			d.Msg.Ack()
		}
	}
}
