// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package alert forwards accepted bill requests to channels outside the
// dashboard, so staff away from the screen still hear about them.
package alert

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/tomtom215/billcall/internal/bus"
	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/metrics"
)

const sinkTelegram = "telegram"

// Sender delivers a Telegram message. *tele.Bot implements it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramConfig configures a TelegramSink.
type TelegramConfig struct {
	Token  string
	ChatID int64

	// QueueSize bounds alerts waiting to be sent. Default 32.
	QueueSize int
}

// TelegramSink sends one chat message per added notification.
type TelegramSink struct {
	bus    *bus.Bus
	sender Sender
	chat   *tele.Chat
	queue  chan bus.NotificationEvent
}

// NewTelegramSink creates the bot for cfg.Token. The token is checked
// against the Telegram API.
func NewTelegramSink(b *bus.Bus, cfg TelegramConfig) (*TelegramSink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewTelegramSinkWithSender(b, bot, cfg.ChatID, cfg.QueueSize), nil
}

// NewTelegramSinkWithSender builds a sink around an existing sender.
func NewTelegramSinkWithSender(b *bus.Bus, s Sender, chatID int64, queueSize int) *TelegramSink {
	if queueSize <= 0 {
		queueSize = 32
	}
	return &TelegramSink{
		bus:    b,
		sender: s,
		chat:   &tele.Chat{ID: chatID},
		queue:  make(chan bus.NotificationEvent, queueSize),
	}
}

// Serve consumes notification.added until ctx is done. It implements
// suture.Service.
func (s *TelegramSink) Serve(ctx context.Context) error {
	deliveries, err := bus.Listen(ctx, s.bus, bus.TopicNotificationAdded)
	if err != nil {
		return fmt.Errorf("telegram sink: %w", err)
	}

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		s.sendLoop(ctx)
	}()

	log := logging.WithComponent("telegram")
	log.Info().Int64("chat_id", s.chat.ID).Msg("telegram sink started")
	for {
		select {
		case <-ctx.Done():
			<-sent
			return ctx.Err()
		case d := <-deliveries:
			var ev bus.NotificationEvent
			if err := bus.Decode(d.Msg, &ev); err != nil {
				log.Warn().Err(err).Msg("undecodable notification event")
			} else if ev.Notification != nil {
				select {
				case s.queue <- ev:
				default:
					metrics.RecordAlert(sinkTelegram, errors.New("queue full"))
					log.Warn().Int("table", ev.Notification.TableNumber).Msg("alert queue full, dropping")
				}
			}
			d.Msg.Ack()
		}
	}
}

func (s *TelegramSink) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			err := s.send(ev)
			metrics.RecordAlert(sinkTelegram, err)
			if err != nil {
				logging.Warn().Err(err).Int("table", ev.Notification.TableNumber).Msg("telegram alert failed")
			}
		}
	}
}

func (s *TelegramSink) send(ev bus.NotificationEvent) error {
	_, err := s.sender.Send(s.chat, FormatAlert(ev), &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	return err
}

// FormatAlert renders the chat message for an added notification.
func FormatAlert(ev bus.NotificationEvent) string {
	n := ev.Notification
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Table %d</b>\n%s", n.TableNumber, html.EscapeString(n.Message))
	if !n.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "\n<i>%s</i>", n.CreatedAt.Local().Format(time.Kitchen))
	}
	return b.String()
}

func (s *TelegramSink) String() string {
	return "telegram-sink"
}
