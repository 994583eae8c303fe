// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/billcall/internal/logging"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxInboundBytes = 1024
	sendBuffer      = 64
)

// clientIDCounter orders clients for broadcast.
var clientIDCounter atomic.Uint64

// inbound is a dashboard request. Browsers only send a type.
type inbound struct {
	Type string `json:"type"`
}

// Client is one dashboard browser attached to the hub.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient wraps conn. Register it with the hub, then call Start.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
}

// ID returns the client's ordering id.
func (c *Client) ID() uint64 {
	return c.id
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump turns browser frames into hub requests. Replies are queued by
// the hub goroutine, which owns the send channel.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundBytes)
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	if err := extend(""); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(extend)

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).Uint64("client", c.id).Msg("unexpected dashboard websocket close")
			}
			return
		}
		if kind != websocket.TextMessage {
			c.hub.request(c, requestInvalid)
			continue
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.hub.request(c, requestInvalid)
			continue
		}
		c.hub.request(c, in.Type)
	}
}

// writePump owns the socket's write side: queued messages and keepalive
// pings. It closes the socket once the hub closes send.
func (c *Client) writePump() {
	keepalive := time.NewTicker(pingPeriod)
	defer func() {
		keepalive.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				logging.Warn().Err(err).Str("message_type", msg.Type).Msg("dashboard message not encodable")
				continue
			}
			if err := c.write(websocket.TextMessage, payload); err != nil {
				logging.Debug().Err(err).Uint64("client", c.id).Msg("failed to write dashboard message")
				return
			}
		case <-keepalive.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, payload)
}
