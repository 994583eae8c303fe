// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/metrics"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types.
const (
	MessageTypeSnapshot             = "snapshot"
	MessageTypeNotificationAdded    = "notification_added"
	MessageTypeNotificationRemoved  = "notification_removed"
	MessageTypeNotificationsCleared = "notifications_cleared"
	MessageTypePendingUpdated       = "pending_updated"
	MessageTypeConnectionStatus     = "connection_status"
	MessageTypePong                 = "pong"
	MessageTypeError                = "error"
)

// Request types a browser may send.
const (
	MessageTypePing   = "ping"
	MessageTypeResync = "resync"

	// requestInvalid marks a frame that was not a JSON object.
	requestInvalid = ""
)

type clientRequest struct {
	client *Client
	kind   string
}

// Message is one frame sent to a browser.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SnapshotFunc returns the messages a newly registered client receives
// before any broadcast.
type SnapshotFunc func() []Message

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	requests   chan clientRequest
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
	snapshot   SnapshotFunc
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		requests:   make(chan clientRequest, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// SetSnapshot installs fn. Call before RunWithContext.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

// RunWithContext runs the hub until ctx is done, then closes every client.
// It implements suture.Service via Serve.
//
// Lifecycle events are drained before broadcasts so a client registered
// before a broadcast always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		case req := <-h.requests:
			h.answer(req)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	snapshot := h.snapshot
	total := len(h.clients)
	h.mu.Unlock()

	if snapshot != nil {
		queue(client, snapshot())
	}
	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

// request hands a browser request to the hub goroutine. It never blocks;
// requests beyond the queue are dropped.
func (h *Hub) request(client *Client, kind string) {
	select {
	case h.requests <- clientRequest{client: client, kind: kind}:
	default:
		logging.Debug().Uint64("client", client.id).Str("request", kind).Msg("dashboard request dropped")
	}
}

// answer runs on the hub goroutine, so client.send cannot be closed under
// it. Requests from clients already gone are ignored.
func (h *Hub) answer(req clientRequest) {
	h.mu.RLock()
	_, live := h.clients[req.client]
	snapshot := h.snapshot
	h.mu.RUnlock()
	if !live {
		return
	}

	switch req.kind {
	case MessageTypePing:
		queue(req.client, []Message{{Type: MessageTypePong}})
	case MessageTypeResync:
		if snapshot != nil {
			queue(req.client, snapshot())
		}
	case requestInvalid:
		queue(req.client, []Message{{Type: MessageTypeError, Data: "expected a JSON object with a type"}})
	default:
		queue(req.client, []Message{{Type: MessageTypeError, Data: "unknown request type: " + req.kind}})
	}
}

// queue delivers msgs without blocking; a full buffer drops the rest.
func queue(client *Client, msgs []Message) {
	for _, msg := range msgs {
		select {
		case client.send <- msg:
		default:
			metrics.WSMessagesDropped.Inc()
			return
		}
	}
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// broadcastToClients sends message to every client in id order. Clients
// with a full buffer are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClientsLocked() {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			metrics.WSMessagesDropped.Inc()
			close(client.send)
			delete(h.clients, client)
		}
	}
	metrics.WSConnections.Set(float64(len(h.clients)))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClientsLocked() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// Broadcast queues a message for every client. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		metrics.WSMessagesDropped.Inc()
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
