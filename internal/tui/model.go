// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

// Package tui is the terminal dashboard for floor staff. It shows the live
// notifications and the reconciled pending list, and drives the same
// operations as the HTTP dashboard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tomtom215/billcall/internal/billrequest"
	"github.com/tomtom215/billcall/internal/clock"
	"github.com/tomtom215/billcall/internal/models"
	"github.com/tomtom215/billcall/internal/realtime"
	"github.com/tomtom215/billcall/internal/reconcile"
)

// Notifications lists and mutates the visible notifications.
type Notifications interface {
	List() []models.Notification
	Dismiss(id string) bool
	ClearAll()
}

// Pending is the reconciled pending list.
type Pending interface {
	Cache() *reconcile.PendingCache
	Trigger(reason string)
	MarkAttended(ctx context.Context, requestID string) (*models.BillRequest, error)
}

// Realtime reports on and restarts the stream.
type Realtime interface {
	Status() realtime.Status
	Reconnect(ctx context.Context) error
}

// Deps are the components the dashboard drives.
type Deps struct {
	Notifications Notifications
	Pending       Pending
	Realtime      Realtime
	Clock         clock.Scheduler

	// ActionTimeout bounds backend calls started from a key press.
	ActionTimeout time.Duration
}

type pane int

const (
	paneNotifications pane = iota
	panePending
)

// tickInterval refreshes countdowns and time-ago labels.
const tickInterval = time.Second

type (
	tickMsg    time.Time
	changedMsg struct{}
	actionMsg  struct {
		text string
		err  error
	}
)

// Model is the bubbletea model of the dashboard.
type Model struct {
	deps Deps
	keys KeyMap
	help help.Model

	notifications []models.Notification
	pending       []models.BillRequest
	status        realtime.Status
	now           time.Time

	focus  pane
	cursor [2]int
	flash  actionMsg
	width  int
}

// New returns a model loaded with the current state.
func New(deps Deps) *Model {
	deps.Clock = clock.OrReal(deps.Clock)
	if deps.ActionTimeout <= 0 {
		deps.ActionTimeout = 15 * time.Second
	}
	m := &Model{deps: deps, keys: DefaultKeyMap(), help: help.New()}
	m.reload()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.reload()
		return m, tick()

	case changedMsg:
		m.reload()
		return m, nil

	case actionMsg:
		m.flash = msg
		m.reload()
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor[m.focus] > 0 {
			m.cursor[m.focus]--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor[m.focus] < m.paneLen(m.focus)-1 {
			m.cursor[m.focus]++
		}

	case key.Matches(msg, m.keys.Switch):
		m.focus = (m.focus + 1) % 2

	case key.Matches(msg, m.keys.Dismiss):
		if n, ok := m.selectedNotification(); ok {
			m.deps.Notifications.Dismiss(n.ID)
			m.reload()
		}

	case key.Matches(msg, m.keys.Attend):
		if id := m.selectedRequestID(); id != "" {
			return m.attend(id)
		}

	case key.Matches(msg, m.keys.Clear):
		m.deps.Notifications.ClearAll()
		m.reload()

	case key.Matches(msg, m.keys.Refresh):
		m.deps.Pending.Trigger(reconcile.TriggerManual)
		m.flash = actionMsg{text: "Refreshing pending requests"}

	case key.Matches(msg, m.keys.Reconnect):
		return m.reconnect()
	}
	return nil
}

func (m *Model) attend(id string) tea.Cmd {
	pending, timeout := m.deps.Pending, m.deps.ActionTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := pending.MarkAttended(ctx, id); err != nil {
			return actionMsg{err: errors.New(billrequest.FriendlyMessage(err, billrequest.OpMarkAttended))}
		}
		return actionMsg{text: "Request marked as attended"}
	}
}

func (m *Model) reconnect() tea.Cmd {
	rt := m.deps.Realtime
	if rt == nil {
		return nil
	}
	return func() tea.Msg {
		if err := rt.Reconnect(context.Background()); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: "Reconnecting to live updates"}
	}
}

func (m *Model) reload() {
	m.now = m.deps.Clock.Now()
	m.notifications = m.deps.Notifications.List()
	m.pending = m.deps.Pending.Cache().Snapshot()
	if m.deps.Realtime != nil {
		m.status = m.deps.Realtime.Status()
	}
	for p := paneNotifications; p <= panePending; p++ {
		if n := m.paneLen(p); m.cursor[p] >= n {
			m.cursor[p] = max(n-1, 0)
		}
	}
}

func (m *Model) paneLen(p pane) int {
	if p == paneNotifications {
		return len(m.notifications)
	}
	return len(m.pending)
}

func (m *Model) selectedNotification() (models.Notification, bool) {
	if m.focus != paneNotifications || len(m.notifications) == 0 {
		return models.Notification{}, false
	}
	return m.notifications[m.cursor[paneNotifications]], true
}

// selectedRequestID is the backend id under the cursor: the pending
// request, or the request behind the selected notification.
func (m *Model) selectedRequestID() string {
	if m.focus == panePending {
		if len(m.pending) == 0 {
			return ""
		}
		return m.pending[m.cursor[panePending]].ID
	}
	if n, ok := m.selectedNotification(); ok {
		return n.RequestID
	}
	return ""
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Billcall"))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	if m.status.Degraded() {
		b.WriteString(bannerStyle.Render(realtime.ExhaustedMessage + " (press R to reconnect)"))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.paneTitle(paneNotifications, fmt.Sprintf("Notifications (%d)", len(m.notifications))))
	b.WriteString("\n")
	if len(m.notifications) == 0 {
		b.WriteString(mutedStyle.Render("  No bill requests right now"))
		b.WriteString("\n")
	}
	for i, n := range m.notifications {
		line := fmt.Sprintf("Table %-3d %s", n.TableNumber, n.Message)
		if !n.ExpiresAt.IsZero() {
			left := n.ExpiresAt.Sub(m.now).Round(time.Second)
			line += mutedStyle.Render(fmt.Sprintf("  %s", max(left, 0)))
		}
		b.WriteString(m.row(paneNotifications, i, line))
	}
	b.WriteString("\n")

	b.WriteString(m.paneTitle(panePending, fmt.Sprintf("Pending requests (%d)", len(m.pending))))
	b.WriteString("\n")
	if len(m.pending) == 0 {
		b.WriteString(mutedStyle.Render("  Nothing pending"))
		b.WriteString("\n")
	}
	for i, req := range m.pending {
		line := fmt.Sprintf("Table %-3d %s", req.TableNumber, models.TimeAgo(m.now, req.CreatedAt))
		b.WriteString(m.row(panePending, i, line))
	}
	b.WriteString("\n")

	if m.flash.err != nil {
		b.WriteString(errorStyle.Render(m.flash.err.Error()))
		b.WriteString("\n")
	} else if m.flash.text != "" {
		b.WriteString(successStyle.Render(m.flash.text))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) statusLine() string {
	st := m.status
	switch {
	case st.Degraded():
		return errorStyle.Render("offline")
	case st.State == realtime.StateOpen:
		return successStyle.Render("live")
	case st.Attempt > 0:
		return mutedStyle.Render(fmt.Sprintf("%s (attempt %d)", st.State, st.Attempt))
	default:
		return mutedStyle.Render(st.State.String())
	}
}

func (m *Model) paneTitle(p pane, text string) string {
	if m.focus == p {
		return activePaneTitleStyle.Render(text)
	}
	return paneTitleStyle.Render(text)
}

func (m *Model) row(p pane, i int, line string) string {
	if m.focus == p && m.cursor[p] == i {
		return selectedStyle.Render("> "+line) + "\n"
	}
	return "  " + line + "\n"
}
