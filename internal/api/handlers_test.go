// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/billcall/internal/billrequest"
	"github.com/tomtom215/billcall/internal/clock"
	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/models"
	"github.com/tomtom215/billcall/internal/notify"
	"github.com/tomtom215/billcall/internal/realtime"
	"github.com/tomtom215/billcall/internal/reconcile"
	"github.com/tomtom215/billcall/internal/session"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

var testNow = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

type storeController struct {
	store *notify.Store
	clk   clock.Scheduler
}

func (s *storeController) AddNotification(table int, message string) models.Notification {
	n := models.NewNotification(table, "", message, s.clk.Now())
	s.store.Add(n)
	return n
}

func (s *storeController) Dismiss(id string) bool { return s.store.Remove(id) }
func (s *storeController) ClearAll()              { s.store.Clear() }

type fakePending struct {
	cache *reconcile.PendingCache

	mu       sync.Mutex
	triggers []string
	attended []string
	markErr  error
}

func (f *fakePending) Cache() *reconcile.PendingCache { return f.cache }

func (f *fakePending) Trigger(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, reason)
}

func (f *fakePending) MarkAttended(_ context.Context, id string) (*models.BillRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return nil, f.markErr
	}
	f.attended = append(f.attended, id)
	return &models.BillRequest{ID: id, Status: models.StatusAttended}, nil
}

type fakeRealtime struct {
	status       realtime.Status
	reconnectErr error
	reconnects   int
}

func (f *fakeRealtime) Status() realtime.Status { return f.status }

func (f *fakeRealtime) Reconnect(context.Context) error {
	f.reconnects++
	if f.reconnectErr != nil {
		return f.reconnectErr
	}
	f.status = realtime.Status{State: realtime.StateConnecting}
	return nil
}

type fixture struct {
	store    *notify.Store
	pending  *fakePending
	realtime *fakeRealtime
	handler  *Handler
	server   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(testNow)
	f := &fixture{
		store:    notify.NewStore(),
		pending:  &fakePending{cache: reconcile.NewPendingCache()},
		realtime: &fakeRealtime{status: realtime.Status{State: realtime.StateOpen}},
	}
	f.handler = NewHandler(Deps{
		Notifications: &storeController{store: f.store, clk: clk},
		Store:         f.store,
		Pending:       f.pending,
		Realtime:      f.realtime,
		Clock:         clk,
	})
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 0
	f.server = NewRouter(f.handler, cfg).SetupChi()
	return f
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(t, http.MethodGet, "/api/v1/health", "")
	if code != http.StatusOK || !env.Success {
		t.Fatalf("health = %d %+v", code, env)
	}
	if env.Meta == nil || env.Meta.Timestamp.IsZero() {
		t.Error("meta timestamp missing")
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.store.Add(models.NewNotification(4, "", "", testNow))
	f.pending.cache.Replace([]models.BillRequest{
		{ID: "a", TableNumber: 1, Status: models.StatusPending, CreatedAt: testNow},
	}, testNow)

	code, env := f.do(t, http.MethodGet, "/api/v1/status", "")
	if code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	var st StatusResponse
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Degraded || st.Message != "" {
		t.Errorf("open stream reported degraded: %+v", st)
	}
	if st.Notifications != 1 || st.Pending != 1 {
		t.Errorf("counts = %d/%d, want 1/1", st.Notifications, st.Pending)
	}
	if st.PendingUpdatedAt == nil || !st.PendingUpdatedAt.Equal(testNow) {
		t.Errorf("pendingUpdatedAt = %v", st.PendingUpdatedAt)
	}
	if st.Realtime.State != realtime.StateOpen {
		t.Errorf("state = %v", st.Realtime.State)
	}
}

func TestStatusDegraded(t *testing.T) {
	f := newFixture(t)
	f.realtime.status = realtime.Status{State: realtime.StateClosed, Exhausted: true, Attempt: 10}

	_, env := f.do(t, http.MethodGet, "/api/v1/status", "")
	var st StatusResponse
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatal(err)
	}
	if !st.Degraded {
		t.Fatal("exhausted stream not reported as degraded")
	}
	if st.Message != realtime.ExhaustedMessage {
		t.Errorf("message = %q", st.Message)
	}
}

func TestReconnect(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/v1/realtime/reconnect", "")
	if code != http.StatusAccepted {
		t.Fatalf("reconnect = %d, want 202", code)
	}
	if f.realtime.reconnects != 1 {
		t.Errorf("reconnects = %d", f.realtime.reconnects)
	}

	f.realtime.reconnectErr = session.ErrMissingCredentials
	code, env := f.do(t, http.MethodPost, "/api/v1/realtime/reconnect", "")
	if code != http.StatusConflict || env.Error == nil || env.Error.Code != ErrCodeConflict {
		t.Errorf("failed reconnect = %d %+v", code, env.Error)
	}
}

func TestNotificationsLifecycle(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(t, http.MethodPost, "/api/v1/notifications", `{"tableNumber":7}`)
	if code != http.StatusCreated {
		t.Fatalf("add = %d %+v", code, env.Error)
	}
	var added models.Notification
	if err := json.Unmarshal(env.Data, &added); err != nil {
		t.Fatal(err)
	}
	if added.TableNumber != 7 || added.Message != models.DefaultMessage(7) {
		t.Errorf("added = %+v", added)
	}
	f.do(t, http.MethodPost, "/api/v1/notifications", `{"tableNumber":8,"message":"with card"}`)

	code, env = f.do(t, http.MethodGet, "/api/v1/notifications", "")
	if code != http.StatusOK {
		t.Fatalf("list = %d", code)
	}
	var list []models.Notification
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].TableNumber != 8 {
		t.Fatalf("list not newest first: %+v", list)
	}
	if env.Meta.Count == nil || *env.Meta.Count != 2 {
		t.Errorf("meta count = %v", env.Meta.Count)
	}

	code, _ = f.do(t, http.MethodDelete, "/api/v1/notifications/"+added.ID, "")
	if code != http.StatusOK {
		t.Errorf("dismiss = %d", code)
	}
	code, env = f.do(t, http.MethodDelete, "/api/v1/notifications/"+added.ID, "")
	if code != http.StatusNotFound || env.Error.Code != ErrCodeNotFound {
		t.Errorf("second dismiss = %d", code)
	}

	code, _ = f.do(t, http.MethodDelete, "/api/v1/notifications", "")
	if code != http.StatusOK || f.store.Len() != 0 {
		t.Errorf("clear = %d, remaining %d", code, f.store.Len())
	}
}

func TestAddNotificationValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"bad json", `{"tableNumber":`, ErrCodeBadRequest},
		{"zero table", `{"tableNumber":0}`, ErrCodeValidationFailed},
		{"string table", `{"tableNumber":"7"}`, ErrCodeBadRequest},
		{"long message", `{"tableNumber":3,"message":"` + strings.Repeat("x", 300) + `"}`, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := f.do(t, http.MethodPost, "/api/v1/notifications", tt.body)
			if code != http.StatusBadRequest {
				t.Fatalf("code = %d", code)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want %s", env.Error, tt.code)
			}
		})
	}
	if f.store.Len() != 0 {
		t.Errorf("invalid bodies added %d notifications", f.store.Len())
	}
}

func TestListPending(t *testing.T) {
	f := newFixture(t)
	f.pending.cache.Replace([]models.BillRequest{
		{ID: "new", TableNumber: 2, Status: models.StatusPending, CreatedAt: testNow},
		{ID: "old", TableNumber: 5, Status: models.StatusPending, CreatedAt: testNow.Add(-3 * time.Minute)},
	}, testNow)

	code, env := f.do(t, http.MethodGet, "/api/v1/requests/pending", "")
	if code != http.StatusOK {
		t.Fatalf("pending = %d", code)
	}
	var items []PendingItem
	if err := json.Unmarshal(env.Data, &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	ages := map[string]string{}
	for _, it := range items {
		ages[it.ID] = it.TimeAgo
	}
	if ages["new"] != "Now" || ages["old"] != "3 minutes ago" {
		t.Errorf("timeAgo = %v", ages)
	}
}

func TestRefreshPending(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/v1/requests/refresh", "")
	if code != http.StatusAccepted {
		t.Fatalf("refresh = %d", code)
	}
	if len(f.pending.triggers) != 1 || f.pending.triggers[0] != reconcile.TriggerManual {
		t.Errorf("triggers = %v", f.pending.triggers)
	}
}

func TestMarkAttended(t *testing.T) {
	f := newFixture(t)

	code, env := f.do(t, http.MethodPut, "/api/v1/requests/r-1/attended", "")
	if code != http.StatusOK {
		t.Fatalf("attended = %d %+v", code, env.Error)
	}
	var req models.BillRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		t.Fatal(err)
	}
	if req.ID != "r-1" || req.Status != models.StatusAttended {
		t.Errorf("req = %+v", req)
	}
}

func TestMarkAttendedErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{
			name:    "gone",
			err:     &billrequest.HTTPError{StatusCode: http.StatusNotFound},
			code:    http.StatusNotFound,
			message: billrequest.FriendlyMessage(&billrequest.HTTPError{StatusCode: 404}, billrequest.OpMarkAttended),
		},
		{
			name:    "expired session",
			err:     &billrequest.HTTPError{StatusCode: http.StatusUnauthorized},
			code:    http.StatusUnauthorized,
			message: billrequest.FriendlyMessage(&billrequest.HTTPError{StatusCode: 401}, billrequest.OpMarkAttended),
		},
		{
			name:    "backend down",
			err:     billrequest.ErrCircuitOpen,
			code:    http.StatusServiceUnavailable,
			message: billrequest.FriendlyMessage(billrequest.ErrCircuitOpen, billrequest.OpMarkAttended),
		},
		{
			name:    "server error",
			err:     &billrequest.HTTPError{StatusCode: http.StatusInternalServerError},
			code:    http.StatusBadGateway,
			message: billrequest.FriendlyMessage(&billrequest.HTTPError{StatusCode: 500}, billrequest.OpMarkAttended),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.pending.markErr = tt.err

			code, env := f.do(t, http.MethodPut, "/api/v1/requests/r-1/attended", "")
			if code != tt.code {
				t.Fatalf("code = %d, want %d", code, tt.code)
			}
			if env.Error == nil || env.Error.Message != tt.message {
				t.Errorf("error = %+v, want message %q", env.Error, tt.message)
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	code, env := f.do(t, http.MethodGet, "/api/v1/nope", "")
	if code != http.StatusNotFound || env.Success {
		t.Errorf("unknown route = %d %+v", code, env)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("nosniff = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("frame options = %q", got)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Errorf("request id header = %q", got)
	}
	var env envelope
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.Meta.RequestID != "req-123" {
		t.Errorf("meta request id = %q", env.Meta.RequestID)
	}
}
