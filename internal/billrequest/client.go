// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

/*
Package billrequest is the REST client for the restaurant backend's bill
request endpoints.

Endpoints:
  - GET  /api/v1/requests/restaurant/{restaurantId}/pending
  - PUT  /api/v1/requests/{requestId}/status      {"status":"attended"}
  - POST /api/v1/public/request-account           {"restaurantId","tableId","tableNumber","hash"}

Every call waits on an outbound rate limiter, then runs through a circuit
breaker. Authenticated calls carry "Authorization: Bearer {token}".
Non-2xx responses become *HTTPError; use FriendlyMessage to render them
for staff.
*/
package billrequest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/billcall/internal/logging"
	"github.com/tomtom215/billcall/internal/metrics"
	"github.com/tomtom215/billcall/internal/models"
	"github.com/tomtom215/billcall/internal/session"
	"github.com/tomtom215/billcall/internal/validation"
)

const maxBodyBytes = 1 << 20

// CredentialSource supplies the current session. *session.Holder
// implements it.
type CredentialSource interface {
	Get() session.Credentials
}

// Config configures a Client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	// BreakerName labels circuit breaker metrics.
	BreakerName string

	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// Client calls the backend.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	name    string
	creds   CredentialSource
}

// NewClient returns a Client for cfg.BaseURL. ws and wss base URLs map to
// http and https.
func NewClient(cfg Config, creds CredentialSource) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}
	if cfg.BreakerName == "" {
		cfg.BreakerName = "backend-api"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL: restBase(cfg.BaseURL),
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		cb:      newBreaker(cfg.BreakerName),
		name:    cfg.BreakerName,
		creds:   creds,
	}
}

func restBase(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "wss://"):
		return "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "ws://"):
		return "http://" + strings.TrimPrefix(base, "ws://")
	default:
		return base
	}
}

// FetchPending returns the restaurant's pending bill requests.
func (c *Client) FetchPending(ctx context.Context, restaurantID string) ([]models.BillRequest, error) {
	if restaurantID == "" {
		return nil, session.ErrMissingCredentials
	}
	path := "/api/v1/requests/restaurant/" + url.PathEscape(restaurantID) + "/pending"

	body, err := c.do(ctx, OpFetchRequests, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []models.BillRequest{}, nil
	}

	var env models.BackendEnvelope[[]models.BillRequest]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode pending requests: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, env.Message)
	}
	if env.Data == nil {
		env.Data = []models.BillRequest{}
	}
	return env.Data, nil
}

// MarkAttended sets a request's status to attended. The returned request
// is nil when the backend answers 204.
func (c *Client) MarkAttended(ctx context.Context, requestID string) (*models.BillRequest, error) {
	if requestID == "" {
		return nil, errors.New("request id is required")
	}
	path := "/api/v1/requests/" + url.PathEscape(requestID) + "/status"

	body, err := c.do(ctx, OpMarkAttended, http.MethodPut, path,
		models.UpdateStatusRequest{Status: models.StatusAttended}, true)
	if err != nil || body == nil {
		return nil, err
	}

	var resp models.AttendedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode attended response: %w", err)
	}
	return resp.Request, nil
}

// Create submits a bill request the way a table's QR page does. The
// endpoint is public; no token is sent.
func (c *Client) Create(ctx context.Context, req models.CreateBillRequest) (*models.BillRequest, error) {
	if err := validation.ValidateStruct(&req); err != nil {
		return nil, fmt.Errorf("invalid bill request: %w", err)
	}

	body, err := c.do(ctx, OpCreateBillRequest, http.MethodPost, "/api/v1/public/request-account", req, false)
	if err != nil || body == nil {
		return nil, err
	}

	var env models.BackendEnvelope[*models.BillRequest]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode created request: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, env.Message)
	}
	return env.Data, nil
}

// BreakerState returns the circuit breaker state name.
func (c *Client) BreakerState() string {
	return stateToString(c.cb.State())
}

// do performs one request. A nil body with a nil error means 204.
func (c *Client) do(ctx context.Context, op Operation, method, path string, payload any, auth bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	start := time.Now()
	status := 0
	body, err := c.execute(func() ([]byte, error) {
		req, err := c.newRequest(ctx, method, path, payload, auth)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		if resp.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		return data, nil
	})
	metrics.RecordBackendRequest(string(op), status, time.Since(start))

	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("operation", string(op)).Int("status", status).Msg("backend request failed")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload any, auth bool) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth && c.creds != nil {
		if token := c.creds.Get().Token; token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	return req, nil
}
