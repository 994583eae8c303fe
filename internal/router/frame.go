// Billcall - Real-time Bill Request Notifications for Restaurant Staff
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/billcall

package router

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/billcall/internal/models"
	"github.com/tomtom215/billcall/internal/validation"
)

// ErrMalformedFrame wraps every frame parse or validation failure.
var ErrMalformedFrame = errors.New("malformed frame")

// EventTypeBillRequest marks frames that carry no status and are pending by
// definition.
const EventTypeBillRequest = "bill_request"

// wireFrame is the JSON shape of a stream frame.
//
//	{"tableNumber": 5, "status": "pending", "id": "r1", "message": "..."}
type wireFrame struct {
	TableNumber json.RawMessage `json:"tableNumber"`
	Status      string          `json:"status"`
	ID          string          `json:"id"`
	Message     string          `json:"message"`
	Type        string          `json:"type"`
}

// malformedError carries the metric reason alongside ErrMalformedFrame.
type malformedError struct {
	reason string
	detail string
}

func (e *malformedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedFrame, e.detail)
}

func (e *malformedError) Unwrap() error { return ErrMalformedFrame }

// ParseFrame decodes and validates one frame. Status is lower-cased;
// bill_request frames without a status are pending.
func ParseFrame(payload []byte, receivedAt time.Time) (models.BillRequestEvent, error) {
	var wf wireFrame
	if err := json.Unmarshal(payload, &wf); err != nil {
		return models.BillRequestEvent{}, &malformedError{reason: "json", detail: err.Error()}
	}

	table, err := parseTableNumber(wf.TableNumber)
	if err != nil {
		return models.BillRequestEvent{}, &malformedError{reason: "table_number", detail: err.Error()}
	}

	status := strings.ToLower(strings.TrimSpace(wf.Status))
	if status == "" && wf.Type == EventTypeBillRequest {
		status = string(models.StatusPending)
	}

	ev := models.BillRequestEvent{
		EventType:   wf.Type,
		TableNumber: table,
		RequestID:   strings.TrimSpace(wf.ID),
		Status:      models.BillRequestStatus(status),
		Message:     wf.Message,
		ReceivedAt:  receivedAt,
	}
	if err := validation.ValidateStruct(&ev); err != nil {
		return models.BillRequestEvent{}, &malformedError{reason: "validation", detail: err.Error()}
	}
	return ev, nil
}

// parseTableNumber accepts only positive JSON integers.
func parseTableNumber(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("tableNumber missing")
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("tableNumber %s is not an integer", raw)
	}
	if n <= 0 {
		return 0, fmt.Errorf("tableNumber %d out of range", n)
	}
	return n, nil
}

// DedupKey identifies equivalent events within one arrival second:
//
//	"{table}:{requestId or table}:{unixSecond}"
func DedupKey(ev models.BillRequestEvent, arrival time.Time) string {
	return dedupKeyAt(ev, arrival.Unix())
}

func dedupKeyAt(ev models.BillRequestEvent, second int64) string {
	identity := ev.RequestID
	if identity == "" {
		identity = strconv.Itoa(ev.TableNumber)
	}
	return strconv.Itoa(ev.TableNumber) + ":" + identity + ":" + strconv.FormatInt(second, 10)
}

// lookbackKeys returns the keys for every arrival second a window of the
// given length may still hold, newest first.
func lookbackKeys(ev models.BillRequestEvent, arrival time.Time, window time.Duration) []string {
	span := int64((window + time.Second - 1) / time.Second)
	sec := arrival.Unix()
	keys := make([]string, 0, span+1)
	for s := sec; s >= sec-span; s-- {
		keys = append(keys, dedupKeyAt(ev, s))
	}
	return keys
}
