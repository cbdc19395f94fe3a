package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ErrorEvent is a single Bugsnag event as returned by the Data Access API.
// Instances are read-only snapshots that live for one export run.
type ErrorEvent struct {
	ID           string      `json:"id"`
	URL          string      `json:"url"`
	ProjectURL   string      `json:"project_url"`
	IsFullReport bool        `json:"is_full_report"`
	ErrorID      string      `json:"error_id"`
	ReceivedAt   time.Time   `json:"received_at"`
	Exceptions   []Exception `json:"exceptions"`

	// raw holds every attribute of the upstream payload, including the ones
	// the typed fields above don't name. Numbers are json.Number.
	raw map[string]any
}

// Exception is one entry of an event's exception chain.
type Exception struct {
	ErrorClass string `json:"error_class"`
	Message    string `json:"message"`
}

// UnmarshalJSON decodes the typed fields and keeps the full payload for
// structural lookups.
func (e *ErrorEvent) UnmarshalJSON(data []byte) error {
	type plain ErrorEvent
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("event: %w", err)
	}

	*e = ErrorEvent(p)
	e.ReceivedAt = e.ReceivedAt.UTC()
	e.raw = raw
	return nil
}

// Fields returns the event as a tree of maps and slices for path lookups.
// received_at is a time.Time in UTC (absent when unset) and the exception
// chain is reachable as both "exceptions" and "exception". The top-level map
// is fresh on each call; nested values are shared with the event.
func (e ErrorEvent) Fields() map[string]any {
	if e.raw != nil {
		m := make(map[string]any, len(e.raw)+1)
		for k, v := range e.raw {
			m[k] = v
		}
		if e.ReceivedAt.IsZero() {
			delete(m, "received_at")
		} else {
			m["received_at"] = e.ReceivedAt.UTC()
		}
		if exc, ok := m["exceptions"]; ok {
			m["exception"] = exc
		}
		return m
	}

	exceptions := make([]any, len(e.Exceptions))
	for i, x := range e.Exceptions {
		exceptions[i] = map[string]any{
			"error_class": x.ErrorClass,
			"message":     x.Message,
		}
	}
	m := map[string]any{
		"id":             e.ID,
		"url":            e.URL,
		"project_url":    e.ProjectURL,
		"is_full_report": e.IsFullReport,
		"error_id":       e.ErrorID,
		"exceptions":     exceptions,
		"exception":      exceptions,
	}
	if !e.ReceivedAt.IsZero() {
		m["received_at"] = e.ReceivedAt.UTC()
	}
	return m
}
