// Package audit records who ran which command with which outcome.
//
// A Sink never blocks the caller: the log sink writes synchronously to zerolog,
// the database sink queues events for a background writer.
package audit

import (
	"encoding/json"
	"time"

	"github.com/adopsbot/adopsbot/internal/db/models"
	"github.com/adopsbot/adopsbot/internal/permission"
)

// Outcome of an audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

// Event is one audited action.
type Event struct {
	Time     time.Time
	Action   string
	Identity permission.Identity
	Login    string
	Outcome  Outcome
	// Target is the account, group or computer acted upon.
	Target   string
	Err      error
	Metadata map[string]string
}

// Sink receives audit events.
type Sink interface {
	Record(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

// Record implements Sink.
func (f SinkFunc) Record(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

type multi []Sink

func (m multi) Record(ev Event) {
	for _, s := range m {
		s.Record(ev)
	}
}

// Multi fans an event out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))

	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}

	return out
}

// toEntry converts ev into its database row.
func toEntry(ev Event) models.AuditEntry {
	entry := models.AuditEntry{
		OccurredAt: ev.Time.UTC(),
		Action:     ev.Action,
		Identity:   int64(ev.Identity),
		Login:      ev.Login,
		Outcome:    string(ev.Outcome),
		Target:     ev.Target,
	}

	detail := make(map[string]string, len(ev.Metadata)+1)
	for k, v := range ev.Metadata {
		detail[k] = v
	}

	if ev.Err != nil {
		detail["error"] = ev.Err.Error()
	}

	if len(detail) > 0 {
		if b, err := json.Marshal(detail); err == nil {
			entry.Detail = string(b)
		}
	}

	return entry
}

func stamp(ev Event) Event {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	return ev
}
