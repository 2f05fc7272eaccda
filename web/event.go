// Package web provides structured, per-operation event logging for the
// CA core's boundary operations (CSR submission, initialization). It
// plays the role the teacher family's web.RequestEvent/TopHandler play
// for HTTP requests, adapted to operations that do not arrive over
// HTTP in this module: an event is opened when an operation begins,
// populated as the operation runs, and logged exactly once when it
// completes.
package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/puppetlabs/puppetserver-ca-core/calog"
)

// Event is a structured record of the metadata worth logging for a
// single CA-core operation (a CSR submission or an initialization
// run).
type Event struct {
	// These fields are rendered whitespace-separated ahead of the JSON
	// blob, the same layout the teacher family uses for its request
	// logs, so the hot fields stay greppable without a JSON parser.
	Operation string  `json:"-"`
	Subject   string  `json:"-"`
	Outcome   string  `json:"-"`
	Latency   float64 `json:"-"`

	SerialHex      string   `json:",omitempty"`
	Error          string   `json:",omitempty"`
	InternalErrors []string `json:",omitempty"`

	// suppressed controls whether this event is logged at all when the
	// operation completes; automatically cleared by AddError.
	suppressed bool `json:"-"`
}

// AddError appends a formatted internal error to the event and
// un-suppresses it (logging errors takes precedence over suppression).
func (e *Event) AddError(format string, args ...interface{}) {
	e.InternalErrors = append(e.InternalErrors, fmt.Sprintf(format, args...))
	e.suppressed = false
}

// Suppress marks the event to be skipped entirely when the operation
// completes. A no-op once an internal error has been recorded.
func (e *Event) Suppress() {
	if len(e.InternalErrors) == 0 {
		e.suppressed = true
	}
}

// Recorder times an operation and logs its Event exactly once on
// completion.
type Recorder struct {
	Log calog.Logger
}

// NewRecorder returns a Recorder that logs through log.
func NewRecorder(log calog.Logger) *Recorder {
	return &Recorder{Log: log}
}

// Run starts an Event for operation/subject, invokes fn with it, and
// logs the event when fn returns -- whether or not fn errored.
func (r *Recorder) Run(operation, subject string, fn func(*Event) error) error {
	event := &Event{Operation: operation, Subject: subject, Outcome: "ok"}
	begin := time.Now()

	err := fn(event)

	event.Latency = time.Since(begin).Seconds()
	if err != nil {
		event.Outcome = "error"
		event.Error = err.Error()
	}
	r.logEvent(event)
	return err
}

func (r *Recorder) logEvent(event *Event) {
	if event.suppressed {
		return
	}
	jsonEvent, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		r.Log.AuditErrf("failed to marshal event for %s %s: %s", event.Operation, event.Subject, marshalErr)
		return
	}
	r.Log.Infof("%s %s %s %d JSON=%s",
		event.Operation, event.Subject, event.Outcome, int(event.Latency*1000), jsonEvent)
}
