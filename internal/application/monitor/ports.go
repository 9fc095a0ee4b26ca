// Package monitor drives rescans of the device topology. Raw hotplug
// signals are coalesced into triggers, each trigger runs one serialized
// query, parse, flatten, diff, format and notify cycle, and the result
// replaces the current snapshot.
package monitor

import (
	"context"
	"time"
)

// Signal is a zero-payload "something changed" notice from a hotplug
// source. Source and At are informational only.
type Signal struct {
	Source string
	At     time.Time
}

// TopologySource returns the current topology document.
type TopologySource interface {
	Query(ctx context.Context) ([]byte, error)
}

// Notifier delivers a formatted change message. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// Recorder receives pipeline measurements.
type Recorder interface {
	RecordSignal(source string)
	RecordTrigger()
	RecordRun(outcome string, duration time.Duration)
	RecordChange(kind string, devices int)
	RecordDevices(count int)
	RecordDelivery(outcome string)
}

// Run outcomes reported to the Recorder.
const (
	OutcomeSuccess   = "success"
	OutcomeQuery     = "query_error"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

type nopRecorder struct{}

func (nopRecorder) RecordSignal(string)             {}
func (nopRecorder) RecordTrigger()                  {}
func (nopRecorder) RecordRun(string, time.Duration) {}
func (nopRecorder) RecordChange(string, int)        {}
func (nopRecorder) RecordDevices(int)               {}
func (nopRecorder) RecordDelivery(string)           {}
