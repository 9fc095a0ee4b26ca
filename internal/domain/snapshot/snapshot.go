// Package snapshot holds immutable topology observations and the rules for
// comparing two of them.
package snapshot

import (
	"time"

	"usbspeed/internal/domain/topology"
)

// Snapshot is one successful observation: the decoded document and the
// devices flattened from it. A Snapshot is never modified once built.
type Snapshot struct {
	document *topology.Document
	devices  []topology.Device
	takenAt  time.Time
}

// New builds a snapshot. The device slice is copied.
func New(doc *topology.Document, devices []topology.Device, at time.Time) *Snapshot {
	return &Snapshot{
		document: doc,
		devices:  append([]topology.Device(nil), devices...),
		takenAt:  at,
	}
}

// Empty returns the snapshot held before the first successful scan. It has
// no document and no devices.
func Empty() *Snapshot {
	return &Snapshot{}
}

// Document returns the decoded tree. Callers must not modify it.
func (s *Snapshot) Document() *topology.Document {
	if s == nil {
		return nil
	}
	return s.document
}

// Devices returns a copy of the flattened devices.
func (s *Snapshot) Devices() []topology.Device {
	if s == nil {
		return nil
	}
	return append([]topology.Device(nil), s.devices...)
}

// Len returns the number of devices.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.devices)
}

// TakenAt returns when the observation was made. It is zero for Empty.
func (s *Snapshot) TakenAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.takenAt
}
