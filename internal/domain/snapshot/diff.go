package snapshot

import "usbspeed/internal/domain/topology"

// Kind classifies the result of a comparison.
type Kind string

const (
	KindAdded     Kind = "added"
	KindRemoved   Kind = "removed"
	KindUnchanged Kind = "unchanged"
)

// Change is the reportable outcome of a comparison.
type Change struct {
	Kind    Kind              `json:"kind"`
	Devices []topology.Device `json:"devices"`
}

// Delta is the full set difference between two observations, matched by
// identity only. Attribute changes on a device that keeps its identity are
// not part of a Delta.
type Delta struct {
	Added   []topology.Device `json:"added"`
	Removed []topology.Device `json:"removed"`
}

// Compare computes current minus previous and previous minus current.
// Devices keep their input order.
func Compare(previous, current []topology.Device) Delta {
	before := identitySet(previous)
	after := identitySet(current)

	var delta Delta
	for _, d := range current {
		if _, ok := before[d.Identity]; !ok {
			delta.Added = append(delta.Added, d)
		}
	}
	for _, d := range previous {
		if _, ok := after[d.Identity]; !ok {
			delta.Removed = append(delta.Removed, d)
		}
	}
	return delta
}

// Change applies the reporting precedence: additions win, and removals in
// the same cycle are not reported.
func (d Delta) Change() Change {
	switch {
	case len(d.Added) > 0:
		return Change{Kind: KindAdded, Devices: d.Added}
	case len(d.Removed) > 0:
		return Change{Kind: KindRemoved, Devices: d.Removed}
	default:
		return Change{Kind: KindUnchanged, Devices: []topology.Device{}}
	}
}

// IsSwap reports whether devices were both added and removed.
func (d Delta) IsSwap() bool {
	return len(d.Added) > 0 && len(d.Removed) > 0
}

// Diff compares two device lists and returns the reportable change.
func Diff(previous, current []topology.Device) Change {
	return Compare(previous, current).Change()
}

func identitySet(devices []topology.Device) map[string]struct{} {
	set := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		set[d.Identity] = struct{}{}
	}
	return set
}
