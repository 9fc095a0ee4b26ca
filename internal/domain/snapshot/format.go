package snapshot

import (
	"strings"

	"usbspeed/internal/domain/topology"
)

// Formatter renders changes as notification text.
type Formatter struct {
	labels *topology.Labels
}

func NewFormatter(labels *topology.Labels) *Formatter {
	if labels == nil {
		labels = topology.ChineseLabels()
	}
	return &Formatter{labels: labels}
}

// Title returns the notification title.
func (f *Formatter) Title() string {
	return f.labels.Title
}

// Format returns the header for the change kind followed by one
// "{name}: {speed}" line per device.
func (f *Formatter) Format(c Change) string {
	var header string
	switch c.Kind {
	case KindAdded:
		header = f.labels.Added
	case KindRemoved:
		header = f.labels.Removed
	default:
		return f.labels.Unchanged
	}

	var b strings.Builder
	b.WriteString(header)
	for _, d := range c.Devices {
		b.WriteByte('\n')
		b.WriteString(d.Line())
	}
	return b.String()
}
