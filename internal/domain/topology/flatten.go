package topology

import (
	"fmt"

	"github.com/google/uuid"

	"usbspeed/internal/errors"
)

// DefaultMaxDepth bounds how deep the flattener follows nested hubs.
const DefaultMaxDepth = 32

// FlattenOption configures a Flattener.
type FlattenOption func(*Flattener)

// WithMaxDepth sets the depth guard. Non-positive values keep the default.
func WithMaxDepth(depth int) FlattenOption {
	return func(f *Flattener) {
		if depth > 0 {
			f.maxDepth = depth
		}
	}
}

// WithTokenSource replaces the generator used for devices without a stable
// key.
func WithTokenSource(token func() string) FlattenOption {
	return func(f *Flattener) {
		if token != nil {
			f.token = token
		}
	}
}

// Flattener turns a Document into Device records.
type Flattener struct {
	labels   *Labels
	maxDepth int
	token    func() string
}

// NewFlattener creates a flattener rendering speeds with labels. A nil
// table falls back to ChineseLabels.
func NewFlattener(labels *Labels, opts ...FlattenOption) *Flattener {
	if labels == nil {
		labels = ChineseLabels()
	}
	f := &Flattener{
		labels:   labels,
		maxDepth: DefaultMaxDepth,
		token:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Labels returns the table used for speed descriptions.
func (f *Flattener) Labels() *Labels { return f.labels }

// linker is implemented by nodes that describe a negotiated link.
type linker interface {
	Link(l *Labels) (mode, status string)
}

type frame struct {
	node  Node
	depth int
}

// Flatten returns one Device per DeviceNode reachable from any bus, in
// depth-first document order. Callers must treat the result as a set.
func (f *Flattener) Flatten(doc *Document) ([]Device, error) {
	roots := doc.Roots()
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i]})
	}

	devices := make([]Device, 0, len(roots))
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.depth >= f.maxDepth {
			return nil, errors.NewMalformedTopology(
				fmt.Sprintf("device tree is deeper than %d levels", f.maxDepth), nil)
		}
		devices = append(devices, f.record(top.node, top.depth))

		children := top.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: children[i], depth: top.depth + 1})
		}
	}
	return devices, nil
}

func (f *Flattener) record(n Node, depth int) Device {
	identity, stable := n.StableKey(), true
	if identity == "" {
		identity, stable = f.token(), false
	}
	d := Device{
		Identity:         identity,
		DisplayName:      n.DisplayName(),
		SpeedDescription: n.SpeedDescription(f.labels),
		Family:           n.Family(),
		Vendor:           n.Vendor(),
		Stable:           stable,
		Depth:            depth,
	}
	if l, ok := n.(linker); ok {
		d.Mode, d.LinkStatus = l.Link(f.labels)
	}
	return d
}
