package monitor

import (
	"bytes"
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"usbspeed/internal/domain/snapshot"
	"usbspeed/internal/domain/topology"
	"usbspeed/internal/errors"
)

// DefaultQueryTimeout bounds a single topology query.
const DefaultQueryTimeout = 30 * time.Second

// EngineParams holds the collaborators and settings of an Engine.
type EngineParams struct {
	Source    TopologySource
	Notifier  Notifier
	Flattener *topology.Flattener
	Formatter *snapshot.Formatter
	Store     *Store
	Recorder  Recorder
	Tracer    trace.Tracer
	Logger    *zap.Logger

	Debounce        time.Duration
	QueryTimeout    time.Duration
	FeedSize        int
	NotifyUnchanged bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// RunResult describes one completed pipeline run.
type RunResult struct {
	Change   snapshot.Change
	Delta    snapshot.Delta
	Message  string
	Snapshot *snapshot.Snapshot
	Notified bool
}

// Engine owns the snapshot store and serializes every pipeline run.
type Engine struct {
	source    TopologySource
	notifier  Notifier
	flattener *topology.Flattener
	formatter *snapshot.Formatter
	store     *Store
	recorder  Recorder
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time

	queryTimeout    time.Duration
	notifyUnchanged bool

	coalescer *Coalescer
	trigger   chan struct{}
	feed      *feed

	// runMu keeps runs from interleaving their read and write of the store.
	runMu sync.Mutex
}

// NewEngine creates an engine. Source is required; every other
// collaborator has a working default.
func NewEngine(p EngineParams) *Engine {
	if p.Flattener == nil {
		p.Flattener = topology.NewFlattener(nil)
	}
	if p.Formatter == nil {
		p.Formatter = snapshot.NewFormatter(p.Flattener.Labels())
	}
	if p.Store == nil {
		p.Store = NewStore()
	}
	if p.Recorder == nil {
		p.Recorder = nopRecorder{}
	}
	if p.Tracer == nil {
		p.Tracer = otel.Tracer("usbspeed/monitor")
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.QueryTimeout <= 0 {
		p.QueryTimeout = DefaultQueryTimeout
	}

	e := &Engine{
		source:          p.Source,
		notifier:        p.Notifier,
		flattener:       p.Flattener,
		formatter:       p.Formatter,
		store:           p.Store,
		recorder:        p.Recorder,
		tracer:          p.Tracer,
		logger:          p.Logger.Named("monitor"),
		now:             p.Now,
		queryTimeout:    p.QueryTimeout,
		notifyUnchanged: p.NotifyUnchanged,
		trigger:         make(chan struct{}, 1),
		feed:            newFeed(p.FeedSize),
	}
	e.coalescer = NewCoalescer(p.Debounce, e.Trigger)
	return e
}

// ============================================================================
// EVENT LOOP
// ============================================================================

// Run consumes signals until ctx is cancelled. Signals only touch the
// coalescer; pipeline runs happen on a separate worker goroutine so a slow
// query never holds up signal delivery. A closed signals channel is not an
// error: manual signals and triggers keep working until ctx ends.
func (e *Engine) Run(ctx context.Context, signals <-chan Signal) error {
	defer e.feed.close()
	defer e.coalescer.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.work(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case sig, ok := <-signals:
			if !ok {
				signals = nil
				continue
			}
			e.Signal(sig)
		}
	}
}

// Signal feeds one raw signal to the coalescer.
func (e *Engine) Signal(sig Signal) {
	e.recorder.RecordSignal(sig.Source)
	e.logger.Debug("Hotplug signal",
		zap.String("source", sig.Source),
		zap.Int("pending", e.coalescer.Pending()+1),
	)
	e.coalescer.Signal()
}

// Trigger requests a run without waiting for the quiescence window. A
// trigger that arrives while one is already queued is merged into it.
func (e *Engine) Trigger() {
	e.recorder.RecordTrigger()
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

func (e *Engine) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.trigger:
			// Failures are logged by RunOnce; the loop stays ready.
			_, _ = e.RunOnce(ctx)
		}
	}
}

// ============================================================================
// PIPELINE
// ============================================================================

// Prime loads the initial snapshot without diffing or notifying. On failure
// the store keeps its current value.
func (e *Engine) Prime(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	ctx, span := e.tracer.Start(ctx, "monitor.Prime")
	defer span.End()

	next, err := e.scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("Initial scan failed",
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Error(err),
		)
		return err
	}

	e.store.Swap(next)
	e.recorder.RecordDevices(next.Len())
	e.logger.Info("Initial scan complete", zap.Int("devices", next.Len()))
	return nil
}

// RunOnce performs one query, parse, flatten, diff, format and notify
// cycle. On success the store is replaced even when nothing changed. On
// failure the store is untouched and the error is returned.
func (e *Engine) RunOnce(ctx context.Context) (RunResult, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	start := e.now()
	ctx, span := e.tracer.Start(ctx, "monitor.RunOnce")
	defer span.End()

	next, err := e.scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.recorder.RecordRun(outcomeOf(err), e.now().Sub(start))
		e.logger.Warn("Scan abandoned",
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Error(err),
		)
		return RunResult{}, err
	}

	previous := e.store.Current()
	delta := snapshot.Compare(previous.Devices(), next.Devices())
	change := delta.Change()
	message := e.formatter.Format(change)

	e.logger.Debug("Compared device lists",
		zap.Strings("previous", lines(previous.Devices())),
		zap.Strings("current", lines(next.Devices())),
	)
	span.SetAttributes(
		attribute.String("change.kind", string(change.Kind)),
		attribute.Int("change.devices", len(change.Devices)),
		attribute.Int("snapshot.devices", next.Len()),
	)

	result := RunResult{
		Change:   change,
		Delta:    delta,
		Message:  message,
		Snapshot: next,
	}

	if change.Kind != snapshot.KindUnchanged || e.notifyUnchanged {
		result.Notified = e.deliver(ctx, message)
	}

	e.store.Swap(next)

	if change.Kind != snapshot.KindUnchanged {
		e.logger.Info("Device change detected",
			zap.String("kind", string(change.Kind)),
			zap.Int("devices", len(change.Devices)),
			zap.Bool("swap", delta.IsSwap()),
		)
		ev := ChangeEvent{
			ID:      uuid.NewString(),
			Kind:    change.Kind,
			Devices: change.Devices,
			Message: message,
			At:      next.TakenAt(),
		}
		if delta.IsSwap() {
			ev.Removed = delta.Removed
		}
		if dropped := e.feed.publish(ev); dropped > 0 {
			e.logger.Debug("Slow subscribers missed a change event", zap.Int("dropped", dropped))
		}
	}

	e.recorder.RecordChange(string(change.Kind), len(change.Devices))
	e.recorder.RecordDevices(next.Len())
	e.recorder.RecordRun(OutcomeSuccess, e.now().Sub(start))
	return result, nil
}

// scan queries the source and builds a snapshot from its document.
func (e *Engine) scan(ctx context.Context) (*snapshot.Snapshot, error) {
	if e.source == nil {
		return nil, errors.NewQuerySource("no topology source configured", nil)
	}

	data, err := e.query(ctx)
	if err != nil {
		return nil, err
	}

	_, span := e.tracer.Start(ctx, "topology.Parse")
	doc, err := topology.Parse(data)
	span.End()
	if err != nil {
		return nil, err
	}

	_, span = e.tracer.Start(ctx, "topology.Flatten")
	devices, err := e.flattener.Flatten(doc)
	span.End()
	if err != nil {
		return nil, err
	}

	return snapshot.New(doc, devices, e.now()), nil
}

func (e *Engine) query(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "topology.Query")
	defer span.End()

	data, err := e.source.Query(ctx)
	if err != nil {
		span.RecordError(err)
		if errors.IsQuerySource(err) {
			return nil, err
		}
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewQuerySource("topology query timed out", err)
		}
		return nil, errors.NewQuerySource("topology query failed", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewQuerySource("topology source returned no data", nil)
	}
	span.SetAttributes(attribute.Int("document.bytes", len(data)))
	return data, nil
}

// deliver hands the message to the notifier. Failures are logged and
// reported as false.
func (e *Engine) deliver(ctx context.Context, message string) bool {
	if e.notifier == nil {
		return false
	}

	ctx, span := e.tracer.Start(ctx, "notify.Deliver")
	defer span.End()

	if err := e.notifier.Notify(ctx, e.formatter.Title(), message); err != nil {
		span.RecordError(err)
		e.recorder.RecordDelivery("failed")
		e.logger.Warn("Notification delivery failed",
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Error(err),
		)
		return false
	}
	e.recorder.RecordDelivery("delivered")
	return true
}

// ============================================================================
// PRESENTATION
// ============================================================================

// Current returns the latest successful snapshot.
func (e *Engine) Current() *snapshot.Snapshot {
	return e.store.Current()
}

// Subscribe returns a channel of change events and a function that ends
// the subscription. Events are dropped for a subscriber whose buffer is
// full. The channel is closed when the subscription ends or Run returns.
func (e *Engine) Subscribe(buf int) (<-chan ChangeEvent, func()) {
	return e.feed.subscribe(buf)
}

// Recent returns the retained change events, oldest first.
func (e *Engine) Recent() []ChangeEvent {
	return e.feed.recent(0)
}

// RecentN returns at most n of the newest retained change events.
func (e *Engine) RecentN(n int) []ChangeEvent {
	return e.feed.recent(n)
}

func outcomeOf(err error) string {
	switch {
	case errors.IsQuerySource(err):
		return OutcomeQuery
	case errors.IsMalformedTopology(err):
		return OutcomeMalformed
	default:
		return OutcomeFailed
	}
}

func lines(devices []topology.Device) []string {
	out := make([]string, len(devices))
	for i, d := range devices {
		out[i] = d.Line()
	}
	return out
}
