package monitor

import (
	"sync"
	"time"

	"usbspeed/internal/domain/snapshot"
	"usbspeed/internal/domain/topology"
)

// ChangeEvent is one reported change, as published to subscribers.
type ChangeEvent struct {
	ID      string            `json:"id"`
	Kind    snapshot.Kind     `json:"kind"`
	Devices []topology.Device `json:"devices"`
	// Removed lists devices that disappeared in the same cycle as an
	// addition and were left out of Message.
	Removed []topology.Device `json:"removed,omitempty"`
	Message string            `json:"message"`
	At      time.Time         `json:"at"`
}

// feed keeps the most recent events and fans them out to subscribers.
// Publishing never blocks: a subscriber whose buffer is full misses the
// event.
type feed struct {
	mu     sync.Mutex
	size   int
	events []ChangeEvent
	subs   map[int]chan ChangeEvent
	nextID int
}

func newFeed(size int) *feed {
	if size <= 0 {
		size = 50
	}
	return &feed{
		size: size,
		subs: make(map[int]chan ChangeEvent),
	}
}

// publish returns the number of subscribers that missed the event.
func (f *feed) publish(ev ChangeEvent) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, ev)
	if len(f.events) > f.size {
		f.events = append([]ChangeEvent(nil), f.events[len(f.events)-f.size:]...)
	}

	dropped := 0
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

func (f *feed) subscribe(buf int) (<-chan ChangeEvent, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan ChangeEvent, buf)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// recent returns up to limit events, newest last. A non-positive limit
// returns everything retained.
func (f *feed) recent(limit int) []ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	events := f.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return append([]ChangeEvent(nil), events...)
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
