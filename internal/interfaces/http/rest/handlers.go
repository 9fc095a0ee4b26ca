package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"usbspeed/internal/application/monitor"
	"usbspeed/internal/domain/topology"
)

// streamBuffer is the per-client event buffer of the change stream.
const streamBuffer = 16

// Handler serves the /api/v1 routes.
type Handler struct {
	monitor Monitor
	logger  *zap.Logger
	now     func() time.Time
}

// SnapshotResponse is the current snapshot: the raw document and its
// flattened devices.
type SnapshotResponse struct {
	TakenAt     *time.Time         `json:"taken_at,omitempty"`
	DeviceCount int                `json:"device_count"`
	Devices     []topology.Device  `json:"devices"`
	Document    *topology.Document `json:"document"`
}

// DevicesResponse lists flattened devices.
type DevicesResponse struct {
	Devices []topology.Device `json:"devices"`
	Count   int               `json:"count"`
}

// ChangesResponse lists retained change events, oldest first.
type ChangesResponse struct {
	Changes []monitor.ChangeEvent `json:"changes"`
	Count   int                   `json:"count"`
}

// GetSnapshot handles GET /api/v1/snapshot.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	current := h.monitor.Current()
	resp := SnapshotResponse{
		DeviceCount: current.Len(),
		Devices:     current.Devices(),
		Document:    current.Document(),
	}
	if at := current.TakenAt(); !at.IsZero() {
		at = at.UTC()
		resp.TakenAt = &at
	}
	if resp.Devices == nil {
		resp.Devices = []topology.Device{}
	}
	Success(w, http.StatusOK, resp)
}

// ListDevices handles GET /api/v1/devices?family=.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	q, err := parseDevicesQuery(r.URL.Query())
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	devices := make([]topology.Device, 0, h.monitor.Current().Len())
	for _, d := range h.monitor.Current().Devices() {
		if q.Family != "" && string(d.Family) != q.Family {
			continue
		}
		devices = append(devices, d)
	}
	Success(w, http.StatusOK, DevicesResponse{Devices: devices, Count: len(devices)})
}

// ListChanges handles GET /api/v1/changes?limit=&kind=. A zero limit
// returns every retained event.
func (h *Handler) ListChanges(w http.ResponseWriter, r *http.Request) {
	q, err := parseChangesQuery(r.URL.Query())
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	events := h.monitor.RecentN(q.Limit)
	changes := make([]monitor.ChangeEvent, 0, len(events))
	for _, ev := range events {
		if q.Kind != "" && string(ev.Kind) != q.Kind {
			continue
		}
		changes = append(changes, ev)
	}
	Success(w, http.StatusOK, ChangesResponse{Changes: changes, Count: len(changes)})
}

// StreamChanges handles GET /api/v1/changes/stream as server-sent
// events. The stream ends when the client goes away or the monitor stops.
func (h *Handler) StreamChanges(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := h.monitor.Subscribe(streamBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("Failed to encode change event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Kind, data)
			flusher.Flush()
		}
	}
}

// RescanResponse acknowledges a manual rescan request.
type RescanResponse struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// Rescan handles POST /api/v1/rescan. The request is fed to the
// coalescer like any hotplug signal, so it is answered before the scan
// runs.
func (h *Handler) Rescan(w http.ResponseWriter, r *http.Request) {
	at := h.now()
	h.monitor.Signal(monitor.Signal{Source: "api", At: at})
	Success(w, http.StatusAccepted, RescanResponse{Status: "scheduled", At: at.UTC()})
}
