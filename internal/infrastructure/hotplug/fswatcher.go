// Package hotplug turns host device events into monitor signals.
package hotplug

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"usbspeed/internal/application/monitor"
)

// DefaultPaths are the device directories watched on Linux hosts.
var DefaultPaths = []string{
	"/dev/bus/usb",
	"/sys/bus/usb/devices",
	"/sys/bus/thunderbolt/devices",
}

// FSWatcher emits a signal whenever an entry appears in or disappears from
// a watched device directory. Direct subdirectories are watched too, so
// per-bus directories such as /dev/bus/usb/001 are covered.
type FSWatcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu      sync.Mutex
	watched []string
}

// NewFSWatcher watches every path that exists. Missing paths are skipped;
// it is an error if none can be watched.
func NewFSWatcher(paths []string, logger *zap.Logger) (*FSWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &FSWatcher{
		watcher: fsWatcher,
		logger:  logger.Named("hotplug"),
	}
	for _, path := range paths {
		w.addTree(path)
	}

	watched := w.Watched()
	if len(watched) == 0 {
		fsWatcher.Close()
		return nil, fmt.Errorf("none of the device paths %v can be watched", paths)
	}

	w.logger.Info("Watching device directories", zap.Strings("paths", watched))
	return w, nil
}

// Watched returns the directories being watched.
func (w *FSWatcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.watched...)
}

// addTree watches path and its direct subdirectories.
func (w *FSWatcher) addTree(path string) {
	if !w.add(path) {
		return
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			w.add(filepath.Join(path, e.Name()))
		}
	}
}

func (w *FSWatcher) add(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		w.logger.Debug("Skipping device path", zap.String("path", path), zap.Error(err))
		return false
	}
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("Failed to watch device path",
			zap.String("path", path),
			zap.Error(err),
		)
		return false
	}
	w.mu.Lock()
	w.watched = append(w.watched, path)
	w.mu.Unlock()
	return true
}

// Watch starts delivering signals. The channel is closed and the watcher
// released when ctx is cancelled.
func (w *FSWatcher) Watch(ctx context.Context) <-chan monitor.Signal {
	out := make(chan monitor.Signal, 16)
	go w.loop(ctx, out)
	return out
}

func (w *FSWatcher) loop(ctx context.Context, out chan<- monitor.Signal) {
	defer close(out)
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 && isDir(event.Name) {
				w.add(event.Name)
			}

			w.logger.Debug("Device node event",
				zap.String("path", event.Name),
				zap.String("operation", event.Op.String()),
			)
			select {
			case out <- monitor.Signal{Source: "fsnotify", At: time.Now()}:
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
