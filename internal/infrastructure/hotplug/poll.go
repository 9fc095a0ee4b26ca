package hotplug

import (
	"context"
	"time"

	"usbspeed/internal/application/monitor"
)

// Poll emits a signal every interval until ctx is cancelled. It stands in
// for a device event source on hosts without a watchable device tree.
func Poll(ctx context.Context, interval time.Duration) <-chan monitor.Signal {
	out := make(chan monitor.Signal)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case at := <-ticker.C:
				select {
				case out <- monitor.Signal{Source: "poll", At: at}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Merge forwards signals from every source into one channel, which is
// closed once all sources are closed.
func Merge(ctx context.Context, sources ...<-chan monitor.Signal) <-chan monitor.Signal {
	out := make(chan monitor.Signal)
	done := make(chan struct{})

	for _, src := range sources {
		go func(src <-chan monitor.Signal) {
			defer func() { done <- struct{}{} }()
			for sig := range src {
				select {
				case out <- sig:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}

	go func() {
		for range sources {
			<-done
		}
		close(out)
	}()
	return out
}
