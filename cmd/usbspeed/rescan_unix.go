//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyRescan calls rescan on every SIGUSR1 until the returned function
// is called.
func notifyRescan(rescan func()) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ch:
				rescan()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
