package testutils

import (
	"time"
)

const pollInterval = 5 * time.Millisecond

// WithTimeout runs f and panics when it doesn't return in time. The panic
// comes from a separate goroutine, so it also breaks a deadlocked f.
func WithTimeout(timeout time.Duration, f func()) {
	finished := make(chan struct{})
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	go func() {
		select {
		case <-timer.C:
			panic("testutils: function did not return within " + timeout.String())
		case <-finished:
		}
	}()
	f()
	close(finished)
}

// WaitUntil polls cond until it reports true and panics when that doesn't
// happen in time.
func WaitUntil(timeout time.Duration, cond func() bool) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for !cond() {
		if time.Now().After(deadline) {
			panic("testutils: condition not met within " + timeout.String())
		}
		<-ticker.C
	}
}
