package testutil

import (
	"testing"
	"time"
)

// Eventually polls cond until it holds or timeout passes. Used where a bus
// subscriber or background goroutine settles asynchronously.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
