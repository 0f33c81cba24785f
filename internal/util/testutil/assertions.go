// Package testutil holds polling assertions shared by tests that wait on
// goroutines, timers and network peers.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// WaitFor bounds every Eventually helper.
	WaitFor = 10 * time.Second
	// Tick is the polling interval.
	Tick = 10 * time.Millisecond
)

// AssertEventually polls condition until it holds or WaitFor elapses.
func AssertEventually(t testing.TB, condition func() bool, msgAndArgs ...any) bool {
	t.Helper()
	return assert.Eventually(t, condition, WaitFor, Tick, msgAndArgs...)
}

// RequireEventually is AssertEventually that stops the test on timeout.
func RequireEventually(t testing.TB, condition func() bool, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, condition, WaitFor, Tick, msgAndArgs...)
}

// RequireValue polls get until it returns want and reports the last value
// seen on timeout.
func RequireValue[T comparable](t testing.TB, get func() T, want T) {
	t.Helper()
	var last T
	ok := assert.Eventually(t, func() bool {
		last = get()
		return last == want
	}, WaitFor, Tick)
	if !ok {
		require.FailNowf(t, "value not reached", "want %v, last %v", want, last)
	}
}
