package credibility

import (
	"testing"
	"time"
)

type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t testing.TB, clock *testClock) *Engine {
	t.Helper()
	e, err := NewEngine(WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func stateWithScore(score int) *State {
	st := NewState()
	st.Score = score
	return st
}

const day = 24 * time.Hour
