package timeutil

import (
	"testing"
	"time"
)

func TestMockClockAdvanceFiresTimer(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	timer := c.NewTimer(time.Second)

	c.Advance(500 * time.Millisecond)
	select {
	case <-timer.C():
		t.Fatal("timer fired before its deadline")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case fired := <-timer.C():
		if !fired.Equal(start.Add(time.Second)) {
			t.Errorf("fired at %v, want %v", fired, start.Add(time.Second))
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}

	if c.Since(start) != time.Second {
		t.Errorf("Since = %v, want 1s", c.Since(start))
	}
}

func TestMockTimerStop(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	timer := c.NewTimer(time.Second)

	if !timer.Stop() {
		t.Error("Stop on an active timer should report true")
	}
	c.Advance(2 * time.Second)
	select {
	case <-timer.C():
		t.Error("stopped timer fired")
	default:
	}
	if timer.Stop() {
		t.Error("Stop on a stopped timer should report false")
	}
}
