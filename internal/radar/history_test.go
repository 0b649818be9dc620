package radar

import (
	"math"
	"testing"

	"github.com/banshee-data/ld2410/internal/protocol"
)

func TestHistoryAverageDistanceSkipsNoTarget(t *testing.T) {
	h := NewHistory(10)

	h.Add(protocol.Reading{TargetState: protocol.StaticTarget, DetectionDistanceCM: 100})
	h.Add(protocol.Reading{TargetState: protocol.NoTarget, DetectionDistanceCM: 9999})
	h.Add(protocol.Reading{TargetState: protocol.MovingTarget, DetectionDistanceCM: 200})

	got := h.AverageDistanceCM(10)
	if math.Abs(got-150) > 1e-9 {
		t.Errorf("AverageDistanceCM = %v, want 150", got)
	}
}

func TestHistoryAverageDistanceEmptyWindow(t *testing.T) {
	h := NewHistory(10)
	if got := h.AverageDistanceCM(5); got != 0 {
		t.Errorf("AverageDistanceCM on empty history = %v, want 0", got)
	}

	h.Add(protocol.Reading{TargetState: protocol.NoTarget})
	if got := h.AverageDistanceCM(5); got != 0 {
		t.Errorf("AverageDistanceCM with only no-target readings = %v, want 0", got)
	}
}

func TestHistoryAverageDistanceWindow(t *testing.T) {
	h := NewHistory(10)
	h.Add(protocol.Reading{TargetState: protocol.StaticTarget, DetectionDistanceCM: 500})
	h.Add(protocol.Reading{TargetState: protocol.StaticTarget, DetectionDistanceCM: 60})
	h.Add(protocol.Reading{TargetState: protocol.StaticTarget, DetectionDistanceCM: 80})

	// Window of two only sees the last two readings.
	if got := h.AverageDistanceCM(2); math.Abs(got-70) > 1e-9 {
		t.Errorf("AverageDistanceCM(2) = %v, want 70", got)
	}
}

func TestHistoryMotionStatus(t *testing.T) {
	h := NewHistory(10)

	moving, static := h.MotionStatus(5)
	if moving || static {
		t.Error("empty history should report no presence")
	}

	h.Add(protocol.Reading{TargetState: protocol.MovingAndStaticTarget})
	moving, static = h.MotionStatus(5)
	if !moving || !static {
		t.Errorf("MotionStatus = %v,%v after both-targets reading", moving, static)
	}

	// Push the both-targets reading out of a window of one.
	h.Add(protocol.Reading{TargetState: protocol.StaticTarget})
	moving, static = h.MotionStatus(1)
	if moving || !static {
		t.Errorf("MotionStatus(1) = %v,%v, want static only", moving, static)
	}
}

func TestHistoryEviction(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(protocol.Reading{TargetState: protocol.MovingTarget, DetectionDistanceCM: uint16(i)})
	}
	if h.Len() != 3 {
		t.Fatalf("Len = %d, want 3", h.Len())
	}
	snap := h.Snapshot()
	if snap[0].DetectionDistanceCM != 2 || snap[2].DetectionDistanceCM != 4 {
		t.Errorf("retained readings = %v", snap)
	}
}
