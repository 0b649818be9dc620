package radar

import (
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ld2410/internal/protocol"
)

// DefaultHistorySize matches the module's ~10Hz report rate to roughly a
// hundred seconds of lookback.
const DefaultHistorySize = 1000

// History is a bounded buffer of recent readings used for smoothing and
// presence classification over a window, independent of any subscriber.
type History struct {
	mu       sync.Mutex
	max      int
	readings []protocol.Reading
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max}
}

// Add appends a reading, evicting the oldest when full.
func (h *History) Add(r protocol.Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readings = append(h.readings, r)
	if len(h.readings) > h.max {
		h.readings = append(h.readings[:0], h.readings[len(h.readings)-h.max:]...)
	}
}

// Len returns the number of retained readings.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.readings)
}

// Snapshot returns a copy of the retained readings, oldest first.
func (h *History) Snapshot() []protocol.Reading {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]protocol.Reading(nil), h.readings...)
}

// AverageDistanceCM returns the mean detection distance over the last window
// readings that actually saw a target. Returns 0 when no such reading is in
// the window.
func (h *History) AverageDistanceCM(window int) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := len(h.readings) - window
	if start < 0 {
		start = 0
	}
	var distances []float64
	for _, r := range h.readings[start:] {
		if r.TargetState == protocol.NoTarget {
			// Detection distance is undefined without a target.
			continue
		}
		distances = append(distances, float64(r.DetectionDistanceCM))
	}
	if len(distances) == 0 {
		return 0
	}
	return stat.Mean(distances, nil)
}

// MotionStatus reports whether any reading in the last window saw a moving
// target and whether any saw a static one.
func (h *History) MotionStatus(window int) (moving, static bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := len(h.readings) - window
	if start < 0 {
		start = 0
	}
	for _, r := range h.readings[start:] {
		switch r.TargetState {
		case protocol.MovingTarget:
			moving = true
		case protocol.StaticTarget:
			static = true
		case protocol.MovingAndStaticTarget:
			moving = true
			static = true
		}
	}
	return moving, static
}
