package home

import "github.com/wmarritt/hems/tables"

// History is a dense ring buffer of appliance-start (or fridge
// compressor) indicators, sized to the catalog's widest Slots value.
// Only that many past steps are ever consulted by the locked-in-power
// calculation, so nothing older needs to be retained.
type History struct {
	size  int
	step  []int // absolute step recorded at each ring slot; -1 means empty
	value []map[tables.ApplianceID]float64
}

// NewHistory allocates a ring buffer that can answer "was appliance a
// started at step t" for any t within size steps of the most recent
// Record call.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	h := &History{
		size:  size,
		step:  make([]int, size),
		value: make([]map[tables.ApplianceID]float64, size),
	}
	for i := range h.step {
		h.step[i] = -1
	}
	return h
}

func (h *History) slot(step int) int {
	s := step % h.size
	if s < 0 {
		s += h.size
	}
	return s
}

// Record logs that appliance id fired at absoluteStep with the given
// indicator value (1.0 for a started appliance, or the fridge
// compressor's fractional power).
func (h *History) Record(absoluteStep int, id tables.ApplianceID, value float64) {
	s := h.slot(absoluteStep)
	if h.step[s] != absoluteStep {
		h.step[s] = absoluteStep
		h.value[s] = make(map[tables.ApplianceID]float64)
	}
	h.value[s][id] = value
}

// Get returns the indicator recorded for appliance id at absoluteStep,
// or (0, false) if nothing was recorded there (either never set, or
// the ring has since wrapped past it).
func (h *History) Get(absoluteStep int, id tables.ApplianceID) (float64, bool) {
	s := h.slot(absoluteStep)
	if h.step[s] != absoluteStep {
		return 0, false
	}
	v, ok := h.value[s][id]
	return v, ok
}

// CountInWindow counts how many of the last windowSteps absolute steps
// (ending at, and including, step) recorded a start for appliance id.
// Used to check the at-most-one-daily-start invariant in tests.
func (h *History) CountInWindow(step, windowSteps int, id tables.ApplianceID) int {
	count := 0
	for s := step - windowSteps + 1; s <= step; s++ {
		if v, ok := h.Get(s, id); ok && v >= 0.5 {
			count++
		}
	}
	return count
}
