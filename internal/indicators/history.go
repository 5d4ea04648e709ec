package indicators

// HistoryCapacity bounds the per-instrument reading window; the oldest reading
// is evicted on overflow.
const HistoryCapacity = 5

// History is a fixed-capacity ordered sequence of indicator readings, oldest
// first. Not safe for concurrent use; the Engine serializes access.
type History struct {
	values []float64
}

// Append adds a reading, evicting the oldest when at capacity.
func (h *History) Append(v float64) {
	h.values = append(h.values, v)
	if len(h.values) > HistoryCapacity {
		h.values = h.values[len(h.values)-HistoryCapacity:]
	}
}

// Values returns a copy of the readings, oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, len(h.values))
	copy(out, h.values)
	return out
}

// Len reports the number of stored readings.
func (h *History) Len() int { return len(h.values) }

// Clear drops all readings.
func (h *History) Clear() { h.values = h.values[:0] }
