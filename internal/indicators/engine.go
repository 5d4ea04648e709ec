package indicators

import (
	"log"
	"sync"
)

// Engine maintains per-instrument indicator histories. It is the only owner of
// that state; other components read through its methods.
type Engine struct {
	mu        sync.Mutex
	period    int
	histories map[string]*History
}

// NewEngine builds an engine computing RSI with the given period.
func NewEngine(period int) *Engine {
	return &Engine{
		period:    period,
		histories: make(map[string]*History),
	}
}

// Period returns the configured RSI period.
func (e *Engine) Period() int { return e.period }

// Append records a fresh reading for an instrument. When every stored reading
// plus the new one sits beyond a threshold, the history is cleared first: a
// value resting in an extreme zone for the whole window is a stale signal and
// must rebuild context before it can fire again.
func (e *Engine) Append(instrument string, value, oversold, overbought float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.histories[instrument]
	if h == nil {
		h = &History{}
		e.histories[instrument] = h
	}

	if h.Len() >= 3 {
		allOversold := true
		allOverbought := true
		for _, v := range h.values {
			if v > oversold {
				allOversold = false
			}
			if v < overbought {
				allOverbought = false
			}
		}
		if (allOversold && value <= oversold) || (allOverbought && value >= overbought) {
			log.Printf("indicators: %s resting in extreme zone, clearing history", instrument)
			h.Clear()
		}
	}

	h.Append(value)
}

// Values returns a copy of an instrument's history, oldest first.
func (e *Engine) Values(instrument string) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h := e.histories[instrument]; h != nil {
		return h.Values()
	}
	return nil
}

// Len reports the history length for an instrument.
func (e *Engine) Len(instrument string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h := e.histories[instrument]; h != nil {
		return h.Len()
	}
	return 0
}

// Clear drops an instrument's history. Called after a signal is acted upon so
// the next signal must build fresh context.
func (e *Engine) Clear(instrument string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h := e.histories[instrument]; h != nil {
		h.Clear()
	}
}

// Snapshot exports all non-empty histories for persistence.
func (e *Engine) Snapshot() map[string][]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][]float64, len(e.histories))
	for instrument, h := range e.histories {
		if h.Len() > 0 {
			out[instrument] = h.Values()
		}
	}
	return out
}

// Restore seeds histories from a persisted snapshot.
func (e *Engine) Restore(histories map[string][]float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for instrument, readings := range histories {
		h := &History{}
		for _, v := range readings {
			h.Append(v)
		}
		e.histories[instrument] = h
	}
}
