// Package signal decides whether an indicator history contains a fresh,
// strong-enough directional signal.
package signal

import (
	"fmt"

	"options-core/internal/profile"
)

// Direction is the detected contract side.
type Direction string

const (
	None Direction = ""
	Call Direction = "call"
	Put  Direction = "put"
)

// Evaluation is the detector's verdict, with the reason a candidate was
// rejected for logging.
type Evaluation struct {
	Direction Direction
	Strength  float64
	Reason    string
}

// Evaluate inspects an ordered history (oldest first, current reading last)
// against the instrument's thresholds and the active aggressiveness profile.
// Tests run cheapest first and the first failure short-circuits.
func Evaluate(history []float64, levels profile.Levels, minMomentum float64, prof profile.Aggressiveness) Evaluation {
	if len(history) < 3 {
		return Evaluation{Reason: "insufficient history"}
	}
	current := history[len(history)-1]

	var dir Direction
	switch {
	case current <= levels.Oversold:
		dir = Put
	case current >= levels.Overbought:
		dir = Call
	default:
		return Evaluation{Reason: "no extreme reading"}
	}

	threshold := levels.Oversold
	if dir == Call {
		threshold = levels.Overbought
	}

	if !freshCross(history, threshold, dir, prof.MaxCandlesForCross) {
		return Evaluation{Reason: "no fresh cross, signal is stale"}
	}

	rebounds, worst := countRebounds(history, dir)
	if !prof.AllowRebounds && rebounds > 0 {
		return Evaluation{Reason: fmt.Sprintf("%d rebound(s) in trend", rebounds)}
	}
	if prof.AllowRebounds {
		if rebounds > prof.MaxRebounds {
			return Evaluation{Reason: fmt.Sprintf("too many rebounds (%d > %d)", rebounds, prof.MaxRebounds)}
		}
		if worst > prof.ReboundTolerance {
			return Evaluation{Reason: fmt.Sprintf("rebound of %.1f points exceeds tolerance", worst)}
		}
	}

	movement := history[0] - current
	if dir == Call {
		movement = current - history[0]
	}
	if movement < minMomentum {
		return Evaluation{Reason: fmt.Sprintf("movement %.1f below minimum %.1f", movement, minMomentum)}
	}

	strength := Strength(history, dir, threshold)
	if strength < prof.MinStrength {
		return Evaluation{Reason: fmt.Sprintf("strength %.0f below minimum %.0f", strength, prof.MinStrength)}
	}

	return Evaluation{Direction: dir, Strength: strength}
}

// freshCross reports whether the indicator crossed the threshold inward within
// the last maxCross transitions plus the transition into the current reading.
// A reading that has rested beyond the threshold longer than that is stale.
func freshCross(history []float64, threshold float64, dir Direction, maxCross int) bool {
	transitions := len(history) - 1
	window := maxCross + 1
	if window > transitions {
		window = transitions
	}
	for i := transitions - window; i < transitions; i++ {
		prev, next := history[i], history[i+1]
		if dir == Put && prev > threshold && next <= threshold {
			return true
		}
		if dir == Call && prev < threshold && next >= threshold {
			return true
		}
	}
	return false
}

// countRebounds walks the ordered history counting moves opposite to the
// expected direction, returning the count and the largest single rebound.
// A flat step counts as a rebound of zero magnitude.
func countRebounds(history []float64, dir Direction) (count int, worst float64) {
	for i := 0; i < len(history)-1; i++ {
		step := history[i+1] - history[i]
		if dir == Call {
			step = -step
		}
		// For the expected direction step is negative here.
		if step >= 0 {
			count++
			if step > worst {
				worst = step
			}
		}
	}
	return count, worst
}
