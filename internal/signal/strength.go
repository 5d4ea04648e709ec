package signal

import "math"

// Strength scores a candidate signal 0-100: 40% from how far past the
// threshold the current reading sits, 30% from the largest single-step move,
// 30% from trend cleanliness.
func Strength(history []float64, dir Direction, threshold float64) float64 {
	current := history[len(history)-1]

	var distance float64
	if dir == Put {
		distance = threshold - current
	} else {
		distance = current - threshold
	}
	score := math.Min(40, distance*4)

	score += math.Min(30, largestStep(history)*3)

	score += Cleanliness(history, dir) * 30
	return score
}

// Cleanliness is 1 minus the rebound ratio over all transitions: 1 is a
// perfectly monotonic trend, 0 is pure chop.
func Cleanliness(history []float64, dir Direction) float64 {
	transitions := len(history) - 1
	if transitions <= 0 {
		return 0
	}
	rebounds, _ := countRebounds(history, dir)
	return 1 - float64(rebounds)/float64(transitions)
}

func largestStep(history []float64) float64 {
	var max float64
	for i := 0; i < len(history)-1; i++ {
		if step := math.Abs(history[i+1] - history[i]); step > max {
			max = step
		}
	}
	return max
}
