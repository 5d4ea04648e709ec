package indicators

import "options-core/pkg/broker"

// RSI computes a basic Relative Strength Index with smoothing disabled for simplicity.
func RSI(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period+1 {
		return 0, false
	}

	gain := 0.0
	loss := 0.0
	for i := len(values) - period; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}

	if loss == 0 {
		return 100, true
	}
	rs := gain / loss
	return 100 - (100 / (1 + rs)), true
}

// RSIFromCandles computes RSI over the close prices of a candle series.
func RSIFromCandles(candles []broker.Candle, period int) (float64, bool) {
	if len(candles) < period+1 {
		return 0, false
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return RSI(closes, period)
}
