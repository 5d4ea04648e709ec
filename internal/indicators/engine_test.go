package indicators

import (
	"math"
	"testing"
)

func TestRSI(t *testing.T) {
	t.Run("needs period plus one values", func(t *testing.T) {
		if _, ok := RSI([]float64{1, 2, 3}, 3); ok {
			t.Fatal("computed RSI without enough values")
		}
	})

	t.Run("pure gains saturate at 100", func(t *testing.T) {
		got, ok := RSI([]float64{1, 2, 3, 4, 5}, 4)
		if !ok || got != 100 {
			t.Fatalf("RSI=(%v, %v), expected (100, true)", got, ok)
		}
	})

	t.Run("mixed window", func(t *testing.T) {
		// Gains 2, losses 1 over the window: RS=2, RSI=66.67.
		got, ok := RSI([]float64{1, 2, 3, 2}, 3)
		if !ok {
			t.Fatal("RSI not computed")
		}
		if math.Abs(got-66.6666) > 0.01 {
			t.Fatalf("RSI=%v, expected ~66.67", got)
		}
	})
}

func TestHistoryCapacity(t *testing.T) {
	var h History
	for i := 1; i <= HistoryCapacity+1; i++ {
		h.Append(float64(i))
	}
	values := h.Values()
	if len(values) != HistoryCapacity {
		t.Fatalf("len=%d, expected %d", len(values), HistoryCapacity)
	}
	if values[0] != 2 || values[len(values)-1] != HistoryCapacity+1 {
		t.Fatalf("values=%v, expected oldest reading evicted", values)
	}
}

func TestEngineClearsStaleExtremeZone(t *testing.T) {
	e := NewEngine(14)

	// Three readings resting below the oversold threshold, then another one:
	// the history must rebuild before it can signal again.
	for _, v := range []float64{33, 32, 31} {
		e.Append("BTCUSD", v, 35, 65)
	}
	if e.Len("BTCUSD") != 3 {
		t.Fatalf("Len=%d, expected 3", e.Len("BTCUSD"))
	}
	e.Append("BTCUSD", 30, 35, 65)
	if e.Len("BTCUSD") != 1 {
		t.Fatalf("Len=%d after stale-zone clear, expected 1", e.Len("BTCUSD"))
	}

	// A reading back inside the band does not clear.
	e2 := NewEngine(14)
	for _, v := range []float64{33, 32, 31, 40} {
		e2.Append("ETHUSD", v, 35, 65)
	}
	if e2.Len("ETHUSD") != 4 {
		t.Fatalf("Len=%d, expected 4", e2.Len("ETHUSD"))
	}
}

func TestEngineSnapshotRestore(t *testing.T) {
	e := NewEngine(14)
	e.Append("BTCUSD", 40, 35, 65)
	e.Append("BTCUSD", 38, 35, 65)

	snap := e.Snapshot()

	restored := NewEngine(14)
	restored.Restore(snap)
	got := restored.Values("BTCUSD")
	if len(got) != 2 || got[0] != 40 || got[1] != 38 {
		t.Fatalf("restored values=%v, expected [40 38]", got)
	}
}
