package profile

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"CONSERVATIVE", Conservative},
		{"conservative", Conservative},
		{"AGGRESSIVE", Aggressive},
		{"BALANCED", Balanced},
		{"", Balanced},
		{"nonsense", Balanced},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Fatalf("ParseMode(%q)=%q, expected %q", tt.in, got, tt.want)
		}
	}
}

func TestProfileSelectivityOrdering(t *testing.T) {
	c := For(Conservative)
	b := For(Balanced)
	a := For(Aggressive)

	if c.AllowRebounds {
		t.Fatal("conservative must reject every rebound")
	}
	if !(a.MinStrength < b.MinStrength) {
		t.Fatalf("aggressive strength floor %v not below balanced %v", a.MinStrength, b.MinStrength)
	}
	if !(c.MaxCandlesForCross < b.MaxCandlesForCross && b.MaxCandlesForCross < a.MaxCandlesForCross) {
		t.Fatal("cross windows not ordered by aggressiveness")
	}
}

func TestCatalogGroups(t *testing.T) {
	c := DefaultCatalog()

	if g := c.GroupFor("BTCUSD"); g != GroupCrypto {
		t.Fatalf("GroupFor(BTCUSD)=%q, expected CRYPTO", g)
	}
	if g := c.GroupFor("NVDA/AMD"); g != GroupPair {
		t.Fatalf("GroupFor(NVDA/AMD)=%q, expected PAIR", g)
	}
	if g := c.GroupFor("SOMETHING"); g != GroupDefault {
		t.Fatalf("GroupFor unknown=%q, expected DEFAULT", g)
	}

	if p := c.ProfileFor("BTCUSD"); p.PositionPercent != 0.02 {
		t.Fatalf("crypto position percent=%v, expected 0.02", p.PositionPercent)
	}
	if lv := c.LevelsFor("NVDA/AMD"); lv.Oversold != 32 || lv.Overbought != 68 {
		t.Fatalf("pair levels=%+v, expected 32/68", lv)
	}
}

func TestCatalogFilter(t *testing.T) {
	c := DefaultCatalog()

	all := c.Filter(nil)
	if len(all) != len(c.Instruments()) {
		t.Fatalf("empty selection kept %d of %d", len(all), len(c.Instruments()))
	}

	got := c.Filter([]string{"BTCUSD", "UNKNOWN", "NVDA/AMD"})
	if len(got) != 2 || got[0] != "BTCUSD" || got[1] != "NVDA/AMD" {
		t.Fatalf("Filter=%v, expected unknown symbol dropped", got)
	}
}

func TestExpiryMinutes(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name   string
		symbol string
		mode   Mode
		want   int
	}{
		{"crypto one less", "BTCUSD", Aggressive, 4},
		{"crypto floored at two", "BTCUSD", Balanced, 2},
		{"non-crypto unchanged", "NVDA/AMD", Aggressive, 5},
		{"non-crypto balanced", "NVDA/AMD", Balanced, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ExpiryMinutesFor(tt.symbol, For(tt.mode)); got != tt.want {
				t.Fatalf("ExpiryMinutesFor=%d, expected %d", got, tt.want)
			}
		})
	}
}

func TestFixedMapping(t *testing.T) {
	c := DefaultCatalog()
	name, ok := c.FixedMapping("US500")
	if !ok || name != "SP500" {
		t.Fatalf("FixedMapping(US500)=(%q, %v), expected (SP500, true)", name, ok)
	}
	if _, ok := c.FixedMapping("BTCUSD"); ok {
		t.Fatal("unexpected fixed mapping for BTCUSD")
	}
}
