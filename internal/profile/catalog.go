package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the tradable universe: group membership, per-group parameters and
// fixed brokerage-side name mappings. Read-mostly after startup.
type Catalog struct {
	groups        map[AssetGroup]GroupProfile
	membership    map[string]AssetGroup
	instruments   []string
	fixedMappings map[string]string
}

// catalogFile is the optional YAML override layout.
type catalogFile struct {
	Groups map[string]struct {
		Oversold        float64 `yaml:"oversold"`
		Overbought      float64 `yaml:"overbought"`
		MinMomentum     float64 `yaml:"min_momentum"`
		PositionPercent float64 `yaml:"position_percent"`
	} `yaml:"groups"`
	Instruments map[string]string `yaml:"instruments"` // symbol -> group
	Mappings    map[string]string `yaml:"mappings"`    // symbol -> fixed brokerage name
}

// DefaultCatalog returns the built-in universe: crypto majors and comparative
// stock pairs, with per-group thresholds.
func DefaultCatalog() *Catalog {
	c := &Catalog{
		groups: map[AssetGroup]GroupProfile{
			GroupForex:     {Levels: Levels{35, 65}, MinMomentum: 5, PositionPercent: 0.05},
			GroupIndex:     {Levels: Levels{35, 65}, MinMomentum: 5, PositionPercent: 0.05},
			GroupStock:     {Levels: Levels{30, 70}, MinMomentum: 7, PositionPercent: 0.05},
			GroupCommodity: {Levels: Levels{33, 67}, MinMomentum: 5, PositionPercent: 0.05},
			GroupCrypto:    {Levels: Levels{35, 65}, MinMomentum: 5, PositionPercent: 0.02},
			GroupPair:      {Levels: Levels{32, 68}, MinMomentum: 4, PositionPercent: 0.05},
			GroupDefault:   {Levels: Levels{35, 65}, MinMomentum: 5, PositionPercent: 0.05},
		},
		membership:    make(map[string]AssetGroup),
		fixedMappings: map[string]string{"US500": "SP500"},
	}

	crypto := []string{"BTCUSD", "ETHUSD", "MATICUSD", "NEARUSD", "ATOMUSD", "DOTUSD", "ARBUSD", "LINKUSD"}
	pairs := []string{
		"NVDA/AMD", "TESLA/FORD", "META/GOOGLE", "AMZN/ALIBABA", "MSFT/AAPL",
		"AMZN/EBAY", "NFLX/AMZN", "GOOGLE/MSFT", "INTEL/IBM",
	}
	for _, s := range crypto {
		c.add(s, GroupCrypto)
	}
	for _, s := range pairs {
		c.add(s, GroupPair)
	}
	return c
}

// LoadCatalog applies a YAML override file on top of the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for name, g := range file.Groups {
		group := AssetGroup(name)
		gp := c.groups[group]
		if g.Oversold != 0 {
			gp.Levels.Oversold = g.Oversold
		}
		if g.Overbought != 0 {
			gp.Levels.Overbought = g.Overbought
		}
		if g.MinMomentum != 0 {
			gp.MinMomentum = g.MinMomentum
		}
		if g.PositionPercent != 0 {
			gp.PositionPercent = g.PositionPercent
		}
		c.groups[group] = gp
	}
	if len(file.Instruments) > 0 {
		c.membership = make(map[string]AssetGroup)
		c.instruments = nil
		for sym, group := range file.Instruments {
			c.add(sym, AssetGroup(group))
		}
	}
	for sym, name := range file.Mappings {
		c.fixedMappings[sym] = name
	}
	return c, nil
}

func (c *Catalog) add(symbol string, group AssetGroup) {
	if _, ok := c.membership[symbol]; ok {
		return
	}
	c.membership[symbol] = group
	c.instruments = append(c.instruments, symbol)
}

// Instruments returns the full tradable universe in catalog order.
func (c *Catalog) Instruments() []string {
	out := make([]string, len(c.instruments))
	copy(out, c.instruments)
	return out
}

// Filter restricts the catalog view to the requested symbols, dropping unknown
// ones. An empty selection keeps the full universe.
func (c *Catalog) Filter(selected []string) []string {
	if len(selected) == 0 {
		return c.Instruments()
	}
	out := make([]string, 0, len(selected))
	for _, s := range selected {
		if _, ok := c.membership[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// GroupFor returns the asset group for a symbol, GroupDefault when unknown.
func (c *Catalog) GroupFor(symbol string) AssetGroup {
	if g, ok := c.membership[symbol]; ok {
		return g
	}
	return GroupDefault
}

// ProfileFor returns the group parameters for a symbol.
func (c *Catalog) ProfileFor(symbol string) GroupProfile {
	return c.groups[c.GroupFor(symbol)]
}

// LevelsFor returns the oversold/overbought thresholds for a symbol.
func (c *Catalog) LevelsFor(symbol string) Levels {
	return c.ProfileFor(symbol).Levels
}

// FixedMapping returns the fixed brokerage-side name for a symbol, if any.
// Symbols with a fixed mapping have no listing alternates.
func (c *Catalog) FixedMapping(symbol string) (string, bool) {
	name, ok := c.fixedMappings[symbol]
	return name, ok
}

// ExpiryMinutesFor returns the contract expiry for a symbol under a profile.
// Crypto contracts expire one minute earlier, floored at two minutes.
func (c *Catalog) ExpiryMinutesFor(symbol string, p Aggressiveness) int {
	if c.GroupFor(symbol) == GroupCrypto {
		if m := p.ExpiryMinutes - 1; m > 2 {
			return m
		}
		return 2
	}
	return p.ExpiryMinutes
}
