// Package profile holds the per-asset-group risk parameters and the
// aggressiveness profiles that control signal selectivity.
package profile

import (
	"strings"
	"time"
)

// AssetGroup classifies instruments that share one threshold profile.
type AssetGroup string

const (
	GroupForex     AssetGroup = "FOREX"
	GroupIndex     AssetGroup = "INDEX"
	GroupStock     AssetGroup = "STOCK"
	GroupCommodity AssetGroup = "COMMODITY"
	GroupCrypto    AssetGroup = "CRYPTO"
	GroupPair      AssetGroup = "PAIR"
	GroupDefault   AssetGroup = "DEFAULT"
)

// Levels are the indicator thresholds for one asset group.
type Levels struct {
	Oversold   float64
	Overbought float64
}

// GroupProfile bundles the per-group trading parameters.
type GroupProfile struct {
	Levels          Levels
	MinMomentum     float64 // minimum total indicator movement, in points
	PositionPercent float64 // fraction of balance staked per contract
}

// Mode names one of the closed set of aggressiveness profiles.
type Mode string

const (
	Conservative Mode = "CONSERVATIVE"
	Balanced     Mode = "BALANCED"
	Aggressive   Mode = "AGGRESSIVE"
)

// ParseMode maps a caller-supplied string onto a Mode, defaulting to Balanced.
func ParseMode(s string) Mode {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Conservative):
		return Conservative
	case string(Aggressive):
		return Aggressive
	default:
		return Balanced
	}
}

// Aggressiveness is immutable for a run: the timing/strength/rebound bundle
// selected at startup.
type Aggressiveness struct {
	Mode               Mode
	CandleTimeframe    time.Duration
	ExpiryMinutes      int
	MinStrength        float64
	AllowRebounds      bool
	MaxRebounds        int
	ReboundTolerance   float64
	MaxCandlesForCross int
}

var profiles = map[Mode]Aggressiveness{
	Conservative: {
		Mode:               Conservative,
		CandleTimeframe:    15 * time.Minute,
		ExpiryMinutes:      5,
		MinStrength:        60,
		AllowRebounds:      false,
		MaxRebounds:        0,
		ReboundTolerance:   0,
		MaxCandlesForCross: 1,
	},
	Balanced: {
		Mode:               Balanced,
		CandleTimeframe:    5 * time.Minute,
		ExpiryMinutes:      1,
		MinStrength:        60,
		AllowRebounds:      true,
		MaxRebounds:        1,
		ReboundTolerance:   2,
		MaxCandlesForCross: 2,
	},
	Aggressive: {
		Mode:               Aggressive,
		CandleTimeframe:    5 * time.Minute,
		ExpiryMinutes:      5,
		MinStrength:        50,
		AllowRebounds:      true,
		MaxRebounds:        2,
		ReboundTolerance:   3,
		MaxCandlesForCross: 3,
	},
}

// For returns the profile for a mode.
func For(m Mode) Aggressiveness {
	if p, ok := profiles[m]; ok {
		return p
	}
	return profiles[Balanced]
}
