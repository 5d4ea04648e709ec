package db

import "time"

// SessionRow is the single-row session snapshot.
type SessionRow struct {
	SavedAt                time.Time
	MachineID              string
	ProfileMode            string
	InitialCapital         float64
	MinCapital             float64
	TotalProfit            float64
	DailyProfit            float64
	DayStartBalance        float64
	LastDate               string // YYYY-MM-DD, empty when never set
	CurrentMonth           string // YYYY-MM
	AbsoluteStop           bool
	MonthlyStop            bool
	MonthlyStopMonth       string
	DailyConsecutiveWins   int
	DailyConsecutiveLosses int
	DailyLock              bool
	DailyLockReason        string
	DailyLockTime          time.Time // zero when not locked
	MaxDailyConsecutive    int
}

// OpenOrderRow is one unresolved contract.
type OpenOrderRow struct {
	ID            string
	Instrument    string
	Listing       string
	Direction     string
	Stake         float64
	EntryTime     time.Time
	ExpiryTime    time.Time
	EntryRSI      float64
	BalanceBefore float64
	AssetGroup    string
	Status        string
}

// InstrumentStatsRow carries per-instrument counters.
type InstrumentStatsRow struct {
	Instrument        string
	Wins              int
	Losses            int
	Ties              int
	ConsecutiveLosses int
	LastSignalTime    time.Time // zero when never signalled
}

// MonthlyRow carries one month's profit and starting balance.
type MonthlyRow struct {
	Month           string // YYYY-MM
	Profit          float64
	StartingBalance float64
}

// Snapshot is everything needed to restore a session exactly.
type Snapshot struct {
	Session     SessionRow
	OpenOrders  []OpenOrderRow
	Instruments []InstrumentStatsRow
	Monthly     []MonthlyRow
	Histories   map[string][]float64
}
