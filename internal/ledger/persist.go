package ledger

import (
	"context"
	"log"
	"time"

	"github.com/denisbrodbeck/machineid"

	"options-core/pkg/db"
)

// appID namespaces the machine stamp so it is stable per installation.
const appID = "options-core"

func machineStamp() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		log.Printf("ledger: machine id unavailable: %v", err)
		return ""
	}
	return id
}

// Store persists the ledger, open orders and indicator histories as one
// atomic snapshot.
type Store struct {
	database *db.Database
	stamp    string
}

// NewStore wraps database with the local machine stamp.
func NewStore(database *db.Database) *Store {
	return &Store{database: database, stamp: machineStamp()}
}

// Save writes the current session state. Open orders and histories are
// captured by the caller at the same point in the cycle so the snapshot is
// internally consistent.
func (s *Store) Save(ctx context.Context, l *Ledger, orders []db.OpenOrderRow, histories map[string][]float64) error {
	l.mu.RLock()
	snap := db.Snapshot{
		Session: db.SessionRow{
			SavedAt:                time.Now(),
			MachineID:              s.stamp,
			ProfileMode:            l.profileMode,
			InitialCapital:         l.initialCapital,
			MinCapital:             l.minCapital,
			TotalProfit:            l.totalProfit,
			DailyProfit:            l.dailyProfit,
			DayStartBalance:        l.dayStartBalance,
			LastDate:               l.lastDate,
			CurrentMonth:           l.currentMonth,
			AbsoluteStop:           l.absoluteStop,
			MonthlyStop:            l.monthlyStop,
			MonthlyStopMonth:       l.monthlyStopMonth,
			DailyConsecutiveWins:   l.dailyWins,
			DailyConsecutiveLosses: l.dailyLosses,
			DailyLock:              l.dailyLock,
			DailyLockReason:        string(l.dailyLockReason),
			DailyLockTime:          l.dailyLockTime,
			MaxDailyConsecutive:    l.maxDailyConsecutive,
		},
		OpenOrders: orders,
		Histories:  histories,
	}
	for name, st := range l.byInstrument {
		snap.Instruments = append(snap.Instruments, db.InstrumentStatsRow{
			Instrument:        name,
			Wins:              st.wins,
			Losses:            st.losses,
			Ties:              st.ties,
			ConsecutiveLosses: st.consecutiveLosses,
			LastSignalTime:    st.lastSignal,
		})
	}
	for month, profit := range l.monthlyProfit {
		snap.Monthly = append(snap.Monthly, db.MonthlyRow{
			Month:           month,
			Profit:          profit,
			StartingBalance: l.monthlyStart[month],
		})
	}
	for month, start := range l.monthlyStart {
		if _, ok := l.monthlyProfit[month]; !ok {
			snap.Monthly = append(snap.Monthly, db.MonthlyRow{Month: month, StartingBalance: start})
		}
	}
	l.mu.RUnlock()

	return s.database.SaveSnapshot(ctx, snap)
}

// Restored is the result of loading a prior session.
type Restored struct {
	Ledger     *Ledger
	OpenOrders []db.OpenOrderRow
	Histories  map[string][]float64
}

// Load rebuilds the ledger from the last snapshot. Indicator histories are
// dropped when the snapshot was taken under a different aggressiveness mode,
// since readings from another candle timeframe are not comparable. A missing
// snapshot returns db.ErrNoSnapshot.
func (s *Store) Load(ctx context.Context, profileMode string) (*Restored, error) {
	snap, err := s.database.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	if s.stamp != "" && snap.Session.MachineID != "" && snap.Session.MachineID != s.stamp {
		log.Printf("ledger: snapshot was written on another machine, restoring anyway")
	}

	l := New(snap.Session.InitialCapital, snap.Session.ProfileMode, snap.Session.MaxDailyConsecutive)
	l.minCapital = snap.Session.MinCapital
	l.totalProfit = snap.Session.TotalProfit
	l.dailyProfit = snap.Session.DailyProfit
	l.dayStartBalance = snap.Session.DayStartBalance
	l.lastDate = snap.Session.LastDate
	l.currentMonth = snap.Session.CurrentMonth
	l.absoluteStop = snap.Session.AbsoluteStop
	l.monthlyStop = snap.Session.MonthlyStop
	l.monthlyStopMonth = snap.Session.MonthlyStopMonth
	l.dailyWins = snap.Session.DailyConsecutiveWins
	l.dailyLosses = snap.Session.DailyConsecutiveLosses
	l.dailyLock = snap.Session.DailyLock
	l.dailyLockReason = LockReason(snap.Session.DailyLockReason)
	l.dailyLockTime = snap.Session.DailyLockTime

	for _, row := range snap.Instruments {
		l.byInstrument[row.Instrument] = &instrumentStats{
			wins:              row.Wins,
			losses:            row.Losses,
			ties:              row.Ties,
			consecutiveLosses: row.ConsecutiveLosses,
			lastSignal:        row.LastSignalTime,
		}
	}
	for _, row := range snap.Monthly {
		if row.Profit != 0 {
			l.monthlyProfit[row.Month] = row.Profit
		}
		if row.StartingBalance != 0 {
			l.monthlyStart[row.Month] = row.StartingBalance
		}
	}

	histories := snap.Histories
	if snap.Session.ProfileMode != profileMode {
		log.Printf("ledger: snapshot profile %q differs from %q, discarding indicator histories",
			snap.Session.ProfileMode, profileMode)
		histories = nil
		l.profileMode = profileMode
	}

	return &Restored{Ledger: l, OpenOrders: snap.OpenOrders, Histories: histories}, nil
}
