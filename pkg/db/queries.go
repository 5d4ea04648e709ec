package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoSnapshot is returned by LoadSnapshot when nothing was ever saved.
var ErrNoSnapshot = errors.New("db: no snapshot")

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SaveSnapshot atomically replaces the stored snapshot.
func (d *Database) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	s := snap.Session
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session (
			id, saved_at, machine_id, profile_mode, initial_capital, min_capital,
			total_profit, daily_profit, day_start_balance, last_date, current_month,
			absolute_stop, monthly_stop, monthly_stop_month,
			daily_consecutive_wins, daily_consecutive_losses,
			daily_lock, daily_lock_reason, daily_lock_time, max_daily_consecutive
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			saved_at = excluded.saved_at,
			machine_id = excluded.machine_id,
			profile_mode = excluded.profile_mode,
			initial_capital = excluded.initial_capital,
			min_capital = excluded.min_capital,
			total_profit = excluded.total_profit,
			daily_profit = excluded.daily_profit,
			day_start_balance = excluded.day_start_balance,
			last_date = excluded.last_date,
			current_month = excluded.current_month,
			absolute_stop = excluded.absolute_stop,
			monthly_stop = excluded.monthly_stop,
			monthly_stop_month = excluded.monthly_stop_month,
			daily_consecutive_wins = excluded.daily_consecutive_wins,
			daily_consecutive_losses = excluded.daily_consecutive_losses,
			daily_lock = excluded.daily_lock,
			daily_lock_reason = excluded.daily_lock_reason,
			daily_lock_time = excluded.daily_lock_time,
			max_daily_consecutive = excluded.max_daily_consecutive
	`,
		fmtTime(s.SavedAt), s.MachineID, s.ProfileMode, s.InitialCapital, s.MinCapital,
		s.TotalProfit, s.DailyProfit, s.DayStartBalance, s.LastDate, s.CurrentMonth,
		s.AbsoluteStop, s.MonthlyStop, s.MonthlyStopMonth,
		s.DailyConsecutiveWins, s.DailyConsecutiveLosses,
		s.DailyLock, s.DailyLockReason, fmtTime(s.DailyLockTime), s.MaxDailyConsecutive,
	); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM open_orders`); err != nil {
		return fmt.Errorf("clear open orders: %w", err)
	}
	for _, o := range snap.OpenOrders {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO open_orders (id, instrument, listing, direction, stake,
				entry_time, expiry_time, entry_rsi, balance_before, asset_group, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, o.ID, o.Instrument, o.Listing, o.Direction, o.Stake,
			fmtTime(o.EntryTime), fmtTime(o.ExpiryTime), o.EntryRSI,
			o.BalanceBefore, o.AssetGroup, o.Status); err != nil {
			return fmt.Errorf("save open order %s: %w", o.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM instrument_stats`); err != nil {
		return fmt.Errorf("clear instrument stats: %w", err)
	}
	for _, st := range snap.Instruments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO instrument_stats (instrument, wins, losses, ties, consecutive_losses, last_signal_time)
			VALUES (?, ?, ?, ?, ?, ?)
		`, st.Instrument, st.Wins, st.Losses, st.Ties, st.ConsecutiveLosses, fmtTime(st.LastSignalTime)); err != nil {
			return fmt.Errorf("save stats for %s: %w", st.Instrument, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_ledger`); err != nil {
		return fmt.Errorf("clear monthly ledger: %w", err)
	}
	for _, m := range snap.Monthly {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO monthly_ledger (month, profit, starting_balance) VALUES (?, ?, ?)
		`, m.Month, m.Profit, m.StartingBalance); err != nil {
			return fmt.Errorf("save month %s: %w", m.Month, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM indicator_history`); err != nil {
		return fmt.Errorf("clear indicator history: %w", err)
	}
	for instrument, readings := range snap.Histories {
		payload, err := json.Marshal(readings)
		if err != nil {
			return fmt.Errorf("encode history for %s: %w", instrument, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO indicator_history (instrument, readings) VALUES (?, ?)
		`, instrument, string(payload)); err != nil {
			return fmt.Errorf("save history for %s: %w", instrument, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads the stored snapshot, or ErrNoSnapshot when absent.
func (d *Database) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var savedAt, lockTime string

	s := &snap.Session
	err := d.DB.QueryRowContext(ctx, `
		SELECT saved_at, COALESCE(machine_id, ''), profile_mode, initial_capital, min_capital,
			total_profit, daily_profit, day_start_balance,
			COALESCE(last_date, ''), COALESCE(current_month, ''),
			absolute_stop, monthly_stop, COALESCE(monthly_stop_month, ''),
			daily_consecutive_wins, daily_consecutive_losses,
			daily_lock, COALESCE(daily_lock_reason, ''), COALESCE(daily_lock_time, ''),
			max_daily_consecutive
		FROM session WHERE id = 1
	`).Scan(&savedAt, &s.MachineID, &s.ProfileMode, &s.InitialCapital, &s.MinCapital,
		&s.TotalProfit, &s.DailyProfit, &s.DayStartBalance,
		&s.LastDate, &s.CurrentMonth,
		&s.AbsoluteStop, &s.MonthlyStop, &s.MonthlyStopMonth,
		&s.DailyConsecutiveWins, &s.DailyConsecutiveLosses,
		&s.DailyLock, &s.DailyLockReason, &lockTime,
		&s.MaxDailyConsecutive)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, ErrNoSnapshot
	}
	if err != nil {
		return snap, fmt.Errorf("load session: %w", err)
	}
	s.SavedAt = parseTime(savedAt)
	s.DailyLockTime = parseTime(lockTime)

	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, instrument, listing, direction, stake, entry_time, expiry_time,
			entry_rsi, balance_before, asset_group, status
		FROM open_orders
	`)
	if err != nil {
		return snap, fmt.Errorf("load open orders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o OpenOrderRow
		var entry, expiry string
		if err := rows.Scan(&o.ID, &o.Instrument, &o.Listing, &o.Direction, &o.Stake,
			&entry, &expiry, &o.EntryRSI, &o.BalanceBefore, &o.AssetGroup, &o.Status); err != nil {
			return snap, fmt.Errorf("scan open order: %w", err)
		}
		o.EntryTime = parseTime(entry)
		o.ExpiryTime = parseTime(expiry)
		snap.OpenOrders = append(snap.OpenOrders, o)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	statRows, err := d.DB.QueryContext(ctx, `
		SELECT instrument, wins, losses, ties, consecutive_losses, COALESCE(last_signal_time, '')
		FROM instrument_stats
	`)
	if err != nil {
		return snap, fmt.Errorf("load instrument stats: %w", err)
	}
	defer statRows.Close()
	for statRows.Next() {
		var st InstrumentStatsRow
		var last string
		if err := statRows.Scan(&st.Instrument, &st.Wins, &st.Losses, &st.Ties, &st.ConsecutiveLosses, &last); err != nil {
			return snap, fmt.Errorf("scan instrument stats: %w", err)
		}
		st.LastSignalTime = parseTime(last)
		snap.Instruments = append(snap.Instruments, st)
	}
	if err := statRows.Err(); err != nil {
		return snap, err
	}

	monthRows, err := d.DB.QueryContext(ctx, `SELECT month, profit, starting_balance FROM monthly_ledger`)
	if err != nil {
		return snap, fmt.Errorf("load monthly ledger: %w", err)
	}
	defer monthRows.Close()
	for monthRows.Next() {
		var m MonthlyRow
		if err := monthRows.Scan(&m.Month, &m.Profit, &m.StartingBalance); err != nil {
			return snap, fmt.Errorf("scan monthly ledger: %w", err)
		}
		snap.Monthly = append(snap.Monthly, m)
	}
	if err := monthRows.Err(); err != nil {
		return snap, err
	}

	histRows, err := d.DB.QueryContext(ctx, `SELECT instrument, readings FROM indicator_history`)
	if err != nil {
		return snap, fmt.Errorf("load indicator history: %w", err)
	}
	defer histRows.Close()
	snap.Histories = make(map[string][]float64)
	for histRows.Next() {
		var instrument, payload string
		if err := histRows.Scan(&instrument, &payload); err != nil {
			return snap, fmt.Errorf("scan indicator history: %w", err)
		}
		var readings []float64
		if err := json.Unmarshal([]byte(payload), &readings); err != nil {
			return snap, fmt.Errorf("decode history for %s: %w", instrument, err)
		}
		snap.Histories[instrument] = readings
	}
	return snap, histRows.Err()
}
