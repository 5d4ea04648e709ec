package iqws

import "encoding/json"

// envelope is the wire frame in both directions.
type envelope struct {
	Name      string          `json:"name"`
	Msg       json.RawMessage `json:"msg,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

type authMsg struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changeBalanceMsg struct {
	BalanceType string `json:"balance_type"` // "PRACTICE" or "REAL"
}

type balancesReply struct {
	Amount float64 `json:"amount"`
}

type candlesMsg struct {
	Active string `json:"active"`
	Size   int    `json:"size"` // candle size in seconds
	Count  int    `json:"count"`
	To     int64  `json:"to"` // unix seconds
}

type candlesReply struct {
	Candles []struct {
		Open float64 `json:"open"`
		Clos float64 `json:"close"`
		High float64 `json:"max"`
		Low  float64 `json:"min"`
		From int64   `json:"from"`
		To   int64   `json:"to"`
	} `json:"candles"`
}

type openOptionMsg struct {
	Active    string  `json:"active"`
	Direction string  `json:"direction"`
	Amount    float64 `json:"price"`
	Expiry    int     `json:"expiry_minutes"`
}

type openOptionReply struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type orderQueryMsg struct {
	ID string `json:"id"`
}

type orderReply struct {
	ID            string  `json:"id"`
	Result        string  `json:"result"` // "win" | "loose" | "equal" | ""
	WinAmount     float64 `json:"win_amount"`
	ProfitPercent float64 `json:"profit_percent"`
}

type orderHistoryReply struct {
	Orders []orderReply `json:"orders"`
}

type initializationReply struct {
	Actives []struct {
		Name      string `json:"name"`
		Type      string `json:"type"` // "binary" | "turbo"
		Enabled   bool   `json:"enabled"`
		Suspended bool   `json:"is_suspended"`
	} `json:"actives"`
}
