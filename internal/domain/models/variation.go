package models

import "time"

// DayLayout is the calendar-day key used for grouping and joins.
const DayLayout = "2006-01-02"

// Bar is one intraday OHLCV record. Only Time and Close feed the estimators.
type Bar struct {
	Time   time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DaySeries holds the ordered closes of a single calendar day.
type DaySeries struct {
	Date   time.Time
	Prices []float64
}

// Key returns the calendar-day key of the series.
func (d DaySeries) Key() string { return d.Date.Format(DayLayout) }

// DailyVariation carries the realized measures of one day.
type DailyVariation struct {
	Date time.Time `json:"date"`
	RV   float64   `json:"rv"`
	BV   float64   `json:"bv"`
	QV   float64   `json:"qv"`
}

// JumpRecord extends DailyVariation with the jump test outcome and decomposition.
type JumpRecord struct {
	DailyVariation
	Statistic  float64 `json:"statistic"`
	IsJump     bool    `json:"is_jump"`
	Magnitude  float64 `json:"magnitude"`  // RV-BV on jump days, clamped at 0
	Continuous float64 `json:"continuous"` // BV on jump days, RV otherwise
}

// ExcludedDay records a day dropped from aggregation and why.
type ExcludedDay struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}
