package models

import (
	"math"
	"time"
)

// FeatureCount is the width of the regression design row.
const FeatureCount = 6

// FeatureRow is one model-ready observation. All numeric fields are log transformed
// (jump columns map to 0 when the raw value is not strictly positive).
type FeatureRow struct {
	Date           time.Time `json:"date"`
	NextDayRV      float64   `json:"next_day_rv"`
	Continuous     float64   `json:"continuous"`
	ContinuousMA5  float64   `json:"continuous_ma5"`
	ContinuousMA21 float64   `json:"continuous_ma21"`
	Jump           float64   `json:"jump"`
	JumpMA5        float64   `json:"jump_ma5"`
	JumpMA21       float64   `json:"jump_ma21"`
	IsJump         bool      `json:"is_jump"`
}

// Vector returns the design row [C, C5, C21, J, J5, J21]. The first three entries
// drive the latent memory recursion.
func (r FeatureRow) Vector() []float64 {
	return []float64{r.Continuous, r.ContinuousMA5, r.ContinuousMA21, r.Jump, r.JumpMA5, r.JumpMA21}
}

// JumpIndicator returns 1 on jump days and 0 otherwise.
func (r FeatureRow) JumpIndicator() float64 {
	if r.IsJump {
		return 1
	}
	return 0
}

// FeatureTable is an ordered, date-ascending set of feature rows.
type FeatureTable struct {
	Rows []FeatureRow `json:"rows"`
}

// Len returns the number of rows.
func (t FeatureTable) Len() int { return len(t.Rows) }

// Design splits the table into the design matrix, the target and the jump indicator.
func (t FeatureTable) Design() (x [][]float64, y []float64, jumps []float64) {
	x = make([][]float64, len(t.Rows))
	y = make([]float64, len(t.Rows))
	jumps = make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		x[i] = r.Vector()
		y[i] = r.NextDayRV
		jumps[i] = r.JumpIndicator()
	}
	return x, y, jumps
}

// TrainSize returns the number of leading rows assigned to training for the given
// fraction: round(n*fraction)-1, clamped to [0, n].
func TrainSize(n int, fraction float64) int {
	k := int(math.Round(float64(n)*fraction)) - 1
	if k < 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}

// Split partitions the table chronologically. No shuffling: train precedes test.
func (t FeatureTable) Split(fraction float64) (train, test FeatureTable) {
	k := TrainSize(len(t.Rows), fraction)
	train.Rows = append([]FeatureRow(nil), t.Rows[:k]...)
	test.Rows = append([]FeatureRow(nil), t.Rows[k:]...)
	return train, test
}
