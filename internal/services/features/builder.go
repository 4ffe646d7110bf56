// Package features turns daily jump records into the HAR-Jumps design table.
package features

import (
	"fmt"
	"math"

	"JumpVol/internal/domain/models"
)

// Default HAR horizons in trading days.
const (
	WeekWindow  = 5
	MonthWindow = 21
)

// MovingAverage returns len(x)-n trailing means with MA[i] = mean(x[i:i+n]). Keyed to
// dates, MA[i] belongs to index i+n: the average of the n days strictly before it.
func MovingAverage(x []float64, n int) []float64 {
	if n <= 0 || len(x) <= n {
		return nil
	}
	out := make([]float64, len(x)-n)
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += x[i]
	}
	for i := range out {
		out[i] = sum / float64(n)
		sum += x[i+n] - x[i]
	}
	return out
}

// Builder assembles feature rows. It holds no state besides its window lengths.
type Builder struct {
	short int
	long  int
}

// NewBuilder validates the windows (0 < short < long).
func NewBuilder(short, long int) (*Builder, error) {
	if short <= 0 || long <= short {
		return nil, fmt.Errorf("features: invalid windows short=%d long=%d", short, long)
	}
	return &Builder{short: short, long: long}, nil
}

// Long returns the long window length.
func (b *Builder) Long() int { return b.long }

// MinDays is the smallest record count that yields at least one row.
func (b *Builder) MinDays() int { return b.long + 2 }

type column map[string]float64

func keyed(keys []string, values []float64, offset int) column {
	c := make(column, len(values))
	for i, v := range values {
		c[keys[i+offset]] = v
	}
	return c
}

// Build joins target, continuous and jump columns on date. Records must be date
// ascending with unique dates. N records produce N-(long+1) rows.
func (b *Builder) Build(recs []models.JumpRecord) models.FeatureTable {
	n := len(recs)
	keys := make([]string, n)
	rv := make([]float64, n)
	cont := make([]float64, n)
	jump := make([]float64, n)
	isJump := make(map[string]bool, n)
	for i, r := range recs {
		keys[i] = r.Date.Format(models.DayLayout)
		rv[i] = r.RV
		cont[i] = r.Continuous
		jump[i] = r.Magnitude
		isJump[keys[i]] = r.IsJump
	}

	target := column{}
	if n > 1 {
		target = keyed(keys, rv[1:], 0)
	}
	cols := []column{
		target,
		keyed(keys, cont, 0),
		keyed(keys, MovingAverage(cont, b.short), b.short),
		keyed(keys, MovingAverage(cont, b.long), b.long),
		keyed(keys, jump, 0),
		keyed(keys, MovingAverage(jump, b.short), b.short),
		keyed(keys, MovingAverage(jump, b.long), b.long),
	}

	var rows []models.FeatureRow
	for i, k := range keys {
		if !inAll(k, cols) {
			continue
		}
		rows = append(rows, models.FeatureRow{
			Date:           recs[i].Date,
			NextDayRV:      math.Log(cols[0][k]),
			Continuous:     math.Log(cols[1][k]),
			ContinuousMA5:  math.Log(cols[2][k]),
			ContinuousMA21: math.Log(cols[3][k]),
			Jump:           logPositive(cols[4][k]),
			JumpMA5:        logPositive(cols[5][k]),
			JumpMA21:       logPositive(cols[6][k]),
			IsJump:         isJump[k],
		})
	}
	return models.FeatureTable{Rows: rows}
}

func inAll(k string, cols []column) bool {
	for _, c := range cols {
		if _, ok := c[k]; !ok {
			return false
		}
	}
	return true
}

// logPositive maps non-positive jump values to 0.
func logPositive(x float64) float64 {
	if x > 0 {
		return math.Log(x)
	}
	return 0
}
