package features

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"JumpVol/internal/domain/models"
)

func syntheticRecords(n int, seed int64) []models.JumpRecord {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.JumpRecord, n)
	for i := range out {
		bv := 1e-5 + 1e-4*rng.Float64()
		rec := models.JumpRecord{DailyVariation: models.DailyVariation{
			Date: start.AddDate(0, 0, i),
			BV:   bv,
			RV:   bv * (1 + 0.2*rng.Float64()),
		}}
		if i%7 == 3 {
			rec.IsJump = true
			rec.RV = bv * 3
			rec.Magnitude = rec.RV - rec.BV
			rec.Continuous = rec.BV
		} else {
			rec.Continuous = rec.RV
		}
		out[i] = rec
	}
	return out
}

func mean(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}

func TestMovingAverageLengthAndValues(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	x := make([]float64, 60)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	for _, n := range []int{1, 5, 21} {
		ma := MovingAverage(x, n)
		require.Len(t, ma, len(x)-n)
		for i := range ma {
			assert.InDelta(t, mean(x[i : i+n]), ma[i], 1e-12)
		}
	}
	assert.Nil(t, MovingAverage(x[:5], 5))
	assert.Nil(t, MovingAverage(x, 0))
}

func TestBuildDropsWarmupAndLastDay(t *testing.T) {
	b, err := NewBuilder(WeekWindow, MonthWindow)
	require.NoError(t, err)
	recs := syntheticRecords(100, 1)
	table := b.Build(recs)

	require.Equal(t, 78, table.Len())
	assert.Equal(t, recs[21].Date, table.Rows[0].Date)
	assert.Equal(t, recs[98].Date, table.Rows[77].Date)
	assert.Equal(t, 100-b.MinDays()+1, table.Len())
}

func TestBuildAlignsColumnsByDate(t *testing.T) {
	b, err := NewBuilder(WeekWindow, MonthWindow)
	require.NoError(t, err)
	recs := syntheticRecords(60, 2)
	table := b.Build(recs)

	cont := make([]float64, len(recs))
	jump := make([]float64, len(recs))
	for i, r := range recs {
		cont[i] = r.Continuous
		jump[i] = r.Magnitude
	}
	for k, row := range table.Rows {
		j := k + MonthWindow
		require.Equal(t, recs[j].Date, row.Date)
		assert.InDelta(t, math.Log(recs[j+1].RV), row.NextDayRV, 1e-12)
		assert.InDelta(t, math.Log(cont[j]), row.Continuous, 1e-12)
		assert.InDelta(t, math.Log(mean(cont[j-5 : j])), row.ContinuousMA5, 1e-9)
		assert.InDelta(t, math.Log(mean(cont[j-21 : j])), row.ContinuousMA21, 1e-9)
		if recs[j].IsJump {
			assert.InDelta(t, math.Log(jump[j]), row.Jump, 1e-12)
		} else {
			assert.Zero(t, row.Jump)
		}
		if m := mean(jump[j-5 : j]); m > 0 {
			assert.InDelta(t, math.Log(m), row.JumpMA5, 1e-9)
		} else {
			assert.Zero(t, row.JumpMA5)
		}
		assert.Equal(t, recs[j].IsJump, row.IsJump)
	}
}

func TestBuildMapsZeroJumpAveragesToZero(t *testing.T) {
	b, err := NewBuilder(WeekWindow, MonthWindow)
	require.NoError(t, err)
	recs := syntheticRecords(40, 3)
	for i := range recs {
		recs[i].IsJump = false
		recs[i].Magnitude = 0
		recs[i].Continuous = recs[i].RV
	}
	table := b.Build(recs)
	require.Equal(t, 18, table.Len())
	for _, row := range table.Rows {
		assert.Zero(t, row.Jump)
		assert.Zero(t, row.JumpMA5)
		assert.Zero(t, row.JumpMA21)
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	b, err := NewBuilder(WeekWindow, MonthWindow)
	require.NoError(t, err)
	recs := syntheticRecords(30, 4)
	snapshot := append([]models.JumpRecord(nil), recs...)
	_ = b.Build(recs)
	assert.Equal(t, snapshot, recs)
}

func TestBuildTooShortHistoryYieldsEmptyTable(t *testing.T) {
	b, err := NewBuilder(WeekWindow, MonthWindow)
	require.NoError(t, err)
	assert.Zero(t, b.Build(syntheticRecords(22, 5)).Len())
	assert.Zero(t, b.Build(nil).Len())
	assert.Equal(t, 1, b.Build(syntheticRecords(23, 5)).Len())
}

func TestSplitIsChronologicalAndExhaustive(t *testing.T) {
	b, err := NewBuilder(WeekWindow, MonthWindow)
	require.NoError(t, err)
	table := b.Build(syntheticRecords(100, 6))
	require.Equal(t, 78, table.Len())

	train, test := table.Split(0.70)
	assert.Equal(t, 54, train.Len())
	assert.Equal(t, 24, test.Len())
	assert.Equal(t, table.Rows[:54], train.Rows)
	assert.Equal(t, table.Rows[54:], test.Rows)
	assert.True(t, train.Rows[53].Date.Before(test.Rows[0].Date))
}

func TestNewBuilderRejectsBadWindows(t *testing.T) {
	_, err := NewBuilder(0, 21)
	assert.Error(t, err)
	_, err = NewBuilder(21, 5)
	assert.Error(t, err)
}
