package variation

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"JumpVol/internal/domain/models"
)

func randomWalk(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	lp := math.Log(100)
	for i := range out {
		lp += 0.001 * rng.NormFloat64()
		out[i] = math.Exp(lp)
	}
	return out
}

func TestConstantPricesGiveZeroVariation(t *testing.T) {
	prices := make([]float64, 390)
	for i := range prices {
		prices[i] = 42.5
	}
	v, err := Compute(models.DaySeries{Prices: prices}, 390)
	require.NoError(t, err)
	assert.Zero(t, v.RV)
	assert.Zero(t, v.BV)
	assert.Zero(t, v.QV)
}

func TestEstimatorsMatchHandComputation(t *testing.T) {
	prices := []float64{100, 101, 99, 100, 102, 101}
	r, err := LogReturns(prices)
	require.NoError(t, err)
	require.Len(t, r, 5)

	wantRV := 0.0
	for _, x := range r {
		wantRV += x * x
	}
	wantBV := 0.0
	for i := 1; i < len(r); i++ {
		wantBV += math.Abs(r[i-1] * r[i])
	}
	wantQV := 0.0
	for i := 3; i < len(r); i++ {
		wantQV += math.Abs(r[i-3] * r[i-2] * r[i-1] * r[i])
	}
	wantQV *= 390

	gotRV, err := RealizedVariance(prices)
	require.NoError(t, err)
	gotBV, err := BipowerVariation(prices)
	require.NoError(t, err)
	gotQV, err := QuadpowerVariation(prices, 390)
	require.NoError(t, err)

	assert.InDelta(t, wantRV, gotRV, 1e-15)
	assert.InDelta(t, wantBV, gotBV, 1e-15)
	assert.InDelta(t, wantQV, gotQV, 1e-15)

	all, err := Compute(models.DaySeries{Prices: prices}, 390)
	require.NoError(t, err)
	assert.Equal(t, gotRV, all.RV)
	assert.Equal(t, gotBV, all.BV)
	assert.Equal(t, gotQV, all.QV)
}

func TestEstimatorsAreNonNegative(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		v, err := Compute(models.DaySeries{Prices: randomWalk(200, seed)}, 390)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v.RV, 0.0)
		assert.GreaterOrEqual(t, v.BV, 0.0)
		assert.GreaterOrEqual(t, v.QV, 0.0)
	}
}

func TestEstimatorsAreScaleInvariant(t *testing.T) {
	prices := randomWalk(390, 7)
	for _, c := range []float64{0.01, 3, 1e4} {
		scaled := make([]float64, len(prices))
		for i, p := range prices {
			scaled[i] = c * p
		}
		base, err := Compute(models.DaySeries{Prices: prices}, 390)
		require.NoError(t, err)
		got, err := Compute(models.DaySeries{Prices: scaled}, 390)
		require.NoError(t, err)

		assert.InEpsilon(t, base.RV, got.RV, 1e-9)
		assert.InEpsilon(t, base.BV, got.BV, 1e-9)
		assert.InEpsilon(t, base.QV, got.QV, 1e-9)
	}
}

func TestEstimatorsRejectInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"rv too short", func() error { _, err := RealizedVariance([]float64{1}); return err }},
		{"bv too short", func() error { _, err := BipowerVariation([]float64{1, 2}); return err }},
		{"qv too short", func() error { _, err := QuadpowerVariation([]float64{1, 2, 3, 4}, 390); return err }},
		{"qv bad delta", func() error { _, err := QuadpowerVariation([]float64{1, 2, 3, 4, 5}, 0); return err }},
		{"zero price", func() error { _, err := RealizedVariance([]float64{1, 0, 2}); return err }},
		{"negative price", func() error { _, err := BipowerVariation([]float64{1, 2, -3}); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrDomain))
			var de *models.DomainError
			assert.True(t, errors.As(err, &de))
		})
	}
}

func TestComputeTagsDateOnError(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	_, err := Compute(models.DaySeries{Date: day, Prices: []float64{1, 2, 3, -1, 5}}, 390)
	var de *models.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, day, de.Date)
	assert.Contains(t, err.Error(), "2024-03-04")
}
