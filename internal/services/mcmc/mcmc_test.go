package mcmc

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"JumpVol/internal/domain/models"
)

// gaussian is an independent normal target with per-coordinate scales.
type gaussian struct {
	sd []float64
}

func (g gaussian) Dim() int { return len(g.sd) }

func (g gaussian) LogDensity(x []float64) float64 {
	lp := 0.0
	for i, v := range x {
		lp -= 0.5 * v * v / (g.sd[i] * g.sd[i])
	}
	return lp
}

func (g gaussian) Gradient(dst, x []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(x))
	}
	for i, v := range x {
		dst[i] = -v / (g.sd[i] * g.sd[i])
	}
	return dst
}

func pooled(s *Samples, k int) []float64 {
	return pool(column(s.Draws, k))
}

func TestNUTSRecoversGaussian(t *testing.T) {
	target := gaussian{sd: []float64{1, 10}}
	cfg := RunConfig{Chains: 4, Warmup: 400, Draws: 500, Seed: 7}
	s, err := NewNUTS().Sample(context.Background(), target, Jitter(2, 4, 0.5, 1), cfg)
	require.NoError(t, err)
	require.Len(t, s.Draws, 4)
	require.Len(t, s.Stats, 4)

	for c, chain := range s.Draws {
		assert.Len(t, chain, 500)
		assert.Equal(t, c, s.Stats[c].Chain)
		assert.Zero(t, s.Stats[c].Divergences)
		assert.Greater(t, s.Stats[c].StepSize, 0.0)
		assert.Greater(t, s.Stats[c].MeanAccept, 0.6)
		assert.Less(t, s.Stats[c].MeanAccept, 1.0)
	}

	for k, sd := range target.sd {
		mean, std := stat.MeanStdDev(pooled(s, k), nil)
		assert.InDelta(t, 0, mean, 0.2*sd)
		assert.InDelta(t, sd, std, 0.15*sd)
		assert.Less(t, SplitRHat(column(s.Draws, k)), 1.05)
		assert.Greater(t, EffectiveSampleSize(column(s.Draws, k)), 200.0)
	}
}

func TestNUTSIsDeterministicPerSeed(t *testing.T) {
	target := gaussian{sd: []float64{1, 2, 3}}
	cfg := RunConfig{Chains: 2, Warmup: 50, Draws: 20, Seed: 99}
	init := Jitter(3, 2, 0.5, 3)

	a, err := NewNUTS().Sample(context.Background(), target, init, cfg)
	require.NoError(t, err)
	b, err := NewNUTS().Sample(context.Background(), target, init, cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Draws, b.Draws)
	assert.NotEqual(t, a.Draws[0], a.Draws[1])
}

func TestMetropolisRecoversGaussian(t *testing.T) {
	target := gaussian{sd: []float64{1, 3}}
	cfg := RunConfig{Chains: 4, Warmup: 1000, Draws: 3000, Seed: 11}
	s, err := NewMetropolis().Sample(context.Background(), target, Jitter(2, 4, 0.5, 2), cfg)
	require.NoError(t, err)

	for _, st := range s.Stats {
		assert.Zero(t, st.Divergences)
		assert.Greater(t, st.MeanAccept, 0.1)
		assert.Less(t, st.MeanAccept, 0.7)
	}
	for k, sd := range target.sd {
		mean, std := stat.MeanStdDev(pooled(s, k), nil)
		assert.InDelta(t, 0, mean, 0.3*sd)
		assert.InDelta(t, sd, std, 0.25*sd)
		assert.Less(t, SplitRHat(column(s.Draws, k)), 1.1)
	}
}

func TestSamplingCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, kind := range []string{KindNUTS, KindMetropolis} {
		t.Run(kind, func(t *testing.T) {
			s, err := New(kind)
			require.NoError(t, err)
			_, err = s.Sample(ctx, gaussian{sd: []float64{1}}, Jitter(1, 2, 0.5, 1), RunConfig{Chains: 2, Warmup: 10, Draws: 10})
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrSamplingCanceled))
			assert.True(t, errors.Is(err, context.Canceled))
		})
	}
}

func TestRunConfigValidation(t *testing.T) {
	target := gaussian{sd: []float64{1, 1}}
	tests := []struct {
		name string
		cfg  RunConfig
		init [][]float64
	}{
		{"no chains", RunConfig{Chains: 0, Draws: 1}, nil},
		{"no draws", RunConfig{Chains: 1, Draws: 0}, Jitter(2, 1, 0.1, 1)},
		{"negative warmup", RunConfig{Chains: 1, Draws: 1, Warmup: -1}, Jitter(2, 1, 0.1, 1)},
		{"init count", RunConfig{Chains: 2, Draws: 1}, Jitter(2, 1, 0.1, 1)},
		{"init dim", RunConfig{Chains: 1, Draws: 1}, Jitter(3, 1, 0.1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNUTS().Sample(context.Background(), target, tt.init, tt.cfg)
			assert.Error(t, err)
			assert.False(t, errors.Is(err, models.ErrSamplingCanceled))
		})
	}
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New("gibbs")
	assert.Error(t, err)

	s, err := New("")
	require.NoError(t, err)
	assert.Equal(t, KindNUTS, s.Name())
}

func TestJitter(t *testing.T) {
	init := Jitter(5, 3, 0.5, 42)
	require.Len(t, init, 3)
	for _, x := range init {
		require.Len(t, x, 5)
		for _, v := range x {
			assert.LessOrEqual(t, math.Abs(v), 0.5)
		}
	}
	assert.Equal(t, init, Jitter(5, 3, 0.5, 42))
}
