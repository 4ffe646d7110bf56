package mcmc

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"JumpVol/internal/domain/models"
)

func iidChains(m, n int, offset []float64) [][]float64 {
	rng := rand.New(rand.NewPCG(1, 2))
	out := make([][]float64, m)
	for c := range out {
		out[c] = make([]float64, n)
		for i := range out[c] {
			out[c][i] = rng.NormFloat64()
			if offset != nil {
				out[c][i] += offset[c]
			}
		}
	}
	return out
}

func TestSplitRHat(t *testing.T) {
	assert.InDelta(t, 1.0, SplitRHat(iidChains(4, 1000, nil)), 0.01)
	assert.Greater(t, SplitRHat(iidChains(4, 1000, []float64{0, 0, 5, 5})), 1.5)
	assert.Equal(t, 1.0, SplitRHat([][]float64{{2, 2, 2, 2}, {2, 2, 2, 2}}))
	assert.True(t, math.IsInf(SplitRHat([][]float64{{1, 1, 1, 1}, {2, 2, 2, 2}}), 1))
	assert.True(t, math.IsNaN(SplitRHat([][]float64{{1, 2}})))
}

func TestEffectiveSampleSize(t *testing.T) {
	iid := EffectiveSampleSize(iidChains(4, 1000, nil))
	assert.InDelta(t, 4000, iid, 600)

	// AR(1) with coefficient 0.9 has ESS ≈ N(1-ρ)/(1+ρ).
	rng := rand.New(rand.NewPCG(3, 4))
	chains := make([][]float64, 4)
	for c := range chains {
		chains[c] = make([]float64, 2000)
		x := 0.0
		for i := range chains[c] {
			x = 0.9*x + rng.NormFloat64()
			chains[c][i] = x
		}
	}
	ess := EffectiveSampleSize(chains)
	assert.Greater(t, ess, 200.0)
	assert.Less(t, ess, 900.0)
}

func TestSummarize(t *testing.T) {
	chains := iidChains(4, 500, nil)
	draws := make([][][]float64, 4)
	for c := range draws {
		draws[c] = make([][]float64, 500)
		for i := range draws[c] {
			draws[c][i] = []float64{chains[c][i], 3}
		}
	}
	stats := []models.ChainStats{{Chain: 0}, {Chain: 1, Divergences: 2}, {Chain: 2}, {Chain: 3}}

	summary, diag := Summarize([]string{"x", "const"}, draws, stats)
	require.Len(t, summary, 2)

	x := summary[0]
	assert.Equal(t, "x", x.Name)
	assert.Equal(t, 2000, x.Draws)
	assert.InDelta(t, 0, x.Mean, 0.1)
	assert.InDelta(t, 1, x.SD, 0.1)
	assert.InDelta(t, -1.88, x.Q03, 0.2)
	assert.InDelta(t, 1.88, x.Q97, 0.2)
	assert.Less(t, x.Q03, x.Q97)

	c := summary[1]
	assert.Equal(t, 3.0, c.Mean)
	assert.Equal(t, 0.0, c.SD)
	assert.Equal(t, 1.0, c.RHat)
	assert.Equal(t, 2000.0, c.ESS)

	require.Len(t, diag.Warnings, 1)
	assert.Equal(t, models.WarnDivergence, diag.Warnings[0].Kind)
	assert.Equal(t, 1, diag.Warnings[0].Chain)
	assert.False(t, diag.Converged())
}

func TestSummarizeFlagsStuckChains(t *testing.T) {
	draws := [][][]float64{
		{{0}, {0}, {0}, {0}},
		{{1}, {1}, {1}, {1}},
	}
	summary, diag := Summarize([]string{"p"}, draws, []models.ChainStats{{Chain: 0}, {Chain: 1}})
	assert.Equal(t, unbounded, summary[0].RHat)

	kinds := map[string]bool{}
	for _, w := range diag.Warnings {
		kinds[w.Kind] = true
	}
	assert.True(t, kinds[models.WarnRHat])
}
