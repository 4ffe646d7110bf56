package mcmc

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"JumpVol/internal/domain/models"
)

// Thresholds for convergence warnings.
const (
	RHatThreshold = 1.01
	// ESSPerChain is the bulk ESS expected per chain; the run-wide floor scales with chains.
	ESSPerChain = 25.0

	// unbounded stands in for non-finite diagnostics so reports stay JSON encodable.
	unbounded = 1e9
)

// Summarize pools constrained draws (draws[chain][draw][param]) into per-parameter
// summaries and attaches convergence warnings.
func Summarize(names []string, draws [][][]float64, stats []models.ChainStats) ([]models.ParamSummary, models.Diagnostics) {
	diag := models.Diagnostics{Chains: stats}
	for _, s := range stats {
		if s.Divergences > 0 {
			diag.Warnings = append(diag.Warnings, models.SamplerWarning{
				Kind:    models.WarnDivergence,
				Chain:   s.Chain,
				Message: fmt.Sprintf("chain %d had %d divergent transitions after warmup", s.Chain, s.Divergences),
			})
		}
	}

	minESS := ESSPerChain * float64(len(draws))
	summary := make([]models.ParamSummary, len(names))
	for k, name := range names {
		chains := column(draws, k)
		pooled := pool(chains)
		sort.Float64s(pooled)
		mean, sd := stat.MeanStdDev(pooled, nil)
		row := models.ParamSummary{
			Name:  name,
			Mean:  mean,
			SD:    finite(sd),
			Q03:   stat.Quantile(0.03, stat.Empirical, pooled, nil),
			Q97:   stat.Quantile(0.97, stat.Empirical, pooled, nil),
			ESS:   finite(EffectiveSampleSize(chains)),
			RHat:  finite(SplitRHat(chains)),
			Draws: len(pooled),
		}
		summary[k] = row

		if row.RHat > RHatThreshold {
			diag.Warnings = append(diag.Warnings, models.SamplerWarning{
				Kind:    models.WarnRHat,
				Param:   name,
				Message: fmt.Sprintf("%s: r_hat %.3f exceeds %.2f", name, row.RHat, RHatThreshold),
			})
		}
		if row.ESS < minESS {
			diag.Warnings = append(diag.Warnings, models.SamplerWarning{
				Kind:    models.WarnLowESS,
				Param:   name,
				Message: fmt.Sprintf("%s: effective sample size %.0f below %.0f", name, row.ESS, minESS),
			})
		}
	}
	return summary, diag
}

// SplitRHat is the potential scale reduction factor computed on chains split in half.
func SplitRHat(chains [][]float64) float64 {
	var split [][]float64
	for _, c := range chains {
		h := len(c) / 2
		if h < 2 {
			return math.NaN()
		}
		split = append(split, c[:h], c[len(c)-h:])
	}
	n := float64(len(split[0]))
	means := make([]float64, len(split))
	w := 0.0
	for i, c := range split {
		m, v := stat.MeanVariance(c, nil)
		means[i] = m
		w += v
	}
	w /= float64(len(split))
	b := n * stat.Variance(means, nil)
	if w == 0 {
		if b == 0 {
			return 1
		}
		return math.Inf(1)
	}
	varPlus := (n-1)/n*w + b/n
	return math.Sqrt(varPlus / w)
}

// EffectiveSampleSize estimates the multi-chain ESS using Geyer's initial monotone
// sequence over the averaged autocorrelations.
func EffectiveSampleSize(chains [][]float64) float64 {
	m := len(chains)
	if m == 0 {
		return 0
	}
	n := len(chains[0])
	for _, c := range chains {
		if len(c) < n {
			n = len(c)
		}
	}
	if n < 4 {
		return math.NaN()
	}

	means := make([]float64, m)
	w := 0.0
	for i, c := range chains {
		mu, v := stat.MeanVariance(c[:n], nil)
		means[i] = mu
		w += v
	}
	w /= float64(m)
	varPlus := w * float64(n-1) / float64(n)
	if m > 1 {
		varPlus += stat.Variance(means, nil)
	}
	total := float64(m * n)
	if varPlus == 0 {
		return total
	}

	rho := func(lag int) float64 {
		acov := 0.0
		for i, c := range chains {
			s := 0.0
			for t := 0; t+lag < n; t++ {
				s += (c[t] - means[i]) * (c[t+lag] - means[i])
			}
			acov += s / float64(n)
		}
		acov /= float64(m)
		return 1 - (w-acov)/varPlus
	}

	tau := -1.0
	prev := math.Inf(1)
	for lag := 0; lag+1 < n; lag += 2 {
		var p float64
		if lag == 0 {
			p = 1 + rho(1)
		} else {
			p = rho(lag) + rho(lag+1)
		}
		if p <= 0 {
			break
		}
		p = math.Min(p, prev)
		prev = p
		tau += 2 * p
	}
	tau = math.Max(tau, 1/math.Log10(total))
	return total / tau
}

func column(draws [][][]float64, k int) [][]float64 {
	out := make([][]float64, len(draws))
	for c, chain := range draws {
		out[c] = make([]float64, len(chain))
		for i, d := range chain {
			out[c][i] = d[k]
		}
	}
	return out
}

func pool(chains [][]float64) []float64 {
	var out []float64
	for _, c := range chains {
		out = append(out, c...)
	}
	return out
}

func finite(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > unbounded:
		return unbounded
	case v < -unbounded:
		return -unbounded
	}
	return v
}
