package harj

import (
	"context"
	"math"

	"JumpVol/internal/domain/models"
	"JumpVol/internal/services/mcmc"
)

// InitJitter bounds the uniform jitter of initial points around zero.
const InitJitter = 0.5

// Fit draws from the posterior of the model on the training table and returns the
// constrained draws with their summary and diagnostics. Convergence problems are
// reported through Diagnostics, never as an error.
func Fit(ctx context.Context, sampler mcmc.Sampler, train models.FeatureTable, cfg mcmc.RunConfig) (*models.Posterior, error) {
	m, err := NewModel(train)
	if err != nil {
		return nil, err
	}
	init := mcmc.Jitter(m.Dim(), cfg.Chains, InitJitter, cfg.Seed)
	for _, x := range init {
		x[m.layout.idxLogSigma()] = 0
	}
	samples, err := sampler.Sample(ctx, m, init, cfg)
	if err != nil {
		return nil, err
	}
	return m.Posterior(samples), nil
}

// Posterior maps unconstrained samples to the reported scale and summarises them.
func (m *Model) Posterior(s *mcmc.Samples) *models.Posterior {
	names := m.layout.Names()
	draws := make([][][]float64, len(s.Draws))
	for c, chain := range s.Draws {
		draws[c] = make([][]float64, len(chain))
		for i, u := range chain {
			draws[c][i] = m.layout.Constrain(u)
		}
	}
	summary, diag := mcmc.Summarize(names, draws, s.Stats)
	return &models.Posterior{Params: names, Draws: draws, Summary: summary, Diagnostics: diag}
}

// PointEstimate returns the parameters at their posterior means.
func PointEstimate(post *models.Posterior) Params {
	l := Layout{Features: models.FeatureCount}
	v := make([]float64, l.Dim())
	for i, name := range l.Names() {
		if s, ok := post.Lookup(name); ok {
			v[i] = s.Mean
		}
	}
	if v[l.idxLogSigma()] <= 0 {
		v[l.idxLogSigma()] = 1
	}
	return l.FromConstrained(v)
}

// Evaluate scores the point forecast on the test rows. The latent recursion runs
// over train and test together so λ carries over the split boundary.
func Evaluate(p Params, train, test models.FeatureTable) models.ForecastScore {
	all := models.FeatureTable{Rows: append(append([]models.FeatureRow(nil), train.Rows...), test.Rows...)}
	x, y, jumps := all.Design()
	mean := Mean(p, x, jumps)

	var score models.ForecastScore
	var se, ae float64
	for t := train.Len(); t < all.Len(); t++ {
		r := y[t] - mean[t]
		se += r * r
		ae += math.Abs(r)
		score.Rows++
	}
	if score.Rows > 0 {
		score.RMSE = math.Sqrt(se / float64(score.Rows))
		score.MAE = ae / float64(score.Rows)
	}
	return score
}
