package mcmc

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/samplemv"

	"JumpVol/internal/domain/models"
)

const (
	metropolisBatch  = 50
	metropolisTarget = 0.234
)

// Metropolis is a gradient-free random-walk sampler built on gonum's
// MetropolisHastingser. It runs in batches so cancellation is observed between
// them, tuning the proposal scale and diagonal covariance during warmup.
type Metropolis struct {
	batch int
}

// NewMetropolis returns a random-walk Metropolis sampler.
func NewMetropolis() *Metropolis { return &Metropolis{batch: metropolisBatch} }

// Name implements Sampler.
func (*Metropolis) Name() string { return KindMetropolis }

// logProber adapts a Target to distmv.LogProber.
type logProber struct{ t Target }

func (l logProber) LogProb(x []float64) float64 { return l.t.LogDensity(x) }

// Sample implements Sampler.
func (m *Metropolis) Sample(ctx context.Context, target Target, init [][]float64, cfg RunConfig) (*Samples, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(target.Dim(), init); err != nil {
		return nil, err
	}
	return runChains(ctx, cfg, init, func(ctx context.Context, _ int, rng *rand.Rand, x0 []float64) ([][]float64, models.ChainStats, error) {
		return m.chain(ctx, target, cfg, rng, x0)
	})
}

func (m *Metropolis) chain(ctx context.Context, target Target, cfg RunConfig, rng *rand.Rand, x0 []float64) ([][]float64, models.ChainStats, error) {
	var stats models.ChainStats
	dim := target.Dim()
	baseScale := 2.38 / math.Sqrt(float64(dim))
	scale := baseScale
	variance := ones(dim)
	half := cfg.Warmup / 2
	var acc *welford
	if half >= minMassWindow {
		acc = newWelford(dim)
	}

	x := x0
	draws := make([][]float64, 0, cfg.Draws)
	accepted := 0
	total := cfg.Warmup + cfg.Draws
	for done := 0; done < total; {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		n := min(m.batch, total-done)
		if done < cfg.Warmup {
			n = min(n, cfg.Warmup-done)
		}
		if acc != nil && done < half {
			n = min(n, half-done)
		}

		proposal, ok := samplemv.NewProposalNormal(diagonal(variance, scale*scale), rng)
		if !ok {
			return nil, stats, errors.New("proposal covariance is not positive definite")
		}
		batch := mat.NewDense(n, dim, nil)
		mh := samplemv.MetropolisHastingser{
			Initial:  x,
			Target:   logProber{t: target},
			Proposal: proposal,
			Src:      rng,
			BurnIn:   0,
			Rate:     1,
		}
		mh.Sample(batch)

		moved := 0
		prev := x
		for i := 0; i < n; i++ {
			row := batch.RawRowView(i)
			if !floats.Equal(row, prev) {
				moved++
			}
			prev = row
			switch {
			case done+i >= cfg.Warmup:
				draws = append(draws, append([]float64(nil), row...))
			case acc != nil && done+i < half:
				acc.add(row)
			}
		}
		x = append([]float64(nil), batch.RawRowView(n-1)...)

		if done < cfg.Warmup {
			scale *= math.Exp(float64(moved)/float64(n) - metropolisTarget)
			if acc != nil && done+n == half {
				variance = acc.regularized()
				scale = baseScale
			}
		} else {
			accepted += moved
		}
		done += n
	}

	stats.StepSize = scale
	stats.MeanAccept = float64(accepted) / float64(cfg.Draws)
	return draws, stats, nil
}

func diagonal(v []float64, scale float64) *mat.SymDense {
	s := mat.NewSymDense(len(v), nil)
	for i, x := range v {
		s.SetSym(i, i, x*scale)
	}
	return s
}
