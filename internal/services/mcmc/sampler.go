// Package mcmc provides posterior samplers behind a narrow interface: a target
// exposes its dimension, log density and gradient, and a sampler returns
// per-chain draws on the unconstrained scale.
package mcmc

import (
	"context"
	"fmt"
	"math/rand/v2"

	"JumpVol/internal/domain/models"
)

// Sampler kinds accepted by New.
const (
	KindNUTS       = "nuts"
	KindMetropolis = "metropolis"
)

// Target is a differentiable log density on R^Dim.
type Target interface {
	Dim() int
	LogDensity(x []float64) float64
	// Gradient writes ∇LogDensity(x) into dst (allocating when dst is nil) and returns it.
	Gradient(dst, x []float64) []float64
}

// RunConfig controls a sampling run.
type RunConfig struct {
	Chains       int
	Warmup       int
	Draws        int
	Seed         uint64
	TargetAccept float64
	MaxTreeDepth int
}

func (c RunConfig) withDefaults() RunConfig {
	if c.TargetAccept <= 0 || c.TargetAccept >= 1 {
		c.TargetAccept = 0.8
	}
	if c.MaxTreeDepth <= 0 {
		c.MaxTreeDepth = 10
	}
	return c
}

func (c RunConfig) validate(dim int, init [][]float64) error {
	if c.Chains < 1 {
		return fmt.Errorf("mcmc: chains must be positive, got %d", c.Chains)
	}
	if c.Draws < 1 {
		return fmt.Errorf("mcmc: draws must be positive, got %d", c.Draws)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("mcmc: warmup must not be negative, got %d", c.Warmup)
	}
	if len(init) != c.Chains {
		return fmt.Errorf("mcmc: got %d initial points for %d chains", len(init), c.Chains)
	}
	for i, x := range init {
		if len(x) != dim {
			return fmt.Errorf("mcmc: initial point %d has length %d, want %d", i, len(x), dim)
		}
	}
	return nil
}

// Samples holds post-warmup draws on the unconstrained scale: Draws[chain][draw][dim].
type Samples struct {
	Draws [][][]float64
	Stats []models.ChainStats
}

// Sampler draws from a Target.
type Sampler interface {
	Name() string
	Sample(ctx context.Context, target Target, init [][]float64, cfg RunConfig) (*Samples, error)
}

// New returns the sampler registered under kind.
func New(kind string) (Sampler, error) {
	switch kind {
	case "", KindNUTS:
		return NewNUTS(), nil
	case KindMetropolis:
		return NewMetropolis(), nil
	default:
		return nil, fmt.Errorf("mcmc: unknown sampler %q", kind)
	}
}

// NewRand returns the independent random stream of one chain.
func NewRand(seed uint64, chain int) *rand.Rand {
	return rand.New(chainSource(seed, chain))
}

func chainSource(seed uint64, chain int) *rand.PCG {
	return rand.NewPCG(seed, 0x9e3779b97f4a7c15^uint64(chain+1))
}

// Jitter returns one initial point per chain, each coordinate uniform in (-width, width).
func Jitter(dim, chains int, width float64, seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, 0))
	out := make([][]float64, chains)
	for c := range out {
		out[c] = make([]float64, dim)
		for i := range out[c] {
			out[c][i] = (2*rng.Float64() - 1) * width
		}
	}
	return out
}
