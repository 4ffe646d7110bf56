package analytics

import (
	"context"
	"fmt"

	"JumpVol/internal/domain/models"
	domsvc "JumpVol/internal/domain/service"
	"JumpVol/internal/services/harj"
	"JumpVol/internal/services/mcmc"
)

// FitOptions selects the sampler and run length of a fit.
type FitOptions struct {
	Kind         string
	Chains       int
	Warmup       int
	Draws        int
	Seed         uint64
	TargetAccept float64
	MaxTreeDepth int
}

// RunConfig converts the options to a sampler run configuration.
func (o FitOptions) RunConfig() mcmc.RunConfig {
	return mcmc.RunConfig{
		Chains:       o.Chains,
		Warmup:       o.Warmup,
		Draws:        o.Draws,
		Seed:         o.Seed,
		TargetAccept: o.TargetAccept,
		MaxTreeDepth: o.MaxTreeDepth,
	}
}

// HARJFitter adapts the HAR-Jumps model and an MCMC sampler to the domain
// PosteriorFitter interface.
type HARJFitter struct {
	sampler mcmc.Sampler
	opts    FitOptions
}

func NewHARJFitter(opts FitOptions) (*HARJFitter, error) {
	s, err := mcmc.New(opts.Kind)
	if err != nil {
		return nil, err
	}
	return &HARJFitter{sampler: s, opts: opts}, nil
}

// Name reports the sampler kind.
func (f *HARJFitter) Name() string { return f.sampler.Name() }

// Options returns the configured run.
func (f *HARJFitter) Options() FitOptions { return f.opts }

func (f *HARJFitter) Fit(ctx context.Context, train models.FeatureTable) (*models.Posterior, error) {
	post, err := harj.Fit(ctx, f.sampler, train, f.opts.RunConfig())
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", f.sampler.Name(), err)
	}
	return post, nil
}

// Ensure adapter implements domain interface
var _ domsvc.PosteriorFitter = (*HARJFitter)(nil)
