package mcmc

import (
	"context"
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"JumpVol/internal/domain/models"
)

type chainFunc func(ctx context.Context, chain int, rng *rand.Rand, init []float64) ([][]float64, models.ChainStats, error)

// runChains runs one goroutine per chain. Chains share nothing mutable; each writes
// only its own slot and results are merged after Wait.
func runChains(ctx context.Context, cfg RunConfig, init [][]float64, fn chainFunc) (*Samples, error) {
	out := &Samples{
		Draws: make([][][]float64, cfg.Chains),
		Stats: make([]models.ChainStats, cfg.Chains),
	}
	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < cfg.Chains; c++ {
		g.Go(func() error {
			draws, stats, err := fn(gctx, c, NewRand(cfg.Seed, c), append([]float64(nil), init[c]...))
			if err != nil {
				return fmt.Errorf("chain %d: %w", c, err)
			}
			stats.Chain = c
			out.Draws[c] = draws
			out.Stats[c] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrSamplingCanceled, ctxErr)
		}
		return nil, err
	}
	return out, nil
}
