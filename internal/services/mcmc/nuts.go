package mcmc

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"JumpVol/internal/domain/models"
)

const (
	maxEnergyError = 1000.0

	// dual averaging
	daGamma = 0.05
	daT0    = 10.0
	daKappa = 0.75

	// diagonal mass adaptation window, as fractions of warmup
	massWindowStart = 0.15
	massWindowEnd   = 0.85
	minMassWindow   = 20
)

// NUTS is the efficient No-U-Turn sampler with dual-averaging step size and a
// diagonal inverse mass matrix estimated during warmup.
type NUTS struct{}

// NewNUTS returns a NUTS sampler.
func NewNUTS() *NUTS { return &NUTS{} }

// Name implements Sampler.
func (*NUTS) Name() string { return KindNUTS }

// Sample implements Sampler.
func (n *NUTS) Sample(ctx context.Context, target Target, init [][]float64, cfg RunConfig) (*Samples, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(target.Dim(), init); err != nil {
		return nil, err
	}
	return runChains(ctx, cfg, init, func(ctx context.Context, chain int, rng *rand.Rand, x0 []float64) ([][]float64, models.ChainStats, error) {
		c := &nutsChain{
			target:   target,
			rng:      rng,
			invMass:  ones(target.Dim()),
			maxDepth: cfg.MaxTreeDepth,
		}
		return c.run(ctx, cfg, x0)
	})
}

// point is a phase-space state with its cached density and gradient.
type point struct {
	q    []float64
	p    []float64
	grad []float64
	logp float64
}

type nutsChain struct {
	target   Target
	rng      *rand.Rand
	invMass  []float64
	maxDepth int
}

type dualAverage struct {
	mu, hBar, logEps, logEpsBar float64
	m                           int
	delta                       float64
}

func newDualAverage(eps, delta float64) *dualAverage {
	return &dualAverage{mu: math.Log(10 * eps), logEps: math.Log(eps), delta: delta}
}

func (d *dualAverage) update(accept float64) float64 {
	d.m++
	m := float64(d.m)
	w := 1 / (m + daT0)
	d.hBar = (1-w)*d.hBar + w*(d.delta-accept)
	d.logEps = d.mu - math.Sqrt(m)/daGamma*d.hBar
	mk := math.Pow(m, -daKappa)
	d.logEpsBar = mk*d.logEps + (1-mk)*d.logEpsBar
	return math.Exp(d.logEps)
}

func (d *dualAverage) final() float64 { return math.Exp(d.logEpsBar) }

func (c *nutsChain) run(ctx context.Context, cfg RunConfig, x0 []float64) ([][]float64, models.ChainStats, error) {
	var stats models.ChainStats
	cur := point{q: x0, logp: c.target.LogDensity(x0)}
	cur.grad = c.target.Gradient(nil, x0)

	eps := c.findReasonableEpsilon(cur)
	da := newDualAverage(eps, cfg.TargetAccept)

	winStart := int(massWindowStart * float64(cfg.Warmup))
	winEnd := int(massWindowEnd * float64(cfg.Warmup))
	adaptMass := winEnd-winStart >= minMassWindow
	var acc *welford
	if adaptMass {
		acc = newWelford(c.target.Dim())
	}

	draws := make([][]float64, 0, cfg.Draws)
	var acceptSum, depthSum float64
	for it := 0; it < cfg.Warmup+cfg.Draws; it++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		next, accept, depth, divergent := c.transition(cur, eps)
		cur = next

		if it < cfg.Warmup {
			eps = da.update(accept)
			if adaptMass && it >= winStart && it < winEnd {
				acc.add(cur.q)
				if it == winEnd-1 {
					c.invMass = acc.regularized()
					eps = c.findReasonableEpsilon(cur)
					da = newDualAverage(eps, cfg.TargetAccept)
				}
			}
			if it == cfg.Warmup-1 {
				eps = da.final()
			}
			continue
		}
		if divergent {
			stats.Divergences++
		}
		acceptSum += accept
		depthSum += float64(depth)
		draws = append(draws, append([]float64(nil), cur.q...))
	}

	stats.StepSize = eps
	stats.MeanAccept = acceptSum / float64(cfg.Draws)
	stats.MeanTreeDepth = depthSum / float64(cfg.Draws)
	return draws, stats, nil
}

// transition performs one NUTS iteration (Hoffman & Gelman, algorithm 6).
func (c *nutsChain) transition(cur point, eps float64) (point, float64, int, bool) {
	start := cur
	start.p = c.momentum()
	h0 := c.joint(start)
	logU := h0 - c.rng.ExpFloat64()

	minus, plus := start, start
	next := cur
	n := 1
	var t tree
	depth := 0
	alpha, nAlpha := 0.0, 0
	divergent := false
	for s := true; s && depth < c.maxDepth; depth++ {
		if c.rng.IntN(2) == 0 {
			t = c.buildTree(minus, logU, -1, depth, eps, h0)
			minus = t.minus
		} else {
			t = c.buildTree(plus, logU, 1, depth, eps, h0)
			plus = t.plus
		}
		if t.s && c.rng.Float64() < float64(t.n)/float64(n) {
			next = t.prop
		}
		n += t.n
		alpha += t.alpha
		nAlpha += t.nAlpha
		divergent = divergent || t.divergent
		s = t.s && c.noUTurn(minus, plus)
	}
	accept := 0.0
	if nAlpha > 0 {
		accept = alpha / float64(nAlpha)
	}
	next.p = nil
	return next, accept, depth, divergent
}

type tree struct {
	minus, plus, prop point
	n                 int
	s                 bool
	alpha             float64
	nAlpha            int
	divergent         bool
}

func (c *nutsChain) buildTree(from point, logU float64, dir, depth int, eps, h0 float64) tree {
	if depth == 0 {
		q := c.leapfrog(from, float64(dir)*eps)
		h := c.joint(q)
		t := tree{minus: q, plus: q, prop: q, nAlpha: 1}
		if logU <= h {
			t.n = 1
		}
		t.s = logU < h+maxEnergyError
		t.divergent = !t.s
		if a := math.Exp(h - h0); a < 1 {
			t.alpha = a
		} else if !math.IsNaN(a) {
			t.alpha = 1
		}
		return t
	}

	t := c.buildTree(from, logU, dir, depth-1, eps, h0)
	if !t.s {
		return t
	}
	var u tree
	if dir < 0 {
		u = c.buildTree(t.minus, logU, dir, depth-1, eps, h0)
		t.minus = u.minus
	} else {
		u = c.buildTree(t.plus, logU, dir, depth-1, eps, h0)
		t.plus = u.plus
	}
	if total := t.n + u.n; total > 0 && c.rng.Float64() < float64(u.n)/float64(total) {
		t.prop = u.prop
	}
	t.alpha += u.alpha
	t.nAlpha += u.nAlpha
	t.n += u.n
	t.divergent = t.divergent || u.divergent
	t.s = u.s && c.noUTurn(t.minus, t.plus)
	return t
}

func (c *nutsChain) leapfrog(from point, eps float64) point {
	dim := len(from.q)
	p := make([]float64, dim)
	q := make([]float64, dim)
	for i := range p {
		p[i] = from.p[i] + 0.5*eps*from.grad[i]
		q[i] = from.q[i] + eps*c.invMass[i]*p[i]
	}
	grad := c.target.Gradient(nil, q)
	for i := range p {
		p[i] += 0.5 * eps * grad[i]
	}
	return point{q: q, p: p, grad: grad, logp: c.target.LogDensity(q)}
}

func (c *nutsChain) joint(x point) float64 {
	k := 0.0
	for i, v := range x.p {
		k += v * v * c.invMass[i]
	}
	h := x.logp - 0.5*k
	if math.IsNaN(h) {
		return math.Inf(-1)
	}
	return h
}

func (c *nutsChain) momentum() []float64 {
	p := make([]float64, len(c.invMass))
	for i := range p {
		p[i] = c.rng.NormFloat64() / math.Sqrt(c.invMass[i])
	}
	return p
}

func (c *nutsChain) noUTurn(minus, plus point) bool {
	dq := make([]float64, len(minus.q))
	floats.SubTo(dq, plus.q, minus.q)
	var a, b float64
	for i := range dq {
		a += dq[i] * c.invMass[i] * minus.p[i]
		b += dq[i] * c.invMass[i] * plus.p[i]
	}
	return a >= 0 && b >= 0
}

func (c *nutsChain) findReasonableEpsilon(cur point) float64 {
	eps := 1.0
	start := cur
	start.p = c.momentum()
	h0 := c.joint(start)
	ratio := func() float64 {
		d := c.joint(c.leapfrog(start, eps)) - h0
		if math.IsNaN(d) {
			return math.Inf(-1)
		}
		return d
	}
	r := ratio()
	a := -1.0
	if r > math.Log(0.5) {
		a = 1
	}
	for i := 0; i < 100 && a*r > -a*math.Ln2; i++ {
		eps *= math.Pow(2, a)
		r = ratio()
	}
	return eps
}

// welford accumulates per-coordinate running variance.
type welford struct {
	n    int
	mean []float64
	m2   []float64
}

func newWelford(dim int) *welford {
	return &welford{mean: make([]float64, dim), m2: make([]float64, dim)}
}

func (w *welford) add(x []float64) {
	w.n++
	for i, v := range x {
		d := v - w.mean[i]
		w.mean[i] += d / float64(w.n)
		w.m2[i] += d * (v - w.mean[i])
	}
}

// regularized shrinks the sample variance towards a small constant.
func (w *welford) regularized() []float64 {
	n := float64(w.n)
	out := make([]float64, len(w.m2))
	for i, m2 := range w.m2 {
		v := m2 / (n - 1)
		out[i] = (n/(n+5))*v + 1e-3*(5/(n+5))
	}
	return out
}

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
