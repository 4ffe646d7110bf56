// Package harj defines the HAR-Jumps latent-state regression: its parameter layout,
// priors, latent volatility memory and log joint density.
package harj

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"JumpVol/internal/domain/models"
)

var logSqrt2Pi = 0.5 * math.Log(2*math.Pi)

// Latent computes the volatility memory series
//
//	λ_1 = μ1
//	λ_t = μ1 + γ·x_{t-1}[0:3] + β1·λ_{t-1} + α1·jump_{t-1}
func Latent(p Params, x [][]float64, jumps []float64) []float64 {
	lam := make([]float64, len(x))
	for t := range x {
		if t == 0 {
			lam[t] = p.Mu1
			continue
		}
		lam[t] = nextLatent(p, x[t-1], jumps[t-1], lam[t-1])
	}
	return lam
}

func nextLatent(p Params, prev []float64, prevJump, prevLam float64) float64 {
	v := p.Mu1 + p.Beta1*prevLam + p.Alpha1*prevJump
	for k := 0; k < LatentInputs; k++ {
		v += p.Gamma[k] * prev[k]
	}
	return v
}

// Mean returns the conditional mean α + x_t·β + θ·λ_t of every observation.
func Mean(p Params, x [][]float64, jumps []float64) []float64 {
	lam := Latent(p, x, jumps)
	out := make([]float64, len(x))
	for t := range x {
		out[t] = p.Alpha + floats.Dot(x[t], p.Beta) + p.Theta*lam[t]
	}
	return out
}

// Model binds a training table to the HAR-Jumps log joint density. It is read-only
// after construction and safe for concurrent use by several chains.
type Model struct {
	layout Layout
	x      [][]float64
	y      []float64
	jumps  []float64
	fd     fd.Settings
}

// MinTrainRows is the smallest training table the λ recursion can be fitted on.
const MinTrainRows = 2

// NewModel builds the model from transformed feature rows.
func NewModel(train models.FeatureTable) (*Model, error) {
	if train.Len() < MinTrainRows {
		return nil, fmt.Errorf("%w: harj needs %d training rows, got %d",
			models.ErrInsufficientHistory, MinTrainRows, train.Len())
	}
	x, y, jumps := train.Design()
	return &Model{
		layout: Layout{Features: models.FeatureCount},
		x:      x,
		y:      y,
		jumps:  jumps,
		fd:     fd.Settings{Formula: fd.Central},
	}, nil
}

// Layout returns the parameter layout.
func (m *Model) Layout() Layout { return m.layout }

// Dim implements the sampler target.
func (m *Model) Dim() int { return m.layout.Dim() }

// LogPrior is the log prior density of an unconstrained vector, including the
// log-Jacobian of σ = exp(s), up to an additive constant.
func (m *Model) LogPrior(u []float64) float64 {
	p := m.layout.Unpack(u)
	lp := -0.5 * (sq(p.Mu1/latentSD) + sq(p.Beta1/latentSD) + sq(p.Alpha1/latentSD))
	for _, g := range p.Gamma {
		lp -= 0.5 * g * g / gammaVar
	}
	lp -= 0.5 * sq(p.Alpha/interceptSD)
	for _, b := range p.Beta {
		lp -= 0.5 * b * b / betaVar
	}
	lp -= 0.5 * sq(p.Theta/thetaSD)
	lp -= 0.5 * sq(p.Sigma/sigmaPriorSD)
	return lp + u[m.layout.idxLogSigma()]
}

// LogLikelihood is Σ log N(y_t | α + x_t·β + θλ_t, sqrt(σ)).
func (m *Model) LogLikelihood(u []float64) float64 {
	p := m.layout.Unpack(u)
	logSigma := u[m.layout.idxLogSigma()]
	ll := 0.0
	lam := p.Mu1
	for t := range m.y {
		if t > 0 {
			lam = nextLatent(p, m.x[t-1], m.jumps[t-1], lam)
		}
		r := m.y[t] - (p.Alpha + floats.Dot(m.x[t], p.Beta) + p.Theta*lam)
		ll -= logSqrt2Pi + 0.5*logSigma + r*r/(2*p.Sigma)
	}
	return ll
}

// LogDensity is the unnormalised log posterior. Non-finite values collapse to -Inf.
func (m *Model) LogDensity(u []float64) float64 {
	s := u[m.layout.idxLogSigma()]
	if s > maxLogSigma || s < minLogSigma {
		return math.Inf(-1)
	}
	v := m.LogPrior(u) + m.LogLikelihood(u)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.Inf(-1)
	}
	return v
}

// Gradient fills dst with a central finite-difference gradient of LogDensity.
func (m *Model) Gradient(dst, u []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(u))
	}
	settings := m.fd
	return fd.Gradient(dst, m.LogDensity, u, &settings)
}

func sq(x float64) float64 { return x * x }
