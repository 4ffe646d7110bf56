package harj

import (
	"fmt"
	"math"
)

// LatentInputs is the number of leading feature columns feeding the latent recursion.
const LatentInputs = 3

// Prior scales. Scalar priors are parameterised by standard deviation, the
// multivariate ones by the diagonal of their covariance.
const (
	latentSD     = 1.0
	gammaVar     = 1.0
	interceptSD  = 5.0
	betaVar      = 5.0
	thetaSD      = 5.0
	sigmaPriorSD = 100.0
	maxLogSigma  = 50.0
	minLogSigma  = -50.0
)

// Params is the constrained parameter set of the HAR-Jumps model.
type Params struct {
	Mu1    float64
	Gamma  [LatentInputs]float64
	Beta1  float64
	Alpha1 float64
	Alpha  float64
	Beta   []float64
	Theta  float64
	Sigma  float64 // observation variance; the likelihood uses sqrt(Sigma)
}

// Layout maps Params to and from the flat unconstrained vector used by samplers:
// [mu1, gamma(3), beta1, alpha1, alpha, beta(F), theta, log_sigma].
type Layout struct {
	Features int
}

const (
	idxMu1    = 0
	idxGamma  = 1
	idxBeta1  = idxGamma + LatentInputs
	idxAlpha1 = idxBeta1 + 1
	idxAlpha  = idxAlpha1 + 1
	idxBeta   = idxAlpha + 1
)

func (l Layout) idxTheta() int    { return idxBeta + l.Features }
func (l Layout) idxLogSigma() int { return idxBeta + l.Features + 1 }

// Dim is the length of the unconstrained vector.
func (l Layout) Dim() int { return idxBeta + l.Features + 2 }

// Names lists the reported (constrained) parameter names in vector order.
func (l Layout) Names() []string {
	names := []string{"mu1"}
	for i := 0; i < LatentInputs; i++ {
		names = append(names, fmt.Sprintf("gamma[%d]", i))
	}
	names = append(names, "beta1", "alpha1", "alpha")
	for i := 0; i < l.Features; i++ {
		names = append(names, fmt.Sprintf("beta[%d]", i))
	}
	return append(names, "theta", "sigma")
}

// Unpack reads an unconstrained vector.
func (l Layout) Unpack(u []float64) Params {
	p := Params{
		Mu1:    u[idxMu1],
		Beta1:  u[idxBeta1],
		Alpha1: u[idxAlpha1],
		Alpha:  u[idxAlpha],
		Beta:   append([]float64(nil), u[idxBeta:idxBeta+l.Features]...),
		Theta:  u[l.idxTheta()],
		Sigma:  math.Exp(u[l.idxLogSigma()]),
	}
	copy(p.Gamma[:], u[idxGamma:idxGamma+LatentInputs])
	return p
}

// Pack writes Params into an unconstrained vector. Sigma must be positive.
func (l Layout) Pack(p Params) []float64 {
	u := make([]float64, l.Dim())
	u[idxMu1] = p.Mu1
	copy(u[idxGamma:], p.Gamma[:])
	u[idxBeta1] = p.Beta1
	u[idxAlpha1] = p.Alpha1
	u[idxAlpha] = p.Alpha
	copy(u[idxBeta:], p.Beta)
	u[l.idxTheta()] = p.Theta
	u[l.idxLogSigma()] = math.Log(p.Sigma)
	return u
}

// Constrain maps an unconstrained vector to the reported scale, in Names order.
func (l Layout) Constrain(u []float64) []float64 {
	out := append([]float64(nil), u...)
	out[l.idxLogSigma()] = math.Exp(u[l.idxLogSigma()])
	return out
}

// FromConstrained reads a vector in Names order.
func (l Layout) FromConstrained(v []float64) Params {
	u := append([]float64(nil), v...)
	u[l.idxLogSigma()] = math.Log(v[l.idxLogSigma()])
	return l.Unpack(u)
}
