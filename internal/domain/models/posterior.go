package models

import "time"

// ParamSummary is one row of the posterior summary table.
type ParamSummary struct {
	Name  string  `json:"name"`
	Mean  float64 `json:"mean"`
	SD    float64 `json:"sd"`
	Q03   float64 `json:"q03"`
	Q97   float64 `json:"q97"`
	ESS   float64 `json:"ess"`
	RHat  float64 `json:"r_hat"`
	Draws int     `json:"draws"`
}

// ChainStats reports per-chain sampler behaviour.
type ChainStats struct {
	Chain         int     `json:"chain"`
	Divergences   int     `json:"divergences"`
	MeanAccept    float64 `json:"mean_accept"`
	StepSize      float64 `json:"step_size"`
	MeanTreeDepth float64 `json:"mean_tree_depth"`
}

// Warning kinds attached to Diagnostics.
const (
	WarnDivergence = "divergence"
	WarnRHat       = "r_hat"
	WarnLowESS     = "low_ess"
)

// SamplerWarning flags a non-fatal convergence concern.
type SamplerWarning struct {
	Kind    string `json:"kind"`
	Param   string `json:"param,omitempty"`
	Chain   int    `json:"chain,omitempty"`
	Message string `json:"message"`
}

// Diagnostics aggregates convergence information across chains.
type Diagnostics struct {
	Chains   []ChainStats     `json:"chains"`
	Warnings []SamplerWarning `json:"warnings,omitempty"`
}

// Converged reports whether no warning was raised.
func (d Diagnostics) Converged() bool { return len(d.Warnings) == 0 }

// Posterior holds constrained-scale draws per chain: Draws[chain][draw][param].
type Posterior struct {
	Params      []string       `json:"params"`
	Draws       [][][]float64  `json:"-"`
	Summary     []ParamSummary `json:"summary"`
	Diagnostics Diagnostics    `json:"diagnostics"`
}

// Samples returns the pooled draws of one parameter, chain-major.
func (p *Posterior) Samples(name string) []float64 {
	idx := -1
	for i, n := range p.Params {
		if n == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	var out []float64
	for _, chain := range p.Draws {
		for _, d := range chain {
			out = append(out, d[idx])
		}
	}
	return out
}

// Lookup returns the summary row of a parameter.
func (p *Posterior) Lookup(name string) (ParamSummary, bool) {
	for _, s := range p.Summary {
		if s.Name == name {
			return s, true
		}
	}
	return ParamSummary{}, false
}

// ForecastScore measures the posterior-mean forecast of log next-day RV on held-out rows.
type ForecastScore struct {
	Rows int     `json:"rows"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
}

// FitReport is what the pipeline hands to reporting sinks.
type FitReport struct {
	Symbol      string         `json:"symbol"`
	Fingerprint string         `json:"fingerprint"`
	FittedAt    time.Time      `json:"fitted_at"`
	Sampler     string         `json:"sampler"`
	Chains      int            `json:"chains"`
	Warmup      int            `json:"warmup"`
	Draws       int            `json:"draws"`
	TrainRows   int            `json:"train_rows"`
	TestRows    int            `json:"test_rows"`
	Excluded    []ExcludedDay  `json:"excluded,omitempty"`
	Summary     []ParamSummary `json:"summary"`
	Diagnostics Diagnostics    `json:"diagnostics"`
	Test        ForecastScore  `json:"test"`
	Elapsed     time.Duration  `json:"elapsed"`
	Cached      bool           `json:"cached"`
}
