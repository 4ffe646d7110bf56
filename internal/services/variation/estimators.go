// Package variation computes daily realized measures from intraday prices.
package variation

import (
	"errors"
	"math"

	"JumpVol/internal/domain/models"
)

// Minimum observations per day for each estimator.
const (
	MinObsRV = 2
	MinObsBV = 3
	MinObsQV = 5
)

// LogReturns computes r_t = ln(P_t) - ln(P_{t-1}). Every price must be strictly positive.
func LogReturns(prices []float64) ([]float64, error) {
	if len(prices) < 2 {
		return nil, models.NewDomainError("log returns", "need at least 2 prices, got %d", len(prices))
	}
	out := make([]float64, len(prices)-1)
	prev := 0.0
	for i, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, models.NewDomainError("log returns", "price %d is not strictly positive (%g)", i, p)
		}
		lp := math.Log(p)
		if i > 0 {
			out[i-1] = lp - prev
		}
		prev = lp
	}
	return out, nil
}

// RealizedVariance returns the sum of squared log returns.
func RealizedVariance(prices []float64) (float64, error) {
	if len(prices) < MinObsRV {
		return 0, models.NewDomainError("rv", "need %d observations, got %d", MinObsRV, len(prices))
	}
	r, err := LogReturns(prices)
	if err != nil {
		return 0, err
	}
	return rv(r), nil
}

// BipowerVariation returns the sum of products of adjacent absolute log returns.
func BipowerVariation(prices []float64) (float64, error) {
	if len(prices) < MinObsBV {
		return 0, models.NewDomainError("bv", "need %d observations, got %d", MinObsBV, len(prices))
	}
	r, err := LogReturns(prices)
	if err != nil {
		return 0, err
	}
	return bv(r), nil
}

// QuadpowerVariation returns delta times the sum of products of four adjacent absolute
// log returns. delta is the nominal number of observations per day.
func QuadpowerVariation(prices []float64, delta int) (float64, error) {
	if len(prices) < MinObsQV {
		return 0, models.NewDomainError("qv", "need %d observations, got %d", MinObsQV, len(prices))
	}
	if delta <= 0 {
		return 0, models.NewDomainError("qv", "delta must be positive, got %d", delta)
	}
	r, err := LogReturns(prices)
	if err != nil {
		return 0, err
	}
	return qv(r, delta), nil
}

// Compute returns RV, BV and QV for a single day, computing the returns once.
func Compute(day models.DaySeries, delta int) (models.DailyVariation, error) {
	if len(day.Prices) < MinObsQV {
		return models.DailyVariation{}, models.NewDomainError("variation",
			"need %d observations, got %d", MinObsQV, len(day.Prices)).WithDate(day.Date)
	}
	if delta <= 0 {
		return models.DailyVariation{}, models.NewDomainError("variation", "delta must be positive, got %d", delta)
	}
	r, err := LogReturns(day.Prices)
	if err != nil {
		var de *models.DomainError
		if errors.As(err, &de) {
			return models.DailyVariation{}, de.WithDate(day.Date)
		}
		return models.DailyVariation{}, err
	}
	return models.DailyVariation{
		Date: day.Date,
		RV:   rv(r),
		BV:   bv(r),
		QV:   qv(r, delta),
	}, nil
}

func rv(r []float64) float64 {
	s := 0.0
	for _, x := range r {
		s += x * x
	}
	return s
}

func bv(r []float64) float64 {
	s := 0.0
	for t := 1; t < len(r); t++ {
		s += math.Abs(r[t-1]) * math.Abs(r[t])
	}
	return s
}

func qv(r []float64, delta int) float64 {
	s := 0.0
	for t := 3; t < len(r); t++ {
		s += math.Abs(r[t-3]) * math.Abs(r[t-2]) * math.Abs(r[t-1]) * math.Abs(r[t])
	}
	return float64(delta) * s
}
