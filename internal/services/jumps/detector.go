// Package jumps implements the ratio jump test on daily realized measures.
package jumps

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"JumpVol/internal/domain/models"
)

// DefaultSignificance is the one-sided level of the jump test.
const DefaultSignificance = 0.01

var (
	theta = math.Pi*math.Pi/4 + math.Pi - 5
	mu1   = math.Sqrt(2 / math.Pi)
)

// Detector flags jump days. It is stateless once constructed.
type Detector struct {
	delta    int
	critical float64
}

// NewDetector builds a detector for delta intraday observations per day at the given
// significance level. A level outside (0, 1) falls back to DefaultSignificance.
func NewDetector(delta int, significance float64) (*Detector, error) {
	if delta <= 0 {
		return nil, models.NewDomainError("jump detector", "delta must be positive, got %d", delta)
	}
	if !(significance > 0 && significance < 1) {
		significance = DefaultSignificance
	}
	return &Detector{delta: delta, critical: distuv.UnitNormal.Quantile(significance)}, nil
}

// Critical returns the rejection threshold Φ⁻¹(significance).
func (d *Detector) Critical() float64 { return d.critical }

// Statistic returns the standardized jump statistic J. Strongly negative values indicate
// a jump.
func Statistic(delta int, rv, bv, qv float64) (float64, error) {
	if delta <= 0 {
		return 0, models.NewDomainError("jump statistic", "delta must be positive, got %d", delta)
	}
	if !(bv > 0) {
		return 0, models.NewDomainError("jump statistic", "bipower variation must be positive, got %g", bv)
	}
	if !(rv > 0) {
		return 0, models.NewDomainError("jump statistic", "realized variance must be positive, got %g", rv)
	}
	scale := math.Sqrt(float64(delta)) / math.Sqrt(theta*math.Max(1, qv/(bv*bv)))
	return scale * (bv/(mu1*mu1*rv) - 1), nil
}

// Classify tests one day and decomposes its variation.
func (d *Detector) Classify(v models.DailyVariation) (models.JumpRecord, error) {
	j, err := Statistic(d.delta, v.RV, v.BV, v.QV)
	if err != nil {
		var de *models.DomainError
		if errors.As(err, &de) {
			return models.JumpRecord{}, de.WithDate(v.Date)
		}
		return models.JumpRecord{}, err
	}
	rec := models.JumpRecord{DailyVariation: v, Statistic: j, IsJump: j <= d.critical}
	if rec.IsJump {
		rec.Magnitude = math.Max(v.RV-v.BV, 0)
		rec.Continuous = v.BV
	} else {
		rec.Continuous = v.RV
	}
	return rec, nil
}

// ClassifyAll runs Classify over a date-ordered series. Days with a DomainError are
// excluded and reported.
func (d *Detector) ClassifyAll(vs []models.DailyVariation) ([]models.JumpRecord, []models.ExcludedDay, error) {
	out := make([]models.JumpRecord, 0, len(vs))
	var excluded []models.ExcludedDay
	for _, v := range vs {
		rec, err := d.Classify(v)
		if err != nil {
			if errors.Is(err, models.ErrDomain) {
				excluded = append(excluded, models.ExcludedDay{Date: v.Date, Reason: err.Error()})
				continue
			}
			return nil, nil, err
		}
		out = append(out, rec)
	}
	return out, excluded, nil
}
