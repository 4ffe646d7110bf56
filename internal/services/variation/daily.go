package variation

import (
	"errors"
	"sort"
	"time"

	"JumpVol/internal/domain/models"
)

// GroupByDay buckets bars by calendar date (in the bars' own location) and returns the
// days in ascending order. Within a day the input order is kept after a stable sort by time.
func GroupByDay(bars []models.Bar) []models.DaySeries {
	byDay := make(map[string][]models.Bar)
	dates := make(map[string]time.Time)
	for _, b := range bars {
		key := b.Time.Format(models.DayLayout)
		byDay[key] = append(byDay[key], b)
		if _, ok := dates[key]; !ok {
			y, m, d := b.Time.Date()
			dates[key] = time.Date(y, m, d, 0, 0, 0, 0, b.Time.Location())
		}
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.DaySeries, 0, len(keys))
	for _, k := range keys {
		day := byDay[k]
		sort.SliceStable(day, func(i, j int) bool { return day[i].Time.Before(day[j].Time) })
		prices := make([]float64, len(day))
		for i, b := range day {
			prices[i] = b.Close
		}
		out = append(out, models.DaySeries{Date: dates[k], Prices: prices})
	}
	return out
}

// ComputeAll runs Compute over every day. Days failing with a DomainError are excluded
// and reported; any other error aborts.
func ComputeAll(days []models.DaySeries, delta int) ([]models.DailyVariation, []models.ExcludedDay, error) {
	out := make([]models.DailyVariation, 0, len(days))
	var excluded []models.ExcludedDay
	for _, d := range days {
		v, err := Compute(d, delta)
		if err != nil {
			if errors.Is(err, models.ErrDomain) {
				excluded = append(excluded, models.ExcludedDay{Date: d.Date, Reason: err.Error()})
				continue
			}
			return nil, nil, err
		}
		out = append(out, v)
	}
	return out, excluded, nil
}
