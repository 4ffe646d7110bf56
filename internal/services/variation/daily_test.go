package variation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"JumpVol/internal/domain/models"
)

func bar(ts string, c float64) models.Bar {
	t, err := time.Parse("2006-01-02 15:04:05", ts)
	if err != nil {
		panic(err)
	}
	return models.Bar{Time: t, Close: c}
}

func TestGroupByDayOrdersDaysAndPrices(t *testing.T) {
	bars := []models.Bar{
		bar("2024-01-03 09:31:00", 11),
		bar("2024-01-02 09:32:00", 2),
		bar("2024-01-02 09:31:00", 1),
		bar("2024-01-03 09:30:00", 10),
	}
	days := GroupByDay(bars)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-01-02", days[0].Key())
	assert.Equal(t, []float64{1, 2}, days[0].Prices)
	assert.Equal(t, "2024-01-03", days[1].Key())
	assert.Equal(t, []float64{10, 11}, days[1].Prices)
}

func TestComputeAllExcludesShortAndInvalidDays(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }
	days := []models.DaySeries{
		{Date: d(2), Prices: []float64{1, 1.01, 1.02, 1.01, 1.0, 1.02}},
		{Date: d(3), Prices: []float64{1, 1.01}},
		{Date: d(4), Prices: []float64{1, 1.01, 0, 1.01, 1.0}},
		{Date: d(5), Prices: []float64{2, 2.01, 2.02, 2.01, 2.0}},
	}
	out, excluded, err := ComputeAll(days, 390)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, d(2), out[0].Date)
	assert.Equal(t, d(5), out[1].Date)
	require.Len(t, excluded, 2)
	assert.Equal(t, d(3), excluded[0].Date)
	assert.Equal(t, d(4), excluded[1].Date)
}
