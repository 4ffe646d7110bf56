package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"JumpVol/internal/domain/models"
)

func table(n int) models.FeatureTable {
	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]models.FeatureRow, n)
	for i := range rows {
		v := -9 + 0.05*float64(i%7)
		rows[i] = models.FeatureRow{
			Date:           start.AddDate(0, 0, i),
			NextDayRV:      v,
			Continuous:     v,
			ContinuousMA5:  v,
			ContinuousMA21: v,
		}
	}
	return models.FeatureTable{Rows: rows}
}

func TestHARJFitter(t *testing.T) {
	f, err := NewHARJFitter(FitOptions{Kind: "metropolis", Chains: 2, Warmup: 40, Draws: 20, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, "metropolis", f.Name())

	post, err := f.Fit(context.Background(), table(25))
	require.NoError(t, err)
	assert.Len(t, post.Summary, 15)
	assert.Len(t, post.Diagnostics.Chains, 2)
}

func TestHARJFitterErrors(t *testing.T) {
	_, err := NewHARJFitter(FitOptions{Kind: "hmc"})
	assert.Error(t, err)

	f, err := NewHARJFitter(FitOptions{Kind: "nuts", Chains: 1, Warmup: 5, Draws: 5})
	require.NoError(t, err)
	_, err = f.Fit(context.Background(), table(1))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fit(ctx, table(25))
	assert.True(t, errors.Is(err, models.ErrSamplingCanceled))
}
