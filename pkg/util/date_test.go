package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	for _, in := range []string{
		"2024-10-10T10:10:10Z",
		"2024-10-10 10:10:10",
		strconv.FormatInt(want.Unix(), 10),
	} {
		got, ok := ParseTime(in)
		require.True(t, ok, in)
		assert.True(t, got.Equal(want), in)
	}

	day, ok := ParseTime("2024-10-10")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC), day)

	_, ok = ParseTime("yesterday")
	assert.False(t, ok)
	_, ok = ParseTime("")
	assert.False(t, ok)
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.Equal(t, def, ParseTimeDefault("", def))
	assert.Equal(t, def, ParseTimeDefault("nope", def))
}

func TestEndOfDay(t *testing.T) {
	day := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 10, 10, 23, 59, 59, 0, time.UTC), EndOfDay(day))

	noon := day.Add(12 * time.Hour)
	assert.Equal(t, noon, EndOfDay(noon))
	assert.True(t, EndOfDay(time.Time{}).IsZero())
}
