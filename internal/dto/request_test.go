package dto_test

import (
	"testing"
	"time"

	"github.com/mitrakarya/lending/internal/dto"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	parsed := dto.ParseDate("2025-01-06")
	assert.Equal(t, 2025, parsed.Year())
	assert.Equal(t, time.January, parsed.Month())
	assert.Equal(t, 6, parsed.Day())

	assert.True(t, dto.ParseDate("").IsZero())
}

func TestDateOrToday_ExplicitValueWins(t *testing.T) {
	got := dto.DateOrToday("2025-03-02")
	assert.True(t, got.Equal(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)))
}

func TestDateOrToday_DefaultsToLocalMidnight(t *testing.T) {
	got := dto.DateOrToday("")
	now := time.Now()

	assert.Equal(t, now.Location(), got.Location())
	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, 0, got.Minute())
	assert.Equal(t, 0, got.Second())

	// Same local calendar day as now (allowing for a run across midnight).
	assert.False(t, got.After(now))
	assert.True(t, now.Sub(got) < 24*time.Hour)
}
