package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/likebank/likebank/internal/clock"
)

func TestManual(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)
	assert.Equal(t, start, clk.Now())

	clk.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clk.Now())

	later := start.Add(time.Hour)
	clk.Set(later)
	assert.Equal(t, later, clk.Now())
}

func TestSystemTracksWallClock(t *testing.T) {
	before := time.Now()
	got := clock.System{}.Now()
	after := time.Now()
	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}
