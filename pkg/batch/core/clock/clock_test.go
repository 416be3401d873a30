package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/sheetflow/pkg/batch/core/clock"
)

func TestIsExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	exp := clock.ExpiresAt(now, time.Hour)

	assert.Equal(t, now.Add(time.Hour), exp)
	assert.False(t, clock.IsExpired(exp, now))
	assert.False(t, clock.IsExpired(exp, exp.Add(-time.Nanosecond)))
	assert.True(t, clock.IsExpired(exp, exp), "a lease is expired at its expiry instant")
	assert.True(t, clock.IsExpired(exp, exp.Add(time.Second)))
}

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("JST", 9*3600))
	c := clock.NewManualClock(start)

	assert.Equal(t, time.UTC, c.Now().Location())
	assert.True(t, c.Now().Equal(start))

	c.Advance(5 * time.Hour)
	assert.True(t, c.Now().Equal(start.Add(5*time.Hour)))

	c.Set(start)
	assert.True(t, c.Now().Equal(start))
}

func TestSystemClockIsUTC(t *testing.T) {
	now := clock.NewSystemClock().Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Zero(t, now.Nanosecond()%1000)
}
