package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taskforge/orchestrator/internal/clock"
)

func TestFakeClock(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFake(base)

	assert.Equal(t, base, c.Now())

	c.Advance(5 * time.Minute)
	assert.Equal(t, base.Add(5*time.Minute), c.Now())

	other := time.Date(2030, 6, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	c.Set(other)
	assert.Equal(t, other.UTC(), c.Now())
}

func TestRealClockIsUTC(t *testing.T) {
	c := clock.NewReal()
	assert.Equal(t, time.UTC, c.Now().Location())
}
