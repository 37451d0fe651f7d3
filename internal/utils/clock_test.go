package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToday(t *testing.T) {
	clock := &MockClock{FixedNow: time.Date(2024, 6, 5, 23, 30, 0, 0, time.UTC)}
	warsaw, _ := time.LoadLocation("Europe/Warsaw")

	assert.Equal(t, "2024-06-05", Today(clock, time.UTC).Key())
	assert.Equal(t, "2024-06-06", Today(clock, warsaw).Key())

	clock.Advance(time.Hour)
	assert.Equal(t, "2024-06-06", Today(clock, time.UTC).Key())
}
