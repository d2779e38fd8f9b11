package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBlockClock_BlockNumber(t *testing.T) {
	genesis := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want uint64
	}{
		{name: "before genesis", now: genesis.Add(-time.Minute), want: 0},
		{name: "at genesis", now: genesis, want: 0},
		{name: "partial block", now: genesis.Add(11 * time.Second), want: 1},
		{name: "one hour", now: genesis.Add(time.Hour), want: 600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBlockClock(genesis, 6*time.Second)
			c.now = func() time.Time { return tt.now }
			assert.Equal(t, tt.want, c.BlockNumber())
		})
	}
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(5)
	assert.Equal(t, uint64(5), c.BlockNumber())

	c.Advance(10)
	assert.Equal(t, uint64(15), c.BlockNumber())

	c.Set(3)
	assert.Equal(t, uint64(3), c.BlockNumber())
}
