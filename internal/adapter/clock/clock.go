package clock

import (
	"sync"
	"time"

	"github.com/simaogato/indexfund-backend/internal/domain"
)

// BlockClock derives the current block height from wall time: one block per
// BlockTime since Genesis
type BlockClock struct {
	Genesis   time.Time
	BlockTime time.Duration

	now func() time.Time
}

// NewBlockClock creates a new BlockClock instance
func NewBlockClock(genesis time.Time, blockTime time.Duration) *BlockClock {
	return &BlockClock{Genesis: genesis, BlockTime: blockTime, now: time.Now}
}

// BlockNumber returns the height reached at the current time. Times before
// genesis map to height 0.
func (c *BlockClock) BlockNumber() uint64 {
	elapsed := c.now().Sub(c.Genesis)
	if elapsed <= 0 || c.BlockTime <= 0 {
		return 0
	}
	return uint64(elapsed / c.BlockTime)
}

// ManualClock is a clock advanced explicitly, used by tests and tooling
type ManualClock struct {
	mu     sync.Mutex
	height uint64
}

// NewManualClock creates a clock at the given height
func NewManualClock(height uint64) *ManualClock {
	return &ManualClock{height: height}
}

func (c *ManualClock) BlockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Advance moves the clock forward by n blocks
func (c *ManualClock) Advance(n uint64) {
	c.mu.Lock()
	c.height += n
	c.mu.Unlock()
}

// Set moves the clock to an absolute height
func (c *ManualClock) Set(height uint64) {
	c.mu.Lock()
	c.height = height
	c.mu.Unlock()
}

var (
	_ domain.Clock = (*BlockClock)(nil)
	_ domain.Clock = (*ManualClock)(nil)
)
