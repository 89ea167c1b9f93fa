package pool

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// Ledger holds the token balances the pool settles against.
type Ledger interface {
	BalanceOf(token, account common.Address) *ui.Int
	Transfer(token, from, to common.Address, amount *ui.Int) error
}

// Snapshotter is implemented by ledgers that can undo transfers made during a
// failed call.
type Snapshotter interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// MintCallback pays the amounts owed for minted liquidity.
type MintCallback interface {
	MintCallback(amount0Owed, amount1Owed *ui.Int, data []byte) error
}

// SwapCallback pays for a swap. Positive deltas are owed to the pool,
// negative deltas were already sent to the recipient.
type SwapCallback interface {
	SwapCallback(amount0Delta, amount1Delta *ui.Int, data []byte) error
}

// FlashCallback repays a flash loan plus fee0 and fee1.
type FlashCallback interface {
	FlashCallback(fee0, fee1 *ui.Int, data []byte) error
}

type MintCallbackFunc func(amount0Owed, amount1Owed *ui.Int, data []byte) error

func (f MintCallbackFunc) MintCallback(amount0Owed, amount1Owed *ui.Int, data []byte) error {
	return f(amount0Owed, amount1Owed, data)
}

type SwapCallbackFunc func(amount0Delta, amount1Delta *ui.Int, data []byte) error

func (f SwapCallbackFunc) SwapCallback(amount0Delta, amount1Delta *ui.Int, data []byte) error {
	return f(amount0Delta, amount1Delta, data)
}

type FlashCallbackFunc func(fee0, fee1 *ui.Int, data []byte) error

func (f FlashCallbackFunc) FlashCallback(fee0, fee1 *ui.Int, data []byte) error {
	return f(fee0, fee1, data)
}

// Factory owns the pool and gates protocol fee administration.
type Factory interface {
	Owner() common.Address
}

// StaticOwner is a Factory with a fixed owner.
type StaticOwner common.Address

func (o StaticOwner) Owner() common.Address { return common.Address(o) }

// Clock reports the block timestamp.
type Clock interface {
	Now() uint32
}

// SystemClock reads the wall clock, truncated to 32 bits.
type SystemClock struct{}

func (SystemClock) Now() uint32 { return uint32(time.Now().Unix()) }

// ManualClock is set explicitly, used for replays and tests.
type ManualClock struct {
	mu  sync.Mutex
	now uint32
}

func NewManualClock(now uint32) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(now uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward, wrapping at 2^32.
func (c *ManualClock) Advance(seconds uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
}
