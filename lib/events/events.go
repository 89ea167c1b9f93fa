// Package events defines the payloads a pool emits after a call commits.
package events

import (
	"sync"

	ui "github.com/holiman/uint256"
)

const (
	NameInitialize                         = "Initialize"
	NameMint                               = "Mint"
	NameBurn                               = "Burn"
	NameCollect                            = "Collect"
	NameSwap                               = "Swap"
	NameFlash                              = "Flash"
	NameSetFeeProtocol                     = "SetFeeProtocol"
	NameCollectProtocol                    = "CollectProtocol"
	NameIncreaseObservationCardinalityNext = "IncreaseObservationCardinalityNext"
)

// Event is one emitted pool event. Seq numbers the committed events of a pool
// starting at 1.
type Event struct {
	Name      string      `json:"event_name"`
	Pool      string      `json:"pool"`
	Seq       uint64      `json:"seq"`
	Timestamp uint32      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Sink receives committed events in emission order.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Drain returns the recorded events and forgets them.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// Names lists the recorded event names, handy in tests.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

// Signed formats a two's complement value as a signed decimal.
func Signed(x *ui.Int) string {
	if x.Sign() < 0 {
		return "-" + new(ui.Int).Neg(x).Dec()
	}
	return x.Dec()
}

// InitializeData is the Initialize event payload.
type InitializeData struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

// MintData is the Mint event payload.
type MintData struct {
	Sender    string `json:"sender"`
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// BurnData is the Burn event payload.
type BurnData struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// CollectData is the Collect event payload.
type CollectData struct {
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// SwapData is the Swap event payload. Amounts are signed from the pool's view.
type SwapData struct {
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
}

// FlashData is the Flash event payload.
type FlashData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Paid0     string `json:"paid0"`
	Paid1     string `json:"paid1"`
}

// SetFeeProtocolData is the SetFeeProtocol event payload.
type SetFeeProtocolData struct {
	FeeProtocol0Old uint8 `json:"fee_protocol0_old"`
	FeeProtocol1Old uint8 `json:"fee_protocol1_old"`
	FeeProtocol0New uint8 `json:"fee_protocol0_new"`
	FeeProtocol1New uint8 `json:"fee_protocol1_new"`
}

// CollectProtocolData is the CollectProtocol event payload.
type CollectProtocolData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// IncreaseObservationCardinalityNextData is the IncreaseObservationCardinalityNext event payload.
type IncreaseObservationCardinalityNextData struct {
	Old uint16 `json:"observation_cardinality_next_old"`
	New uint16 `json:"observation_cardinality_next_new"`
}
