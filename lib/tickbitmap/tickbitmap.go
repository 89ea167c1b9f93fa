// Package tickbitmap packs the initialized state of ticks into 256-bit words
// so the swap loop can find the next initialized tick without scanning.
package tickbitmap

import (
	"errors"
	"math/bits"

	cons "github.com/ftchann/uniswap-core/lib/constants"
	"github.com/ftchann/uniswap-core/lib/journal"

	ui "github.com/holiman/uint256"
)

var ErrTickNotSpaced = errors.New("tick not spaced")

// Bitmap maps a word position to a word with one bit per compressed tick.
type Bitmap struct {
	words   map[int16]ui.Int
	journal *journal.Journal
}

func NewBitmap(j *journal.Journal) *Bitmap {
	return &Bitmap{
		words:   make(map[int16]ui.Int),
		journal: j,
	}
}

// Position returns the word and bit holding a compressed tick.
func Position(tick int) (wordPos int16, bitPos uint8) {
	wordPos = int16(tick >> 8)
	bitPos = uint8(tick & 0xff)
	return
}

// compress divides by the spacing rounding towards negative infinity.
func compress(tick, tickSpacing int) int {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed--
	}
	return compressed
}

// FlipTick toggles the initialized bit of tick.
func (b *Bitmap) FlipTick(tick, tickSpacing int) error {
	if tick%tickSpacing != 0 {
		return ErrTickNotSpaced
	}
	wordPos, bitPos := Position(tick / tickSpacing)

	prev, existed := b.words[wordPos]
	b.journal.Append(func() {
		if existed {
			b.words[wordPos] = prev
		} else {
			delete(b.words, wordPos)
		}
	})

	mask := new(ui.Int).Lsh(cons.One, uint(bitPos))
	word := prev
	word.Xor(&word, mask)
	if word.IsZero() {
		delete(b.words, wordPos)
		return nil
	}
	b.words[wordPos] = word
	return nil
}

// IsInitialized reports whether the bit for tick is set.
func (b *Bitmap) IsInitialized(tick, tickSpacing int) bool {
	if tick%tickSpacing != 0 {
		return false
	}
	wordPos, bitPos := Position(tick / tickSpacing)
	word := b.words[wordPos]
	return word[bitPos/64]&(1<<(bitPos%64)) != 0
}

// NextInitializedTickWithinOneWord returns the next initialized tick contained in the
// same word as tick, either to the left (lte) or to the right. If none is found the
// word boundary is returned with initialized false.
func (b *Bitmap) NextInitializedTickWithinOneWord(tick, tickSpacing int, lte bool) (next int, initialized bool) {
	compressed := compress(tick, tickSpacing)

	if lte {
		wordPos, bitPos := Position(compressed)
		// all the 1s at or to the right of the current bitPos
		mask := new(ui.Int).Lsh(cons.One, uint(bitPos))
		mask.Add(mask, new(ui.Int).Sub(mask, cons.One))
		word := b.words[wordPos]
		masked := new(ui.Int).And(&word, mask)

		initialized = !masked.IsZero()
		if initialized {
			msb := masked.BitLen() - 1
			next = (compressed - (int(bitPos) - msb)) * tickSpacing
		} else {
			next = (compressed - int(bitPos)) * tickSpacing
		}
		return
	}

	// start from the word of the next tick, the current tick state does not matter
	wordPos, bitPos := Position(compressed + 1)
	// all the 1s at or to the left of the bitPos
	mask := new(ui.Int).Lsh(cons.One, uint(bitPos))
	mask.Sub(mask, cons.One)
	mask.Not(mask)
	word := b.words[wordPos]
	masked := new(ui.Int).And(&word, mask)

	initialized = !masked.IsZero()
	if initialized {
		next = (compressed + 1 + (leastSignificantBit(masked) - int(bitPos))) * tickSpacing
	} else {
		next = (compressed + 1 + (255 - int(bitPos))) * tickSpacing
	}
	return
}

// leastSignificantBit of a non-zero x.
func leastSignificantBit(x *ui.Int) int {
	for i := 0; i < 4; i++ {
		if x[i] != 0 {
			return i*64 + bits.TrailingZeros64(x[i])
		}
	}
	return 256
}
