// Package ledger is an in-memory token ledger that pools settle against.
package ledger

import (
	"errors"
	"fmt"

	"github.com/ftchann/uniswap-core/lib/journal"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

type balanceKey struct {
	token   common.Address
	account common.Address
}

// Memory keeps balances per (token, account). It supports snapshots so a reverted
// pool call also reverts the transfers made during it. Not safe for concurrent use.
type Memory struct {
	balances map[balanceKey]ui.Int
	journal  *journal.Journal
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[balanceKey]ui.Int),
		journal:  journal.New(),
	}
}

func (m *Memory) BalanceOf(token, account common.Address) *ui.Int {
	bal := m.balances[balanceKey{token, account}]
	return bal.Clone()
}

func (m *Memory) set(key balanceKey, value *ui.Int) {
	prev, existed := m.balances[key]
	m.journal.Append(func() {
		if existed {
			m.balances[key] = prev
		} else {
			delete(m.balances, key)
		}
	})
	m.balances[key] = *value
}

// Mint credits amount of token to account out of thin air.
func (m *Memory) Mint(token, to common.Address, amount *ui.Int) error {
	key := balanceKey{token, to}
	bal := m.balances[key]
	next, overflow := new(ui.Int).AddOverflow(&bal, amount)
	if overflow {
		return fmt.Errorf("mint %s to %s: balance overflow", token.Hex(), to.Hex())
	}
	m.set(key, next)
	return nil
}

// Transfer moves amount of token from one account to another.
func (m *Memory) Transfer(token, from, to common.Address, amount *ui.Int) error {
	if amount.IsZero() {
		return nil
	}
	fromKey := balanceKey{token, from}
	fromBal := m.balances[fromKey]
	if fromBal.Lt(amount) {
		return fmt.Errorf("transfer %s of %s from %s: %w", amount.Dec(), token.Hex(), from.Hex(), ErrInsufficientBalance)
	}
	m.set(fromKey, new(ui.Int).Sub(&fromBal, amount))

	toKey := balanceKey{token, to}
	toBal := m.balances[toKey]
	m.set(toKey, new(ui.Int).Add(&toBal, amount))
	return nil
}

// Snapshot returns an identifier for the current balances.
func (m *Memory) Snapshot() int {
	return m.journal.Len()
}

// RevertToSnapshot restores the balances as of the snapshot id.
func (m *Memory) RevertToSnapshot(id int) {
	m.journal.Revert(id)
}

// Finalise forgets the undo history. Snapshots taken before are invalid afterwards.
func (m *Memory) Finalise() {
	m.journal.Reset()
}
