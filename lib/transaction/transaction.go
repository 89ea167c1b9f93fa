// Package transaction defines the replayable pool operations read from JSONL input.
package transaction

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

const (
	TypeInitialize                         = "Initialize"
	TypeMint                               = "Mint"
	TypeBurn                               = "Burn"
	TypeCollect                            = "Collect"
	TypeSwap                               = "Swap"
	TypeFlash                              = "Flash"
	TypeSetFeeProtocol                     = "SetFeeProtocol"
	TypeCollectProtocol                    = "CollectProtocol"
	TypeIncreaseObservationCardinalityNext = "IncreaseObservationCardinalityNext"
)

var ErrUnknownType = errors.New("unknown transaction type")

// TransactionInput is the wire form of a Transaction. Amounts are decimal strings,
// swap amounts may carry a leading minus for exact output.
type TransactionInput struct {
	Type         string `json:"type"`
	ID           string `json:"id,omitempty"`
	Timestamp    uint32 `json:"timestamp"`
	Sender       string `json:"sender,omitempty"`
	Recipient    string `json:"recipient,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Amount0      string `json:"amount0,omitempty"`
	Amount1      string `json:"amount1,omitempty"`
	SqrtPriceX96 string `json:"sqrtPriceX96,omitempty"`
	TickLower    int    `json:"tickLower,omitempty"`
	TickUpper    int    `json:"tickUpper,omitempty"`
	ZeroForOne   bool   `json:"zeroForOne,omitempty"`
	FeeProtocol0 uint8  `json:"feeProtocol0,omitempty"`
	FeeProtocol1 uint8  `json:"feeProtocol1,omitempty"`
	Cardinality  uint16 `json:"cardinality,omitempty"`
}

// Transaction is a single pool operation.
//
// Mint uses Amount as liquidity, or derives it from Amount0/Amount1 when Amount is
// zero. Swap uses Amount as the signed amountSpecified and SqrtPriceX96 as the
// optional price limit. Collect and CollectProtocol use Amount0/Amount1 as the
// requested amounts, zero meaning everything.
type Transaction struct {
	Type         string
	ID           string
	Timestamp    uint32
	Sender       common.Address
	Recipient    common.Address
	Amount       *ui.Int
	Amount0      *ui.Int
	Amount1      *ui.Int
	SqrtPriceX96 *ui.Int
	TickLower    int
	TickUpper    int
	ZeroForOne   bool
	FeeProtocol0 uint8
	FeeProtocol1 uint8
	Cardinality  uint16
}

// Parse validates the wire form and converts it.
func Parse(in TransactionInput) (Transaction, error) {
	switch in.Type {
	case TypeInitialize, TypeMint, TypeBurn, TypeCollect, TypeSwap, TypeFlash,
		TypeSetFeeProtocol, TypeCollectProtocol, TypeIncreaseObservationCardinalityNext:
	default:
		return Transaction{}, fmt.Errorf("%q: %w", in.Type, ErrUnknownType)
	}

	t := Transaction{
		Type:         in.Type,
		ID:           in.ID,
		Timestamp:    in.Timestamp,
		TickLower:    in.TickLower,
		TickUpper:    in.TickUpper,
		ZeroForOne:   in.ZeroForOne,
		FeeProtocol0: in.FeeProtocol0,
		FeeProtocol1: in.FeeProtocol1,
		Cardinality:  in.Cardinality,
	}

	var err error
	if t.Sender, err = parseAddress(in.Sender); err != nil {
		return Transaction{}, fmt.Errorf("sender: %w", err)
	}
	if t.Recipient, err = parseAddress(in.Recipient); err != nil {
		return Transaction{}, fmt.Errorf("recipient: %w", err)
	}
	// only swaps take a signed amount
	if t.Amount, err = parseAmount(in.Amount, in.Type == TypeSwap); err != nil {
		return Transaction{}, fmt.Errorf("amount: %w", err)
	}
	if t.Amount0, err = parseAmount(in.Amount0, false); err != nil {
		return Transaction{}, fmt.Errorf("amount0: %w", err)
	}
	if t.Amount1, err = parseAmount(in.Amount1, false); err != nil {
		return Transaction{}, fmt.Errorf("amount1: %w", err)
	}
	if t.SqrtPriceX96, err = parseAmount(in.SqrtPriceX96, false); err != nil {
		return Transaction{}, fmt.Errorf("sqrtPriceX96: %w", err)
	}
	return t, nil
}

func parseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string, signed bool) (*ui.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(ui.Int), nil
	}
	negative := false
	if signed && strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	v, err := ui.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if negative {
		// the magnitude must fit int256
		if v.Sign() < 0 && !v.Eq(minInt256) {
			return nil, fmt.Errorf("amount -%s out of range", s)
		}
		v.Neg(v)
	} else if signed && v.Sign() < 0 {
		return nil, fmt.Errorf("amount %s out of range", s)
	}
	return v, nil
}

var minInt256 = new(ui.Int).Lsh(ui.NewInt(1), 255)

func signedString(x *ui.Int) string {
	if x.Sign() < 0 {
		return "-" + new(ui.Int).Neg(x).Dec()
	}
	return x.Dec()
}

func decString(x *ui.Int) string {
	if x == nil || x.IsZero() {
		return ""
	}
	return x.Dec()
}

func addressString(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	in := TransactionInput{
		Type:         t.Type,
		ID:           t.ID,
		Timestamp:    t.Timestamp,
		Sender:       addressString(t.Sender),
		Recipient:    addressString(t.Recipient),
		Amount0:      decString(t.Amount0),
		Amount1:      decString(t.Amount1),
		SqrtPriceX96: decString(t.SqrtPriceX96),
		TickLower:    t.TickLower,
		TickUpper:    t.TickUpper,
		ZeroForOne:   t.ZeroForOne,
		FeeProtocol0: t.FeeProtocol0,
		FeeProtocol1: t.FeeProtocol1,
		Cardinality:  t.Cardinality,
	}
	if t.Type == TypeSwap && t.Amount != nil {
		in.Amount = signedString(t.Amount)
	} else {
		in.Amount = decString(t.Amount)
	}
	return json.Marshal(&in)
}

func (t *Transaction) UnmarshalJSON(data []byte) error {
	var in TransactionInput
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	parsed, err := Parse(in)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Read parses one transaction per non-empty line.
func Read(r io.Reader) ([]Transaction, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var transactions []Transaction
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var t Transaction
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		transactions = append(transactions, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return transactions, nil
}
