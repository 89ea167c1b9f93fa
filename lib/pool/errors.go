package pool

import "errors"

var (
	ErrLocked             = errors.New("LOK")
	ErrNotInitialized     = errors.New("pool not initialized")
	ErrAlreadyInitialized = errors.New("AI")
	ErrInvalidParams      = errors.New("invalid pool params")

	ErrTickOrder      = errors.New("TLU")
	ErrTickLowerRange = errors.New("TLM")
	ErrTickUpperRange = errors.New("TUM")
	// the range bounds must be initialized ticks
	ErrTickNotInitialized = errors.New("tick not initialized")

	ErrMintAmountZero = errors.New("mint amount is zero")
	ErrAmountZero     = errors.New("AS")
	ErrSqrtPriceLimit = errors.New("SPL")
	ErrNoLiquidity    = errors.New("L")
	ErrNilCallback    = errors.New("nil callback")

	ErrInsufficientMint0 = errors.New("M0")
	ErrInsufficientMint1 = errors.New("M1")
	ErrInsufficientInput = errors.New("IIA")
	ErrFlashUnpaid0      = errors.New("F0")
	ErrFlashUnpaid1      = errors.New("F1")

	ErrNotOwner           = errors.New("caller is not the factory owner")
	ErrInvalidFeeProtocol = errors.New("invalid fee protocol")
)
