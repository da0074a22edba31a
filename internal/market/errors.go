package market

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument                          = errors.New("market: invalid argument")
	ErrMaxPoolAmountExceeded                    = errors.New("market: max pool amount exceeded")
	ErrMaxPnlFactorExceeded                     = errors.New("market: max pnl factor exceeded")
	ErrMaxOpenInterestExceeded                  = errors.New("market: max open interest exceeded")
	ErrInsufficientReserve                      = errors.New("market: insufficient reserve")
	ErrUnableToGetBorrowingFactorEmptyPoolValue = errors.New("market: unable to get borrowing factor for empty pool value")
	ErrInvalidPoolValue                         = errors.New("market: invalid pool value")
	ErrInvalidPosition                          = errors.New("market: invalid position")
	ErrLiquidatable                             = errors.New("market: position is liquidatable")
	ErrNotLiquidatable                          = errors.New("market: position is not liquidatable")
	ErrAcceptablePriceExceeded                  = errors.New("market: acceptable price exceeded")
	ErrInvalidSwapPath                          = errors.New("market: invalid swap path")
	ErrInsufficientFundsToPayForCosts           = errors.New("market: insufficient funds to pay for costs")
	ErrInsufficientLiquidity                    = errors.New("market: insufficient liquidity")
	ErrEmptyDeposit                             = errors.New("market: empty deposit")
	ErrEmptyWithdrawal                          = errors.New("market: empty withdrawal")
	ErrEmptySwap                                = errors.New("market: empty swap")
	ErrAdlNotEnabled                            = errors.New("market: adl is not enabled")
	ErrOverlayActive                            = errors.New("market: overlay already active")
	ErrPoolNotFound                             = errors.New("market: pool not found")
	ErrUnknown                                  = errors.New("market: unknown error")
)

func sideName(isLong bool) string {
	if isLong {
		return "long"
	}
	return "short"
}

// SideError attaches the market side to a limit violation.
type SideError struct {
	Err    error
	IsLong bool
}

func (e *SideError) Error() string { return fmt.Sprintf("%v (%s)", e.Err, sideName(e.IsLong)) }
func (e *SideError) Unwrap() error { return e.Err }

func sideErr(err error, isLong bool) error { return &SideError{Err: err, IsLong: isLong} }

// PnlFactorError reports which pnl factor limit was exceeded.
type PnlFactorError struct {
	Kind   PnlFactorKind
	IsLong bool
}

func (e *PnlFactorError) Error() string {
	return fmt.Sprintf("%v: %s (%s)", ErrMaxPnlFactorExceeded, e.Kind, sideName(e.IsLong))
}

func (e *PnlFactorError) Unwrap() error { return ErrMaxPnlFactorExceeded }

// InvalidPositionError carries the reason a position update was rejected.
type InvalidPositionError struct {
	Reason string
}

func (e *InvalidPositionError) Error() string { return fmt.Sprintf("%v: %s", ErrInvalidPosition, e.Reason) }
func (e *InvalidPositionError) Unwrap() error { return ErrInvalidPosition }

func invalidPosition(reason string) error { return &InvalidPositionError{Reason: reason} }

// LiquidatableReason says why a position is liquidatable.
type LiquidatableReason uint8

const (
	MinCollateral LiquidatableReason = iota + 1
	MinCollateralFactor
	MinPositionSize
	Insolvent
)

func (r LiquidatableReason) String() string {
	switch r {
	case MinCollateral:
		return "min collateral"
	case MinCollateralFactor:
		return "min collateral factor"
	case MinPositionSize:
		return "min position size"
	case Insolvent:
		return "insolvent"
	default:
		return "none"
	}
}

// LiquidatableError is returned when a position fails the liquidation check.
// Callers treat it as an expected outcome rather than a fault.
type LiquidatableError struct {
	Reason LiquidatableReason
}

func (e *LiquidatableError) Error() string { return fmt.Sprintf("%v: %s", ErrLiquidatable, e.Reason) }
func (e *LiquidatableError) Unwrap() error { return ErrLiquidatable }

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}
