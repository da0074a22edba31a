package action

import (
	"fmt"

	"github.com/qmsiclghzzz666/gmx-solana-sub008/internal/market"
)

// ShiftReport is the result of a shift: the withdrawal from the source
// market and the deposit of its output into the destination market.
type ShiftReport struct {
	Withdrawal WithdrawalReport `json:"withdrawal"`
	Deposit    DepositReport    `json:"deposit"`
}

// Shift moves liquidity between two markets with the same collateral tokens
// without paying the tokens out in between.
type Shift struct {
	from       *market.Market
	to         *market.Market
	clock      market.ClockSource
	amount     uint64
	fromPrices market.Prices
	toPrices   market.Prices
}

// NewShift validates a shift of marketTokenAmount from one market to another.
func NewShift(from, to *market.Market, clock market.ClockSource, marketTokenAmount uint64, fromPrices, toPrices market.Prices) (*Shift, error) {
	if err := validateMarket(from, clock); err != nil {
		return nil, err
	}
	if err := validateMarket(to, clock); err != nil {
		return nil, err
	}
	if from == to || from.ID == to.ID {
		return nil, fmt.Errorf("%w: cannot shift within market %s", market.ErrInvalidArgument, from.ID)
	}
	if from.Tokens.LongToken != to.Tokens.LongToken || from.Tokens.ShortToken != to.Tokens.ShortToken {
		return nil, fmt.Errorf("%w: markets %s and %s have different collateral tokens", market.ErrInvalidArgument, from.ID, to.ID)
	}
	if marketTokenAmount == 0 {
		return nil, fmt.Errorf("%w: %w", market.ErrInvalidArgument, market.ErrEmptyWithdrawal)
	}
	if err := fromPrices.Validate(); err != nil {
		return nil, err
	}
	if err := toPrices.Validate(); err != nil {
		return nil, err
	}
	return &Shift{from: from, to: to, clock: clock, amount: marketTokenAmount, fromPrices: fromPrices, toPrices: toPrices}, nil
}

// Execute runs the withdrawal and the deposit in two overlays and commits
// both only when both succeed.
func (s *Shift) Execute() (ShiftReport, error) {
	rFrom, err := market.NewRevertible(s.from, s.clock)
	if err != nil {
		return ShiftReport{}, err
	}
	defer rFrom.Discard()
	rTo, err := market.NewRevertible(s.to, s.clock)
	if err != nil {
		return ShiftReport{}, err
	}
	defer rTo.Discard()

	withdrawal, err := executeWithdrawal(rFrom, s.fromPrices, s.amount)
	if err != nil {
		return ShiftReport{}, err
	}
	long, err := withdrawal.LongTokenOutput.Uint64()
	if err != nil {
		return ShiftReport{}, err
	}
	short, err := withdrawal.ShortTokenOutput.Uint64()
	if err != nil {
		return ShiftReport{}, err
	}
	// The tokens move from one market's vault to the other's.
	tokens := rFrom.Tokens()
	if err := transferOut(rFrom, tokens.LongToken, withdrawal.LongTokenOutput); err != nil {
		return ShiftReport{}, err
	}
	if err := transferOut(rFrom, tokens.ShortToken, withdrawal.ShortTokenOutput); err != nil {
		return ShiftReport{}, err
	}

	deposit, err := executeDeposit(rTo, s.toPrices, long, short)
	if err != nil {
		return ShiftReport{}, err
	}

	rFrom.Commit()
	rTo.Commit()
	debug("action committed", "action", "shift", "from", s.from.ID, "to", s.to.ID)
	return ShiftReport{Withdrawal: withdrawal, Deposit: deposit}, nil
}
