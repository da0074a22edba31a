package market

import "github.com/qmsiclghzzz666/gmx-solana-sub008/internal/fixed"

// Fees splits a fee between the fee receiver and the pool.
type Fees struct {
	FeeAmountForReceiver fixed.Uint `json:"fee_amount_for_receiver"`
	FeeAmountForPool     fixed.Uint `json:"fee_amount_for_pool"`
}

// NewFees charges feeFactor on amount and routes receiverFactor of the fee
// to the receiver.
func NewFees(amount, feeFactor, receiverFactor fixed.Uint) (Fees, error) {
	fee, err := fixed.ApplyFactor(amount, feeFactor)
	if err != nil {
		return Fees{}, err
	}
	forReceiver, err := fixed.ApplyFactor(fee, receiverFactor)
	if err != nil {
		return Fees{}, err
	}
	return Fees{FeeAmountForReceiver: forReceiver, FeeAmountForPool: fee.SaturatingSub(forReceiver)}, nil
}

// Total returns the whole fee amount.
func (f Fees) Total() (fixed.Uint, error) {
	return f.FeeAmountForReceiver.Add(f.FeeAmountForPool)
}

// BorrowingFee is a position's borrowing fee in collateral tokens.
type BorrowingFee struct {
	Amount            fixed.Uint `json:"amount"`
	AmountForReceiver fixed.Uint `json:"amount_for_receiver"`
}

// FundingFees is a position's funding settlement: the fee it pays in
// collateral and the funding it can claim in each token.
type FundingFees struct {
	Amount    fixed.Uint   `json:"amount"`
	Claimable TokenAmounts `json:"claimable"`
}

// PositionFees are all the costs of a position update.
type PositionFees struct {
	Order     Fees         `json:"order"`
	Borrowing BorrowingFee `json:"borrowing"`
	Funding   FundingFees  `json:"funding"`
}

// TotalCostExcludingFunding returns the order fee plus the borrowing fee.
func (f PositionFees) TotalCostExcludingFunding() (fixed.Uint, error) {
	order, err := f.Order.Total()
	if err != nil {
		return fixed.Zero, err
	}
	return order.Add(f.Borrowing.Amount)
}

// TotalCost returns every cost in collateral tokens.
func (f PositionFees) TotalCost() (fixed.Uint, error) {
	cost, err := f.TotalCostExcludingFunding()
	if err != nil {
		return fixed.Zero, err
	}
	return cost.Add(f.Funding.Amount)
}

// PendingBorrowingFeeUsd returns the borrowing fee a position owes since its
// last update.
func PendingBorrowingFeeUsd(m BaseMarket, p *Position) (fixed.Uint, error) {
	diff := CumulativeBorrowingFactor(m, p.IsLong).SaturatingSub(p.BorrowingFactor)
	return fixed.ApplyFactor(p.SizeInUsd, diff)
}

func fundingAmount(size, latest, snapshot fixed.Uint, roundUp bool) (fixed.Uint, error) {
	return fixed.MulDivRound(size, latest.SaturatingSub(snapshot), FundingAmountPerSizeUnit, roundUp)
}

// PendingFundingFees returns the funding a position pays and can claim since
// its last update.
func PendingFundingFees(m BaseMarket, p *Position) (FundingFees, error) {
	isLongCollateral, err := m.Tokens().IsCollateralLong(p.CollateralToken)
	if err != nil {
		return FundingFees{}, err
	}
	paid, err := fundingAmount(p.SizeInUsd, FundingAmountPerSize(m, p.IsLong, isLongCollateral), p.FundingFeeAmountPerSize, true)
	if err != nil {
		return FundingFees{}, err
	}
	claimLong, err := fundingAmount(p.SizeInUsd, ClaimableFundingAmountPerSize(m, p.IsLong, true), p.ClaimableFundingAmountPerSize.LongToken, false)
	if err != nil {
		return FundingFees{}, err
	}
	claimShort, err := fundingAmount(p.SizeInUsd, ClaimableFundingAmountPerSize(m, p.IsLong, false), p.ClaimableFundingAmountPerSize.ShortToken, false)
	if err != nil {
		return FundingFees{}, err
	}
	return FundingFees{
		Amount:    paid,
		Claimable: TokenAmounts{LongToken: claimLong, ShortToken: claimShort},
	}, nil
}

// ComputePositionFees returns the costs of changing a position by
// sizeDeltaUsd, including its pending borrowing and funding fees.
func ComputePositionFees(m BaseMarket, collateralPrice Price, p *Position, sizeDeltaUsd fixed.Uint) (PositionFees, error) {
	cfg := m.Config()
	feeUsd, err := fixed.ApplyFactor(sizeDeltaUsd, cfg.Fees.PositionFeeFactor)
	if err != nil {
		return PositionFees{}, err
	}
	feeAmount, err := feeUsd.Div(collateralPrice.Min)
	if err != nil {
		return PositionFees{}, err
	}
	order, err := NewFees(feeAmount, fixed.Unit, cfg.Fees.ReceiverFactor)
	if err != nil {
		return PositionFees{}, err
	}

	borrowingUsd, err := PendingBorrowingFeeUsd(m, p)
	if err != nil {
		return PositionFees{}, err
	}
	borrowingAmount, err := borrowingUsd.Div(collateralPrice.Min)
	if err != nil {
		return PositionFees{}, err
	}
	borrowingForReceiver, err := fixed.ApplyFactor(borrowingAmount, cfg.Borrowing.ReceiverFactor)
	if err != nil {
		return PositionFees{}, err
	}

	funding, err := PendingFundingFees(m, p)
	if err != nil {
		return PositionFees{}, err
	}
	return PositionFees{
		Order:     order,
		Borrowing: BorrowingFee{Amount: borrowingAmount, AmountForReceiver: borrowingForReceiver},
		Funding:   funding,
	}, nil
}
