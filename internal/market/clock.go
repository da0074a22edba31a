package market

import (
	"fmt"
	"time"
)

// ClockKind identifies a market clock.
type ClockKind uint8

const (
	PriceImpactDistributionClock ClockKind = iota
	BorrowingClock
	FundingClock
	numClockKinds
)

func (k ClockKind) String() string {
	switch k {
	case PriceImpactDistributionClock:
		return "price_impact_distribution"
	case BorrowingClock:
		return "borrowing"
	case FundingClock:
		return "funding"
	default:
		return fmt.Sprintf("clock(%d)", uint8(k))
	}
}

// Clocks stores the last update timestamp (unix seconds) of each clock kind.
type Clocks [numClockKinds]int64

// NewClocks returns clocks all set to now.
func NewClocks(now int64) Clocks {
	var c Clocks
	for i := range c {
		c[i] = now
	}
	return c
}

// PassedSeconds returns max(0, now - stored).
func (c Clocks) PassedSeconds(kind ClockKind, now int64) int64 {
	if d := now - c[kind]; d > 0 {
		return d
	}
	return 0
}

// JustPassedSeconds returns PassedSeconds and advances the clock to now. The
// stored timestamp never moves backwards.
func (c *Clocks) JustPassedSeconds(kind ClockKind, now int64) int64 {
	d := c.PassedSeconds(kind, now)
	if d > 0 {
		c[kind] = now
	}
	return d
}

// ClockSource supplies wall-clock seconds to actions.
type ClockSource interface {
	Now() int64
}

// FixedClock always reports the same instant.
type FixedClock int64

func (c FixedClock) Now() int64 { return int64(c) }

// SystemClock reports the process wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }
