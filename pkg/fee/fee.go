package fee

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"tokenmint/pkg/types"
)

// LamportsPerSOL is the number of lamports in one SOL
const LamportsPerSOL = 1_000_000_000

// lamportDecimals is the exponent between SOL and lamports
const lamportDecimals = 9

// Schedule defines the fee constants
type Schedule struct {
	Base      decimal.Decimal // fee charged for every mint, in SOL
	Surcharge decimal.Decimal // added per enabled option, in SOL
}

// Calculator computes fee quotes from a fixed schedule
type Calculator struct {
	schedule Schedule
}

// NewCalculator creates a calculator, rejecting schedules that cannot be
// charged in whole lamports
func NewCalculator(s Schedule) (*Calculator, error) {
	if s.Base.IsNegative() || s.Surcharge.IsNegative() {
		return nil, fmt.Errorf("fee schedule cannot be negative")
	}
	if _, err := ToLamports(s.Base); err != nil {
		return nil, fmt.Errorf("invalid base fee: %w", err)
	}
	if _, err := ToLamports(s.Surcharge); err != nil {
		return nil, fmt.Errorf("invalid option surcharge: %w", err)
	}
	return &Calculator{schedule: s}, nil
}

// Schedule returns the calculator's fee constants
func (c *Calculator) Schedule() Schedule {
	return c.schedule
}

// ComputeFee returns base + surcharge × number of enabled options
func (c *Calculator) ComputeFee(opts types.FeeOptions) types.FeeQuote {
	n := opts.Count()
	total := c.schedule.Base.Add(c.schedule.Surcharge.Mul(decimal.NewFromInt(int64(n))))

	// The schedule was validated at construction, so this cannot fail.
	lamports, _ := ToLamports(total)

	return types.FeeQuote{
		Total:    total,
		Lamports: lamports,
		Options:  n,
	}
}

// ToLamports converts a SOL amount to lamports. The amount must be
// non-negative and exactly representable in lamports.
func ToLamports(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, fmt.Errorf("amount cannot be negative")
	}
	l := sol.Shift(lamportDecimals)
	if !l.Equal(l.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more precision than one lamport", sol.String())
	}
	if !l.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %s overflows lamports", sol.String())
	}
	return l.BigInt().Uint64(), nil
}

// FromLamports converts lamports to SOL
func FromLamports(lamports uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportDecimals)
}
