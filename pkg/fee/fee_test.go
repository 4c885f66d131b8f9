package fee_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenmint/pkg/fee"
	"tokenmint/pkg/types"
)

func newCalculator(t *testing.T) *fee.Calculator {
	t.Helper()
	c, err := fee.NewCalculator(fee.Schedule{
		Base:      decimal.RequireFromString("0.1"),
		Surcharge: decimal.RequireFromString("0.05"),
	})
	require.NoError(t, err)
	return c
}

func TestComputeFee_AllCombinations(t *testing.T) {
	c := newCalculator(t)
	base := decimal.RequireFromString("0.1")
	surcharge := decimal.RequireFromString("0.05")

	for mask := 0; mask < 16; mask++ {
		opts := types.FeeOptions{
			RevokeMint:     mask&1 != 0,
			RevokeFreeze:   mask&2 != 0,
			RevokeMetadata: mask&4 != 0,
			CustomMetadata: mask&8 != 0,
		}
		n := 0
		for b := mask; b > 0; b >>= 1 {
			n += b & 1
		}

		quote := c.ComputeFee(opts)
		want := base.Add(surcharge.Mul(decimal.NewFromInt(int64(n))))
		assert.True(t, want.Equal(quote.Total), "mask %04b: got %s want %s", mask, quote.Total, want)
		assert.Equal(t, n, quote.Options)
	}
}

func TestComputeFee_OrderIndependent(t *testing.T) {
	c := newCalculator(t)

	a := c.ComputeFee(types.FeeOptions{RevokeMint: true, CustomMetadata: true})
	b := c.ComputeFee(types.FeeOptions{CustomMetadata: true, RevokeMint: true})
	d := c.ComputeFee(types.FeeOptions{RevokeFreeze: true, RevokeMetadata: true})

	assert.True(t, a.Total.Equal(b.Total))
	assert.True(t, a.Total.Equal(d.Total))
	assert.Equal(t, a.Lamports, d.Lamports)
}

func TestComputeFee_SingleRevocation(t *testing.T) {
	c := newCalculator(t)

	quote := c.ComputeFee(types.FeeOptions{RevokeMint: true})

	assert.Equal(t, "0.15", quote.Total.String())
	assert.Equal(t, uint64(150_000_000), quote.Lamports)
}

func TestNewCalculator_RejectsSubLamportSchedule(t *testing.T) {
	_, err := fee.NewCalculator(fee.Schedule{
		Base:      decimal.RequireFromString("0.0000000001"),
		Surcharge: decimal.Zero,
	})
	assert.Error(t, err)

	_, err = fee.NewCalculator(fee.Schedule{
		Base:      decimal.RequireFromString("-1"),
		Surcharge: decimal.Zero,
	})
	assert.Error(t, err)
}

func TestToLamports(t *testing.T) {
	tests := []struct {
		name    string
		sol     string
		want    uint64
		wantErr bool
	}{
		{name: "whole", sol: "2", want: 2_000_000_000},
		{name: "fraction", sol: "0.000000001", want: 1},
		{name: "zero", sol: "0", want: 0},
		{name: "too precise", sol: "0.0000000015", wantErr: true},
		{name: "negative", sol: "-0.5", wantErr: true},
		{name: "overflow", sol: "100000000000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fee.ToLamports(decimal.RequireFromString(tt.sol))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromLamports(t *testing.T) {
	assert.Equal(t, "0.15", fee.FromLamports(150_000_000).String())
	assert.True(t, fee.FromLamports(0).IsZero())
}
