package numbers

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func Test_PercentageWithBips(t *testing.T) {
	tests := []struct {
		amount   int64
		bips     int64
		expected int64
	}{
		{1_000_000, 6500, 650_000},
		{1_000_000, 3500, 350_000},
		{1_000_000, 0, 0},
		{1_000_000, 10000, 1_000_000},
		{3, 3333, 0},      // floors to zero
		{10001, 9999, 9999}, // floor(99_999_999/10000)
		{1, 1, 0},
	}

	for _, test := range tests {
		got := PercentageWithBips(big.NewInt(test.amount), big.NewInt(test.bips))
		assert.Equal(t, test.expected, got.Int64(), "amount=%d bips=%d", test.amount, test.bips)
	}
}

func Test_PercentageWithBips_DoesNotMutateInputs(t *testing.T) {
	amount := big.NewInt(100)
	bips := big.NewInt(500)
	PercentageWithBips(amount, bips)
	assert.Equal(t, int64(100), amount.Int64())
	assert.Equal(t, int64(500), bips.Int64())
}

func Test_ComputeWeights(t *testing.T) {
	t.Run("splits proportionally by balance", func(t *testing.T) {
		balances := []*AddressBalance{
			{UserId: uuid.New(), Address: "0xa", Balance: big.NewInt(100)},
			{UserId: uuid.New(), Address: "0xb", Balance: big.NewInt(300)},
		}

		result, err := ComputeWeights(balances, big.NewInt(1_000_000), WeightMode_Linear)
		assert.Nil(t, err)
		assert.Equal(t, int64(400), result.TotalWeight.Int64())
		assert.Equal(t, int64(250_000), result.Shares[0].Amount.Int64())
		assert.Equal(t, int64(750_000), result.Shares[1].Amount.Int64())
	})

	t.Run("zero total weight yields no shares", func(t *testing.T) {
		balances := []*AddressBalance{
			{UserId: uuid.New(), Address: "0xa", Balance: big.NewInt(0)},
		}
		result, err := ComputeWeights(balances, big.NewInt(1_000_000), WeightMode_Linear)
		assert.Nil(t, err)
		assert.Equal(t, 0, result.TotalWeight.Sign())
		assert.Len(t, result.Shares, 0)
	})

	t.Run("rejects unsupported modes", func(t *testing.T) {
		_, err := ComputeWeights(nil, big.NewInt(1), WeightMode("sigmoid"))
		assert.NotNil(t, err)
	})

	t.Run("larger balances never earn less", func(t *testing.T) {
		balances := []*AddressBalance{
			{UserId: uuid.New(), Address: "0xa", Balance: big.NewInt(17)},
			{UserId: uuid.New(), Address: "0xb", Balance: big.NewInt(18)},
			{UserId: uuid.New(), Address: "0xc", Balance: big.NewInt(19)},
		}
		result, err := ComputeWeights(balances, big.NewInt(999), WeightMode_Linear)
		assert.Nil(t, err)
		for i := 1; i < len(result.Shares); i++ {
			assert.True(t, result.Shares[i].Amount.Cmp(result.Shares[i-1].Amount) >= 0)
		}
	})

	t.Run("shortfall is bounded by address count", func(t *testing.T) {
		r := rand.New(rand.NewSource(42))
		for trial := 0; trial < 200; trial++ {
			n := r.Intn(50) + 1
			balances := make([]*AddressBalance, 0, n)
			for i := 0; i < n; i++ {
				balances = append(balances, &AddressBalance{
					UserId:  uuid.New(),
					Address: uuid.NewString(),
					Balance: big.NewInt(r.Int63n(1_000_000_000) + 1),
				})
			}
			pool := big.NewInt(r.Int63n(1_000_000_000_000) + 1)

			result, err := ComputeWeights(balances, pool, WeightMode_Linear)
			assert.Nil(t, err)

			allocated := big.NewInt(0)
			for _, s := range result.Shares {
				allocated.Add(allocated, s.Amount)
			}
			assert.True(t, allocated.Cmp(pool) <= 0, "allocated more than pool")

			shortfall := new(big.Int).Sub(pool, allocated)
			assert.True(t, shortfall.Cmp(big.NewInt(int64(n))) < 0, "shortfall %s >= %d", shortfall, n)
		}
	})
}

func Test_FormatUnits(t *testing.T) {
	amount, _ := new(big.Int).SetString("1234500000000000000", 10)
	assert.Equal(t, "1.2345", FormatUnits(amount, 18))
	assert.Equal(t, "1000000", FormatUnits(big.NewInt(1_000_000), 0))
}
