/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package royalty

import (
	"math"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paysplit/royalty/model"
)

func TestCalculateSplit(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		mode      model.RoyaltyMode
		rate      string
		want      Split
		expectErr bool
	}{
		{
			name:   "ten percent of one hundred",
			amount: "100.00",
			mode:   model.RoyaltyModeSingle,
			rate:   "10",
			want:   Split{TotalCents: 10000, FeeCents: 60, NetCents: 9940, RoyaltyCents: 994, PrincipalCents: 9006},
		},
		{
			name:   "mode none keeps everything with the principal",
			amount: "100.00",
			mode:   model.RoyaltyModeNone,
			rate:   "10",
			want:   Split{TotalCents: 10000, FeeCents: 60, NetCents: 9940, RoyaltyCents: 0, PrincipalCents: 10000},
		},
		{
			name:   "fractional rate floors",
			amount: "33.33",
			mode:   model.RoyaltyModeAggregated,
			rate:   "12.5",
			want:   Split{TotalCents: 3333, FeeCents: 19, NetCents: 3314, RoyaltyCents: 414, PrincipalCents: 2919},
		},
		{
			name:   "full rate",
			amount: "1.00",
			mode:   model.RoyaltyModeSingle,
			rate:   "100",
			want:   Split{TotalCents: 100, FeeCents: 0, NetCents: 100, RoyaltyCents: 100, PrincipalCents: 0},
		},
		{
			name:   "zero amount",
			amount: "0",
			mode:   model.RoyaltyModeSingle,
			rate:   "50",
			want:   Split{},
		},
		{
			name:   "sub cent amounts round to the nearest cent",
			amount: "10.005",
			mode:   model.RoyaltyModeSingle,
			rate:   "0",
			want:   Split{TotalCents: 1001, FeeCents: 6, NetCents: 995, RoyaltyCents: 0, PrincipalCents: 1001},
		},
		{
			name:      "negative amount",
			amount:    "-1.00",
			mode:      model.RoyaltyModeSingle,
			rate:      "10",
			expectErr: true,
		},
		{
			name:      "rate above one hundred",
			amount:    "10.00",
			mode:      model.RoyaltyModeSingle,
			rate:      "100.01",
			expectErr: true,
		},
		{
			name:      "negative rate",
			amount:    "10.00",
			mode:      model.RoyaltyModeSingle,
			rate:      "-5",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateSplit(decimal.RequireFromString(tt.amount), tt.mode, decimal.RequireFromString(tt.rate), 6)
			if tt.expectErr {
				assert.ErrorIs(t, err, ErrSplitInvariant)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateSplit_InvalidFee(t *testing.T) {
	_, err := CalculateSplit(decimal.NewFromInt(10), model.RoyaltyModeSingle, decimal.NewFromInt(10), -1)
	assert.ErrorIs(t, err, ErrSplitInvariant)
}

func TestCalculateSplit_AmountOutOfRange(t *testing.T) {
	_, err := CalculateSplit(decimal.RequireFromString("1e20"), model.RoyaltyModeSingle, decimal.NewFromInt(10), 6)
	assert.ErrorIs(t, err, ErrSplitInvariant)

	limit := decimal.New(math.MaxInt64/1000, -2)
	split, err := CalculateSplit(limit, model.RoyaltyModeSingle, decimal.NewFromInt(10), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64/1000), split.TotalCents)
	assert.Equal(t, split.TotalCents, split.FeeCents)

	_, err = CalculateSplit(limit.Add(decimal.New(1, -2)), model.RoyaltyModeSingle, decimal.NewFromInt(10), 1000)
	assert.ErrorIs(t, err, ErrSplitInvariant)
}

func TestCalculateSplit_NoPennyLeakage(t *testing.T) {
	faker := gofakeit.New(42)
	for i := 0; i < 2000; i++ {
		cents := faker.Int64() % 100_000_000
		if cents < 0 {
			cents = -cents
		}
		amount := decimal.New(cents, -2)
		rate := decimal.NewFromFloat(faker.Float64Range(0, 100)).Round(2)

		split, err := CalculateSplit(amount, model.RoyaltyModeSingle, rate, 6)
		require.NoError(t, err, "amount %s rate %s", amount, rate)
		assert.Equal(t, split.TotalCents, split.RoyaltyCents+split.PrincipalCents)
		assert.GreaterOrEqual(t, split.RoyaltyCents, int64(0))
		assert.LessOrEqual(t, split.RoyaltyCents, split.NetCents)
	}
}
