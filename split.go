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
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/paysplit/royalty/model"
)

// ErrSplitInvariant marks a split that cannot be computed from the inputs.
// It points at bad data and is never retried.
var ErrSplitInvariant = errors.New("royalty split invariant violated")

var hundred = decimal.NewFromInt(100)

// Split is the division of a paid order in integer cents.
type Split struct {
	TotalCents     int64 `json:"total_cents"`
	FeeCents       int64 `json:"fee_cents"`
	NetCents       int64 `json:"net_cents"`
	RoyaltyCents   int64 `json:"royalty_cents"`
	PrincipalCents int64 `json:"principal_cents"`
}

// maxSplitCents keeps total * feePermille within int64.
var maxSplitCents = decimal.NewFromInt(math.MaxInt64 / 1000)

// CalculateSplit divides amount between the beneficiary and the payee of record.
//
// The handling fee is taken out of the total before the royalty rate applies:
//
//	fee       = floor(total * feePermille / 1000)
//	royalty   = floor((total - fee) * rate / 100)
//	principal = total - royalty
//
// principal is always derived from royalty so the two add up to the total.
func CalculateSplit(amount decimal.Decimal, mode model.RoyaltyMode, rate decimal.Decimal, feePermille int) (Split, error) {
	if amount.IsNegative() {
		return Split{}, fmt.Errorf("%w: negative amount %s", ErrSplitInvariant, amount.String())
	}
	if feePermille < 0 || feePermille > 1000 {
		return Split{}, fmt.Errorf("%w: handling fee %d‰ out of range", ErrSplitInvariant, feePermille)
	}

	cents := amount.Shift(2).Round(0)
	if cents.GreaterThan(maxSplitCents) {
		return Split{}, fmt.Errorf("%w: amount %s exceeds the supported range", ErrSplitInvariant, amount.String())
	}
	total := cents.IntPart()
	fee := total * int64(feePermille) / 1000
	split := Split{TotalCents: total, FeeCents: fee, NetCents: total - fee}

	if mode != model.RoyaltyModeNone {
		if rate.IsNegative() || rate.GreaterThan(hundred) {
			return Split{}, fmt.Errorf("%w: royalty rate %s out of range", ErrSplitInvariant, rate.String())
		}
		split.RoyaltyCents = decimal.NewFromInt(split.NetCents).Mul(rate).Div(hundred).Floor().IntPart()
	}
	split.PrincipalCents = total - split.RoyaltyCents

	if err := split.check(); err != nil {
		return Split{}, err
	}
	return split, nil
}

func (s Split) check() error {
	switch {
	case s.FeeCents < 0 || s.FeeCents > s.TotalCents:
		return fmt.Errorf("%w: fee %d exceeds total %d", ErrSplitInvariant, s.FeeCents, s.TotalCents)
	case s.RoyaltyCents < 0 || s.RoyaltyCents > s.NetCents:
		return fmt.Errorf("%w: royalty %d outside net %d", ErrSplitInvariant, s.RoyaltyCents, s.NetCents)
	case s.PrincipalCents < 0:
		return fmt.Errorf("%w: negative principal %d", ErrSplitInvariant, s.PrincipalCents)
	case s.RoyaltyCents+s.PrincipalCents != s.TotalCents:
		return fmt.Errorf("%w: %d + %d != %d", ErrSplitInvariant, s.RoyaltyCents, s.PrincipalCents, s.TotalCents)
	}
	return nil
}
