package processors

import (
	"github.com/santinopnp/PNPtvLive-bot/internal/ledger"
	"github.com/shopspring/decimal"
)

// computeFees derives the breakdown for a gross amount in minor units.
// Rounding is to the nearest whole minor unit, ties half up.
func computeFees(profile Profile, amount int64) ledger.FeeBreakdown {
	rate := decimal.NewFromFloat(profile.PercentFee)
	percentage := decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
	fee := percentage + profile.FixedFee
	return ledger.FeeBreakdown{
		Gross:      amount,
		Fee:        fee,
		Net:        amount - fee,
		FeePercent: profile.PercentFee,
		Processor:  profile.Name,
	}
}
