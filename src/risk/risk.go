// Package risk converts a strategy's capital allocation into an order
// size, scaled by the client's risk profile.
package risk

import (
	"github.com/shopspring/decimal"

	"tradesim/src/model"
)

var hundred = decimal.NewFromInt(100)

// ----- profile multipliers -----

type ProfileSizeConfig struct {
	ConservativeMultiplier decimal.Decimal
	ModerateMultiplier     decimal.Decimal
	AggressiveMultiplier   decimal.Decimal
}

// DefaultProfileSizeConfig halves conservative exposure and lets
// aggressive accounts run half again over the allocation.
func DefaultProfileSizeConfig() ProfileSizeConfig {
	return ProfileSizeConfig{
		ConservativeMultiplier: decimal.NewFromFloat(0.5),
		ModerateMultiplier:     decimal.NewFromFloat(1.0),
		AggressiveMultiplier:   decimal.NewFromFloat(1.5),
	}
}

func sizeMultiplierForProfile(profile string, cfg ProfileSizeConfig) decimal.Decimal {
	switch profile {
	case model.RiskProfileConservative:
		return cfg.ConservativeMultiplier
	case model.RiskProfileAggressive:
		return cfg.AggressiveMultiplier
	default:
		return cfg.ModerateMultiplier
	}
}

// ----- public API -----

// SizeForAllocation turns allocationPct percent of the wallet's equity
// into an order size at the given price, scaled by the risk profile.
// Returns zero when the inputs cannot produce a positive size.
func SizeForAllocation(
	equity decimal.Decimal,
	allocationPct decimal.Decimal,
	price decimal.Decimal,
	profile string,
	cfg ProfileSizeConfig,
) decimal.Decimal {
	if !equity.IsPositive() || !allocationPct.IsPositive() || !price.IsPositive() {
		return decimal.Zero
	}

	notional := equity.Mul(allocationPct.DivRound(hundred, 12)).
		Mul(sizeMultiplierForProfile(profile, cfg))

	return notional.DivRound(price, 6)
}
