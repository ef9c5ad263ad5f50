package billing

import (
	"math"

	"metergate.org/internal/auth"
)

// Pricing holds the per-unit rates for one tier. Rates are in the invoice
// currency; storage is priced per gigabyte-month.
type Pricing struct {
	BaseFee         float64 `json:"base_fee"`
	RequestRate     float64 `json:"request_rate"`
	ComputeUnitRate float64 `json:"compute_unit_rate"`
	TokenRate       float64 `json:"token_rate"`
	StorageRate     float64 `json:"storage_rate"`
}

// PricingTable maps tiers to rates.
type PricingTable map[auth.Tier]Pricing

// PricingFor returns the tier's rates. An unknown tier is billed at the basic
// tier's rates, a documented default, never free access.
func (t PricingTable) PricingFor(tier auth.Tier) Pricing {
	if p, ok := t[tier]; ok {
		return p
	}
	return t[auth.TierBasic]
}

// DefaultPricing is the shipped rate card.
var DefaultPricing = PricingTable{
	auth.TierFree:         {},
	auth.TierBasic:        {BaseFee: 9.99, RequestRate: 0.001, ComputeUnitRate: 0.01, TokenRate: 0.00002, StorageRate: 0.023},
	auth.TierPro:          {BaseFee: 49.99, RequestRate: 0.0008, ComputeUnitRate: 0.008, TokenRate: 0.000015, StorageRate: 0.021},
	auth.TierProfessional: {BaseFee: 199.99, RequestRate: 0.0005, ComputeUnitRate: 0.006, TokenRate: 0.00001, StorageRate: 0.019},
	auth.TierEnterprise:   {BaseFee: 999.99, RequestRate: 0.0002, ComputeUnitRate: 0.004, TokenRate: 0.000005, StorageRate: 0.015},
}

const bytesPerGB = 1 << 30

// round2 rounds to 2 decimals. Each cost term is rounded independently before
// summing; summing first and rounding once diverges on fractional cents.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
