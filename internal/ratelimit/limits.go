package ratelimit

import "metergate.org/internal/auth"

// Limits holds per-window ceilings for one tier. Zero means unlimited.
type Limits struct {
	PerMinute int64
	PerHour   int64
	PerDay    int64
}

// ForWindow returns the ceiling for a window.
func (l Limits) ForWindow(w Window) int64 {
	switch w {
	case WindowMinute:
		return l.PerMinute
	case WindowHour:
		return l.PerHour
	case WindowDay:
		return l.PerDay
	default:
		return 0
	}
}

// Hourly builds Limits from an unqualified ceiling. A bare limit is an hourly
// ceiling unless minute or day overrides are supplied explicitly.
func Hourly(n int64) Limits {
	return Limits{PerHour: n}
}

// LimitSource resolves the ceilings for a tier. Lookups happen at admission
// time, never cached, so a tier change applies on the next request.
type LimitSource interface {
	LimitsFor(tier auth.Tier) Limits
}

// TierLimitTable is the static tier-to-ceilings mapping.
type TierLimitTable map[auth.Tier]Limits

// LimitsFor returns the tier's ceilings. Unknown tiers get the free tier's
// ceilings, the most restrictive known set, never unlimited.
func (t TierLimitTable) LimitsFor(tier auth.Tier) Limits {
	if limits, ok := t[tier]; ok {
		return limits
	}
	return t[auth.TierFree]
}

// DefaultLimits is the shipped tier ceiling table.
var DefaultLimits = TierLimitTable{
	auth.TierFree:         {PerMinute: 10, PerHour: 100, PerDay: 500},
	auth.TierBasic:        {PerMinute: 60, PerHour: 1_000, PerDay: 10_000},
	auth.TierPro:          {PerMinute: 300, PerHour: 5_000, PerDay: 50_000},
	auth.TierProfessional: {PerMinute: 600, PerHour: 20_000, PerDay: 200_000},
	auth.TierEnterprise:   {},
}
