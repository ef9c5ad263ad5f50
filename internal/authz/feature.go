package authz

import (
	"context"
	"fmt"

	"metergate.org/internal/auth"
)

// FeatureRequest is a tagged variant describing a dynamic capability lookup.
// It replaces string-prefixed keys like "model:<name>" and "tokens:<n>" with
// explicit types evaluated by the resolver.
type FeatureRequest interface {
	feature()
}

// ModelFeature asks whether the caller's tier may use a named model.
type ModelFeature struct {
	Name string
}

// TokenBudgetFeature asks whether a single request may spend n tokens.
type TokenBudgetFeature struct {
	Tokens int64
}

// NamedFeature asks for a plain capability flag.
type NamedFeature struct {
	Flag string
}

func (ModelFeature) feature()       {}
func (TokenBudgetFeature) feature() {}
func (NamedFeature) feature()       {}

// modelMinTier is the minimum subscription tier required per model family.
var modelMinTier = map[string]auth.Tier{
	"swift-mini":   auth.TierFree,
	"swift":        auth.TierBasic,
	"forge":        auth.TierPro,
	"forge-pro":    auth.TierProfessional,
	"forge-max":    auth.TierEnterprise,
	"custom-tuned": auth.TierEnterprise,
}

// tokenBudget is the per-request token ceiling per tier. 0 means unlimited.
var tokenBudget = map[auth.Tier]int64{
	auth.TierFree:         4_096,
	auth.TierBasic:        16_384,
	auth.TierPro:          65_536,
	auth.TierProfessional: 131_072,
	auth.TierEnterprise:   0,
}

// AllowFeature evaluates a feature request against the claims. Unknown models
// and unknown tiers fail closed.
func (r *Resolver) AllowFeature(ctx context.Context, claims auth.Claims, req FeatureRequest) error {
	switch f := req.(type) {
	case ModelFeature:
		min, ok := modelMinTier[f.Name]
		if !ok {
			denial := &DenialError{
				Kind:               DenialMissingPermission,
				RequiredPermission: "model:" + f.Name,
				ActualRole:         claims.Role,
				ActualTier:         claims.Tier,
			}
			r.deny(ctx, claims, denial)
			return denial
		}
		return r.RequireTier(ctx, claims, min)
	case TokenBudgetFeature:
		budget, ok := tokenBudget[claims.Tier]
		if claims.Role.AtLeast(auth.RoleAdmin) {
			return nil
		}
		if !ok || (budget > 0 && f.Tokens > budget) {
			denial := &DenialError{
				Kind:         DenialInsufficientTier,
				RequiredTier: tierForBudget(f.Tokens),
				ActualRole:   claims.Role,
				ActualTier:   claims.Tier,
			}
			r.deny(ctx, claims, denial)
			return denial
		}
		return nil
	case NamedFeature:
		return r.RequirePermission(ctx, claims, f.Flag)
	default:
		return fmt.Errorf("authz: unsupported feature request %T", req)
	}
}

// tierForBudget reports the smallest tier whose token ceiling covers n.
func tierForBudget(n int64) auth.Tier {
	for _, tier := range []auth.Tier{
		auth.TierFree, auth.TierBasic, auth.TierPro, auth.TierProfessional, auth.TierEnterprise,
	} {
		budget := tokenBudget[tier]
		if budget == 0 || n <= budget {
			return tier
		}
	}
	return auth.TierEnterprise
}
