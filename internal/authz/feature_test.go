package authz

import (
	"context"
	"errors"
	"testing"

	"metergate.org/internal/audit"
	"metergate.org/internal/auth"
)

func TestAllowFeatureModel(t *testing.T) {
	r := NewResolver(audit.NopEmitter{})
	freeUser := auth.Claims{Subject: "u1", Role: auth.RoleUser, Tier: auth.TierFree}
	proUser := auth.Claims{Subject: "u2", Role: auth.RoleUser, Tier: auth.TierPro}

	if err := r.AllowFeature(context.Background(), freeUser, ModelFeature{Name: "swift-mini"}); err != nil {
		t.Fatalf("free tier must reach swift-mini: %v", err)
	}
	if err := r.AllowFeature(context.Background(), freeUser, ModelFeature{Name: "forge"}); err == nil {
		t.Fatalf("free tier must not reach forge")
	}
	if err := r.AllowFeature(context.Background(), proUser, ModelFeature{Name: "forge"}); err != nil {
		t.Fatalf("pro tier must reach forge: %v", err)
	}

	err := r.AllowFeature(context.Background(), proUser, ModelFeature{Name: "no-such-model"})
	var denial *DenialError
	if !errors.As(err, &denial) || denial.Kind != DenialMissingPermission {
		t.Fatalf("unknown model must fail closed, got %v", err)
	}
}

func TestAllowFeatureTokenBudget(t *testing.T) {
	r := NewResolver(audit.NopEmitter{})
	freeUser := auth.Claims{Subject: "u1", Role: auth.RoleUser, Tier: auth.TierFree}
	enterprise := auth.Claims{Subject: "u2", Role: auth.RoleUser, Tier: auth.TierEnterprise}
	adminOnFree := auth.Claims{Subject: "a1", Role: auth.RoleAdmin, Tier: auth.TierFree}

	if err := r.AllowFeature(context.Background(), freeUser, TokenBudgetFeature{Tokens: 4096}); err != nil {
		t.Fatalf("budget at the ceiling is allowed: %v", err)
	}
	if err := r.AllowFeature(context.Background(), freeUser, TokenBudgetFeature{Tokens: 4097}); err == nil {
		t.Fatalf("budget above the ceiling must be denied")
	}
	if err := r.AllowFeature(context.Background(), enterprise, TokenBudgetFeature{Tokens: 10_000_000}); err != nil {
		t.Fatalf("enterprise budget is unlimited: %v", err)
	}
	if err := r.AllowFeature(context.Background(), adminOnFree, TokenBudgetFeature{Tokens: 10_000_000}); err != nil {
		t.Fatalf("admins bypass tier ceilings: %v", err)
	}
}

func TestAllowFeatureNamedFlag(t *testing.T) {
	r := NewResolver(audit.NopEmitter{})
	basicUser := auth.Claims{Subject: "u1", Role: auth.RoleUser, Tier: auth.TierBasic}

	if err := r.AllowFeature(context.Background(), basicUser, NamedFeature{Flag: PermScrapeBasic}); err != nil {
		t.Fatalf("basic tier holds %s: %v", PermScrapeBasic, err)
	}
	if err := r.AllowFeature(context.Background(), basicUser, NamedFeature{Flag: PermExportData}); err == nil {
		t.Fatalf("basic tier must not hold %s", PermExportData)
	}
}
