package authz

import (
	"context"
	"errors"
	"testing"

	"metergate.org/internal/audit"
	"metergate.org/internal/auth"
)

var allTiers = []auth.Tier{
	auth.TierFree, auth.TierBasic, auth.TierPro, auth.TierProfessional, auth.TierEnterprise,
}

var allRoles = []auth.Role{
	auth.RoleUser, auth.RolePremium, auth.RoleModerator, auth.RoleAdmin, auth.RoleSuperadmin,
}

func newTestResolver() *Resolver {
	return NewResolver(audit.NopEmitter{})
}

func TestEffectivePermissionsMonotonicUnion(t *testing.T) {
	r := newTestResolver()
	for _, tier := range allTiers {
		base := r.EffectivePermissions(tier, auth.RoleUser)
		tierOnly := TierPermissions(tier)
		for _, role := range allRoles {
			effective := r.EffectivePermissions(tier, role)
			for p := range base {
				if !effective.Has(p) {
					t.Fatalf("effective(%s,%s) lost %s granted to plain users", tier, role, p)
				}
			}
			for p := range tierOnly {
				if !effective.Has(p) {
					t.Fatalf("effective(%s,%s) lost tier permission %s", tier, role, p)
				}
			}
		}
	}
}

func TestUnknownTierAndRoleContributeNothing(t *testing.T) {
	r := newTestResolver()
	if got := r.EffectivePermissions("bogus", "phantom"); len(got) != 0 {
		t.Fatalf("unknown tier/role must yield the empty set, got %v", got.Sorted())
	}
	if got := r.EffectivePermissions("bogus", auth.RoleAdmin); !got.Has(PermAdminUsers) {
		t.Fatalf("role permissions must survive an unknown tier")
	}
}

func TestRequirePermissionDenialCarriesRequiredPermission(t *testing.T) {
	r := newTestResolver()
	claims := auth.Claims{Subject: "u1", Role: auth.RoleUser, Tier: auth.TierFree}

	err := r.RequirePermission(context.Background(), claims, PermAIAdvanced)
	if err == nil {
		t.Fatalf("free tier must not hold %s", PermAIAdvanced)
	}
	var denial *DenialError
	if !errors.As(err, &denial) {
		t.Fatalf("expected DenialError, got %T", err)
	}
	if denial.Kind != DenialMissingPermission || denial.RequiredPermission != PermAIAdvanced {
		t.Fatalf("denial missing context: %+v", denial)
	}
	if denial.Details()["required_permission"] != PermAIAdvanced {
		t.Fatalf("details must carry required_permission")
	}
}

func TestAdminBypassesTierButNeverRoleMinimums(t *testing.T) {
	r := newTestResolver()
	adminOnFree := auth.Claims{Subject: "a1", Role: auth.RoleAdmin, Tier: auth.TierFree}

	if err := r.RequireTier(context.Background(), adminOnFree, auth.TierEnterprise); err != nil {
		t.Fatalf("admin must bypass tier minimums, got %v", err)
	}
	if err := r.RequireRole(context.Background(), adminOnFree, auth.RoleSuperadmin); err == nil {
		t.Fatalf("admin must not bypass role minimums")
	}

	enterpriseUser := auth.Claims{Subject: "u2", Role: auth.RoleUser, Tier: auth.TierEnterprise}
	if err := r.RequireTier(context.Background(), enterpriseUser, auth.TierPro); err != nil {
		t.Fatalf("enterprise satisfies pro minimum, got %v", err)
	}
	basicUser := auth.Claims{Subject: "u3", Role: auth.RoleUser, Tier: auth.TierBasic}
	err := r.RequireTier(context.Background(), basicUser, auth.TierProfessional)
	var denial *DenialError
	if !errors.As(err, &denial) || denial.Kind != DenialInsufficientTier {
		t.Fatalf("expected insufficient tier denial, got %v", err)
	}
	if denial.RequiredTier != auth.TierProfessional || denial.ActualTier != auth.TierBasic {
		t.Fatalf("denial missing tier context: %+v", denial)
	}
}

func TestDenialsEmitAuditEvents(t *testing.T) {
	sink := &captureEmitter{}
	r := NewResolver(sink)
	claims := auth.Claims{Subject: "u1", Role: auth.RoleUser, Tier: auth.TierFree}

	_ = r.RequirePermission(context.Background(), claims, PermAdminSystem)
	_ = r.RequireRole(context.Background(), claims, auth.RoleModerator)

	if len(sink.events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(sink.events))
	}
	for _, ev := range sink.events {
		if ev.EventType != "authorization_denied" || ev.Outcome != audit.OutcomeDenied {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.ActorID != "u1" {
			t.Fatalf("event must carry the actor id")
		}
	}
}

type captureEmitter struct {
	events []audit.Event
}

func (c *captureEmitter) Emit(ctx context.Context, ev audit.Event) {
	c.events = append(c.events, ev)
}
