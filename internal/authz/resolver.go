package authz

import (
	"context"

	"metergate.org/internal/audit"
	"metergate.org/internal/auth"
	"metergate.org/internal/obs"
)

// Resolver maps tier and role to effective permissions and enforces the
// hierarchy rules. All checks operate on signed Claims fields only, never on
// client-supplied headers. Resolution is pure and total: unknown tiers or
// roles contribute the empty set and never default to elevated access.
type Resolver struct {
	emitter audit.Emitter
}

// NewResolver constructs a Resolver emitting denial events to the given sink.
func NewResolver(emitter audit.Emitter) *Resolver {
	if emitter == nil {
		emitter = audit.NopEmitter{}
	}
	return &Resolver{emitter: emitter}
}

// EffectivePermissions returns union(tierPermissions, rolePermissions). The
// result is a fresh set the caller may modify.
func (r *Resolver) EffectivePermissions(tier auth.Tier, role auth.Role) PermissionSet {
	return union(tierPermissions[tier], rolePermissions[role])
}

// HasPermission reports whether the claims grant the capability.
func (r *Resolver) HasPermission(claims auth.Claims, perm string) bool {
	return r.EffectivePermissions(claims.Tier, claims.Role).Has(perm)
}

// RequirePermission returns a DenialError when the claims lack the
// capability. Every denial is emitted as a structured audit event before
// returning.
func (r *Resolver) RequirePermission(ctx context.Context, claims auth.Claims, perm string) error {
	if r.HasPermission(claims, perm) {
		return nil
	}
	denial := &DenialError{
		Kind:               DenialMissingPermission,
		RequiredPermission: perm,
		ActualRole:         claims.Role,
		ActualTier:         claims.Tier,
	}
	r.deny(ctx, claims, denial)
	return denial
}

// RequireRole enforces a minimum role. No role ever bypasses role minimums.
func (r *Resolver) RequireRole(ctx context.Context, claims auth.Claims, min auth.Role) error {
	if claims.Role.AtLeast(min) {
		return nil
	}
	denial := &DenialError{
		Kind:         DenialInsufficientRole,
		RequiredRole: min,
		ActualRole:   claims.Role,
		ActualTier:   claims.Tier,
	}
	r.deny(ctx, claims, denial)
	return denial
}

// RequireTier enforces a minimum subscription tier. Admins and superadmins
// bypass tier minimums, an explicit business rule independent of role
// minimums.
func (r *Resolver) RequireTier(ctx context.Context, claims auth.Claims, min auth.Tier) error {
	if claims.Role.AtLeast(auth.RoleAdmin) {
		return nil
	}
	if claims.Tier.AtLeast(min) {
		return nil
	}
	denial := &DenialError{
		Kind:         DenialInsufficientTier,
		RequiredTier: min,
		ActualRole:   claims.Role,
		ActualTier:   claims.Tier,
	}
	r.deny(ctx, claims, denial)
	return denial
}

func (r *Resolver) deny(ctx context.Context, claims auth.Claims, denial *DenialError) {
	obs.AuthzDenial(string(denial.Kind))
	details := denial.Details()
	details["reason"] = string(denial.Kind)
	r.emitter.Emit(ctx, audit.Event{
		EventType: "authorization_denied",
		ActorID:   claims.Subject,
		Resource:  "capability",
		Action:    "authorize",
		Outcome:   audit.OutcomeDenied,
		Severity:  audit.SeverityWarning,
		Details:   details,
	})
}
