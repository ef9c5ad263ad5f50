package authz

import (
	"fmt"

	"metergate.org/internal/auth"
)

// DenialKind identifies why authorization was refused.
type DenialKind string

const (
	DenialMissingPermission DenialKind = "missing_permission"
	DenialInsufficientRole  DenialKind = "insufficient_role"
	DenialInsufficientTier  DenialKind = "insufficient_tier"
)

// DenialError is the typed failure value returned for expected authorization
// denials. It carries the missing permission, role or tier so the calling
// layer can surface it.
type DenialError struct {
	Kind               DenialKind
	RequiredPermission string
	RequiredRole       auth.Role
	RequiredTier       auth.Tier
	ActualRole         auth.Role
	ActualTier         auth.Tier
}

func (e *DenialError) Error() string {
	switch e.Kind {
	case DenialMissingPermission:
		return fmt.Sprintf("authz: missing permission %s", e.RequiredPermission)
	case DenialInsufficientRole:
		return fmt.Sprintf("authz: role %s required, have %s", e.RequiredRole, e.ActualRole)
	case DenialInsufficientTier:
		return fmt.Sprintf("authz: tier %s required, have %s", e.RequiredTier, e.ActualTier)
	default:
		return "authz: denied"
	}
}

// Details returns the structured fields the HTTP boundary embeds in denial
// responses.
func (e *DenialError) Details() map[string]any {
	details := map[string]any{}
	switch e.Kind {
	case DenialMissingPermission:
		details["required_permission"] = e.RequiredPermission
	case DenialInsufficientRole:
		details["required_role"] = string(e.RequiredRole)
		details["current_role"] = string(e.ActualRole)
	case DenialInsufficientTier:
		details["required_tier"] = string(e.RequiredTier)
		details["current_tier"] = string(e.ActualTier)
	}
	return details
}
