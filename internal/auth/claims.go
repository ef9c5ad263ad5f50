package auth

import (
	"strings"
	"time"
)

// Role is an identity's administrative level, independent of subscription
// tier. Roles are totally ordered for escalation checks.
type Role string

const (
	RoleUser       Role = "user"
	RolePremium    Role = "premium"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

var roleRank = map[Role]int{
	RoleUser:       1,
	RolePremium:    2,
	RoleModerator:  3,
	RoleAdmin:      4,
	RoleSuperadmin: 5,
}

// Known reports whether the role is part of the fixed enumeration.
func (r Role) Known() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role ranks at or above min. Unknown roles rank
// below every known role.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min] && roleRank[min] > 0
}

// NormalizeRole lower-cases and trims a raw role value.
func NormalizeRole(raw string) Role {
	return Role(strings.ToLower(strings.TrimSpace(raw)))
}

// Tier is a subscription level governing rate limits, pricing and feature
// access. Tiers are totally ordered for minimum-tier checks.
type Tier string

const (
	TierFree         Tier = "free"
	TierBasic        Tier = "basic"
	TierPro          Tier = "pro"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

var tierRank = map[Tier]int{
	TierFree:         1,
	TierBasic:        2,
	TierPro:          3,
	TierProfessional: 4,
	TierEnterprise:   5,
}

// Known reports whether the tier is part of the fixed enumeration.
func (t Tier) Known() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether the tier ranks at or above min. Unknown tiers rank
// below every known tier.
func (t Tier) AtLeast(min Tier) bool {
	return tierRank[t] >= tierRank[min] && tierRank[min] > 0
}

// NormalizeTier lower-cases and trims a raw tier value. "premium" is the
// historical alias for the pro tier and maps onto it.
func NormalizeTier(raw string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(raw)))
	if t == "premium" {
		return TierPro
	}
	return t
}

// TokenType distinguishes access credentials from refresh credentials.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Known reports whether the token type is one of the two supported kinds.
func (tt TokenType) Known() bool {
	return tt == TokenAccess || tt == TokenRefresh
}

// Claims is the decoded, verified payload of a bearer credential. It is a
// request-scoped immutable value: created by Verify and discarded after the
// request completes.
type Claims struct {
	Subject   string
	Role      Role
	Tier      Tier
	TokenType TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string
}
