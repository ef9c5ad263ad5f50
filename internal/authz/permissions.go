package authz

import (
	"sort"

	"metergate.org/internal/auth"
)

// Capability tokens gated by subscription tier or role.
const (
	PermAIBasic      = "ai:basic"
	PermAIStandard   = "ai:standard"
	PermAIAdvanced   = "ai:advanced"
	PermAIPremium    = "ai:premium"
	PermAIEnterprise = "ai:enterprise"

	PermScrapeBasic     = "scrape:basic"
	PermScrapeStandard  = "scrape:standard"
	PermScrapeAdvanced  = "scrape:advanced"
	PermScrapeUnlimited = "scrape:unlimited"

	PermExportData      = "export:data"
	PermCustomModels    = "custom:models"
	PermPrioritySupport = "priority:support"

	PermModerateContent = "moderate:content"
	PermViewReports     = "view:reports"
	PermViewAllUsage    = "view:all_usage"
	PermAdminUsers      = "admin:users"
	PermAdminBilling    = "admin:billing"
	PermAdminSystem     = "admin:system"
	PermRevokeTokens    = "admin:revoke_tokens"
)

// PermissionSet is a set of capability tokens.
type PermissionSet map[string]struct{}

// Has reports whether the set contains the permission.
func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Sorted returns the permissions in stable order for logs and responses.
func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func setOf(perms ...string) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

func union(sets ...PermissionSet) PermissionSet {
	out := PermissionSet{}
	for _, s := range sets {
		for p := range s {
			out[p] = struct{}{}
		}
	}
	return out
}

// tierPermissions maps each tier to its full capability set. Higher tiers
// include everything below them.
var tierPermissions = map[auth.Tier]PermissionSet{
	auth.TierFree: setOf(PermAIBasic),
	auth.TierBasic: setOf(
		PermAIBasic, PermAIStandard, PermScrapeBasic,
	),
	auth.TierPro: setOf(
		PermAIBasic, PermAIStandard, PermAIAdvanced,
		PermScrapeBasic, PermScrapeStandard, PermExportData,
	),
	auth.TierProfessional: setOf(
		PermAIBasic, PermAIStandard, PermAIAdvanced, PermAIPremium,
		PermScrapeBasic, PermScrapeStandard, PermScrapeAdvanced,
		PermExportData, PermPrioritySupport,
	),
	auth.TierEnterprise: setOf(
		PermAIBasic, PermAIStandard, PermAIAdvanced, PermAIPremium, PermAIEnterprise,
		PermScrapeBasic, PermScrapeStandard, PermScrapeAdvanced, PermScrapeUnlimited,
		PermExportData, PermPrioritySupport, PermCustomModels,
	),
}

// rolePermissions maps each role to the capabilities it grants on top of the
// tier set.
var rolePermissions = map[auth.Role]PermissionSet{
	auth.RoleUser:      setOf(),
	auth.RolePremium:   setOf(PermPrioritySupport),
	auth.RoleModerator: setOf(PermModerateContent, PermViewReports),
	auth.RoleAdmin: setOf(
		PermModerateContent, PermViewReports,
		PermViewAllUsage, PermAdminUsers, PermAdminBilling,
	),
	auth.RoleSuperadmin: setOf(
		PermModerateContent, PermViewReports,
		PermViewAllUsage, PermAdminUsers, PermAdminBilling,
		PermAdminSystem, PermRevokeTokens,
	),
}

// TierPermissions returns a copy of the capability set for a tier. Unknown
// tiers yield the empty set.
func TierPermissions(tier auth.Tier) PermissionSet {
	return union(tierPermissions[tier])
}

// RolePermissions returns a copy of the capability set for a role. Unknown
// roles yield the empty set.
func RolePermissions(role auth.Role) PermissionSet {
	return union(rolePermissions[role])
}
