package auth

import "strings"

type Permission string

const (
	PermReservations Permission = "reservations"
	PermWasteCheck   Permission = "waste_check"
	PermPayments     Permission = "payments"
	PermQuota        Permission = "quota"
	PermPricing      Permission = "pricing"
	PermPromotions   Permission = "promotions"
	PermAnnouncement Permission = "announcements"
	PermFinance      Permission = "finance"
	PermDashboard    Permission = "dashboard"
	PermActivity     Permission = "activity"
)

var apiPermissionMap = map[string]Permission{
	"/api/admin/reservations":                 PermReservations,
	"PATCH /api/admin/reservations/{}/sampah": PermWasteCheck,
	"/api/admin/party-members":                PermReservations,
	"/api/admin/payments":                     PermPayments,
	"/api/admin/quota":                        PermQuota,
	"/api/admin/pricing":                      PermPricing,
	"/api/admin/promotions":                   PermPromotions,
	"/api/admin/announcements":                PermAnnouncement,
	"/api/admin/finance":                      PermFinance,
	"/api/admin/dashboard":                    PermDashboard,
	"/api/admin/activity":                     PermActivity,
}

// Rangers work the trailhead gate: they read reservations and record waste checks.
var rangerPermissions = map[Permission]bool{
	PermWasteCheck: true,
	PermDashboard:  true,
}

var rangerReadOnly = map[Permission]bool{
	PermReservations: true,
	PermQuota:        true,
	PermActivity:     true,
}

// GetPermissionForAPI returns the most specific permission guarding path.
// "{}" in a key matches exactly one path segment.
func GetPermissionForAPI(path string, method string) *Permission {
	method = strings.ToUpper(strings.TrimSpace(method))

	var bestPath string
	var bestPerm *Permission
	var bestMethodSpecific bool

	for key, perm := range apiPermissionMap {
		keyPath := key
		methodSpecific := false
		if strings.Contains(key, " ") {
			parts := strings.SplitN(key, " ", 2)
			keyMethod := strings.ToUpper(strings.TrimSpace(parts[0]))
			keyPath = strings.TrimSpace(parts[1])
			methodSpecific = true
			if method == "" || method != keyMethod {
				continue
			}
		}

		if !matchPrefix(path, keyPath) {
			continue
		}

		if bestPerm == nil || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
			permCopy := perm
			bestPerm = &permCopy
		}
	}

	return bestPerm
}

// Allowed reports whether role may call method on path.
func Allowed(role Role, path string, method string) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleRanger:
		perm := GetPermissionForAPI(path, method)
		if perm == nil {
			return false
		}
		if rangerPermissions[*perm] {
			return true
		}
		return rangerReadOnly[*perm] && strings.EqualFold(method, "GET")
	default:
		return false
	}
}

func matchPrefix(path, pattern string) bool {
	pathParts := strings.Split(strings.Trim(path, "/"), "/")
	patternParts := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(pathParts) < len(patternParts) {
		return false
	}
	for i, part := range patternParts {
		if part == "{}" {
			if pathParts[i] == "" {
				return false
			}
			continue
		}
		if pathParts[i] != part {
			return false
		}
	}
	return true
}
