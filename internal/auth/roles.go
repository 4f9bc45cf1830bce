package auth

import "sort"

// Role names one official variant. Each variant binds a hierarchical level
// constant and a static permission set; behavior differences between roles
// are expressed as capability tags checked by the gate, never as per-role
// code paths.
type Role string

const (
	RoleCabinetSecretary    Role = "cabinet_secretary"
	RolePrincipalSecretary  Role = "principal_secretary"
	RoleTransportDirector   Role = "transport_director"
	RoleRegionalCoordinator Role = "regional_coordinator"
	RoleFleetManager        Role = "fleet_manager"
	RoleTransportOfficer    Role = "transport_officer"
	RoleDriver              Role = "driver"
)

// Capability tags. A tag names one grantable permission; the gate treats them
// as opaque strings.
const (
	PermAssignVehicle          = "assign_vehicle"
	PermApproveBooking         = "approve_booking"
	PermScheduleMaintenance    = "schedule_maintenance"
	PermViewFleetReports       = "view_fleet_reports"
	PermAuditUserAccounts      = "audit_user_accounts"
	PermManageOfficials        = "manage_officials"
	PermGovernanceIntervention = "governance_intervention"
	PermBudgetOversight        = "budget_oversight"
	PermRequestVehicle         = "request_vehicle"
	PermLogTrip                = "log_trip"

	// PermCrossOrganization lets a role act on units outside its own
	// organizational scope.
	PermCrossOrganization = "cross_organization"
)

type roleDefinition struct {
	level       int
	permissions map[string]struct{}
}

// roleTable is process-wide static state: populated here, read-only
// thereafter, so concurrent reads need no locking. Adding a role means
// adding an entry.
var roleTable = map[Role]roleDefinition{
	RoleCabinetSecretary: {level: 1, permissions: permSet(
		PermGovernanceIntervention, PermBudgetOversight, PermAuditUserAccounts,
		PermManageOfficials, PermViewFleetReports, PermApproveBooking,
		PermCrossOrganization,
	)},
	RolePrincipalSecretary: {level: 2, permissions: permSet(
		PermBudgetOversight, PermAuditUserAccounts, PermManageOfficials,
		PermViewFleetReports, PermCrossOrganization,
	)},
	RoleTransportDirector: {level: 3, permissions: permSet(
		PermManageOfficials, PermViewFleetReports, PermApproveBooking,
		PermScheduleMaintenance,
	)},
	RoleRegionalCoordinator: {level: 4, permissions: permSet(
		PermViewFleetReports, PermApproveBooking, PermScheduleMaintenance,
	)},
	RoleFleetManager: {level: 5, permissions: permSet(
		PermAssignVehicle, PermScheduleMaintenance, PermApproveBooking,
	)},
	RoleTransportOfficer: {level: 6, permissions: permSet(
		PermRequestVehicle, PermLogTrip,
	)},
	RoleDriver: {level: 7, permissions: permSet(
		PermLogTrip,
	)},
}

func permSet(tags ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return set
}

// IsValidRole reports whether the role exists in the table.
func IsValidRole(r Role) bool {
	_, ok := roleTable[r]
	return ok
}

// LevelOf returns the hierarchical level constant for the role. Lower values
// denote greater authority. Unknown roles sort below every real one.
func LevelOf(r Role) int {
	def, ok := roleTable[r]
	if !ok {
		return int(^uint(0) >> 1)
	}
	return def.level
}

// Outranks reports whether role a holds authority over role b.
func Outranks(a, b Role) bool {
	return LevelOf(a) < LevelOf(b)
}

// HasPermission reports whether the role's static set contains the tag.
func HasPermission(r Role, permission string) bool {
	def, ok := roleTable[r]
	if !ok {
		return false
	}
	_, ok = def.permissions[permission]
	return ok
}

// PermissionsFor returns the role's capability tags, sorted for stable
// output. The returned slice is a copy.
func PermissionsFor(r Role) []string {
	def, ok := roleTable[r]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(def.permissions))
	for tag := range def.permissions {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Roles returns every known role, most senior first.
func Roles() []Role {
	out := make([]Role, 0, len(roleTable))
	for r := range roleTable {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return LevelOf(out[i]) < LevelOf(out[j]) })
	return out
}
