package auth

import "testing"

func TestOutranks(t *testing.T) {
	if !Outranks(RoleCabinetSecretary, RoleFleetManager) {
		t.Fatalf("cabinet secretary should outrank fleet manager")
	}
	if Outranks(RoleFleetManager, RoleCabinetSecretary) {
		t.Fatalf("fleet manager should not outrank cabinet secretary")
	}
	if Outranks(RoleDriver, RoleDriver) {
		t.Fatalf("a role does not outrank itself")
	}
	if Outranks(Role("intern"), RoleDriver) {
		t.Fatalf("unknown role outranks nothing")
	}
}

func TestLevelConstants(t *testing.T) {
	cases := map[Role]int{
		RoleCabinetSecretary:    1,
		RolePrincipalSecretary:  2,
		RoleTransportDirector:   3,
		RoleRegionalCoordinator: 4,
		RoleFleetManager:        5,
		RoleTransportOfficer:    6,
		RoleDriver:              7,
	}
	for role, want := range cases {
		if got := LevelOf(role); got != want {
			t.Fatalf("LevelOf(%s) = %d, want %d", role, got, want)
		}
	}
}

func TestRolePermissionSets(t *testing.T) {
	if !HasPermission(RoleFleetManager, PermAssignVehicle) {
		t.Fatalf("fleet manager assigns vehicles")
	}
	if HasPermission(RoleFleetManager, PermAuditUserAccounts) {
		t.Fatalf("fleet manager must not audit user accounts")
	}
	if HasPermission(RoleFleetManager, PermCrossOrganization) {
		t.Fatalf("fleet manager is bound to its own unit")
	}
	if !HasPermission(RoleCabinetSecretary, PermCrossOrganization) {
		t.Fatalf("cabinet secretary acts across organizations")
	}
	if !HasPermission(RoleCabinetSecretary, PermGovernanceIntervention) {
		t.Fatalf("governance intervention belongs to the cabinet secretary")
	}
	if HasPermission(Role("intern"), PermLogTrip) {
		t.Fatalf("unknown roles hold no permissions")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range Roles() {
		if !IsValidRole(r) {
			t.Fatalf("role %s missing from table", r)
		}
	}
	if IsValidRole(Role("intern")) {
		t.Fatalf("unexpected role")
	}
}

func TestPermissionsForIsACopy(t *testing.T) {
	first := PermissionsFor(RoleDriver)
	if len(first) != 1 || first[0] != PermLogTrip {
		t.Fatalf("unexpected driver permissions: %v", first)
	}
	first[0] = "mutated"
	if again := PermissionsFor(RoleDriver); again[0] != PermLogTrip {
		t.Fatalf("PermissionsFor leaked internal state: %v", again)
	}
}

func TestRolesOrderedBySeniority(t *testing.T) {
	roles := Roles()
	if len(roles) != 7 {
		t.Fatalf("expected 7 roles, got %d", len(roles))
	}
	if roles[0] != RoleCabinetSecretary || roles[len(roles)-1] != RoleDriver {
		t.Fatalf("unexpected ordering: %v", roles)
	}
}
