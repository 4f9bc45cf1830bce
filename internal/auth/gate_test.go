package auth_test

import (
	"context"
	"sync"
	"testing"

	"fleetgov.org/internal/auth"
)

type captureRecorder struct {
	mu     sync.Mutex
	events []auth.Event
}

func (r *captureRecorder) Record(_ context.Context, ev auth.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *captureRecorder) count(action string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Action == action {
			n++
		}
	}
	return n
}

func newGateFixture(t *testing.T) (*fixture, *auth.Gate, *captureRecorder) {
	t.Helper()
	rec := &captureRecorder{}
	fx := newFixture(t, auth.WithAudit(rec))

	scope, err := auth.NewScope([]auth.OrgUnit{
		{ID: 1, Name: "Ministry HQ"},
		{ID: 7, ParentID: 1, Name: "Nairobi Region"},
		{ID: 9, ParentID: 1, Name: "Coast Region"},
	})
	if err != nil {
		t.Fatalf("NewScope: %v", err)
	}
	gate, err := auth.NewGate(fx.svc, scope, rec)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return fx, gate, rec
}

// The worked example from the permission model: a fleet manager in
// organization 7.
func TestAuthorizeFleetManagerMatrix(t *testing.T) {
	fx, gate, rec := newGateFixture(t)
	ctx := context.Background()
	token := fx.authenticate(t)

	cases := []struct {
		name       string
		permission string
		targetOrg  int64
		allow      bool
		reason     auth.DenyReason
	}{
		{"own org, in-set permission", auth.PermAssignVehicle, 7, true, ""},
		{"foreign org, no cross-org capability", auth.PermAssignVehicle, 9, false, auth.DenyOutOfScope},
		{"permission outside role set", auth.PermAuditUserAccounts, 7, false, auth.DenyInsufficientPermission},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, dec, err := gate.Authorize(ctx, token, c.permission, c.targetOrg)
			if err != nil {
				t.Fatalf("Authorize: %v", err)
			}
			if dec.Allow != c.allow || dec.Reason != c.reason {
				t.Fatalf("decision = %+v, want allow=%v reason=%q", dec, c.allow, c.reason)
			}
		})
	}

	if denies := rec.count("auth.deny"); denies != 2 {
		t.Fatalf("expected 2 audited denials, got %d", denies)
	}
}

func TestAuthorizeCrossOrganizationCapability(t *testing.T) {
	fx, gate, _ := newGateFixture(t)
	ctx := context.Background()

	cs := fx.seedOfficial(t, "100001", auth.RoleCabinetSecretary, 1, true)

	fm, err := fx.store.Officials().Find(ctx, 1)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	// HQ reaches descendants by scope alone; cross_organization also covers
	// units the tree does not connect to the actor at all.
	if dec := gate.AuthorizeOfficial(ctx, cs, auth.PermApproveBooking, 9); !dec.Allow {
		t.Fatalf("cabinet secretary denied in-tree: %+v", dec)
	}
	if dec := gate.AuthorizeOfficial(ctx, cs, auth.PermApproveBooking, 99); !dec.Allow {
		t.Fatalf("cross-organization capability ignored: %+v", dec)
	}
	if dec := gate.AuthorizeOfficial(ctx, fm, auth.PermAssignVehicle, 9); dec.Allow {
		t.Fatalf("fleet manager crossed organizational scope")
	}
}

func TestAuthorizeUnauthenticated(t *testing.T) {
	fx, gate, rec := newGateFixture(t)
	ctx := context.Background()

	_, dec, err := gate.Authorize(ctx, "bogus-token", auth.PermAssignVehicle, 7)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if dec.Allow || dec.Reason != auth.DenyUnauthenticated {
		t.Fatalf("decision = %+v, want unauthenticated deny", dec)
	}

	// A revoked session is just as unauthenticated.
	token := fx.authenticate(t)
	if err := fx.svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	_, dec, err = gate.Authorize(ctx, token, auth.PermAssignVehicle, 7)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if dec.Allow || dec.Reason != auth.DenyUnauthenticated {
		t.Fatalf("decision = %+v, want unauthenticated deny", dec)
	}

	if rec.count("auth.deny") == 0 {
		t.Fatalf("denials were not audited")
	}
}

func TestDecisionErrMapping(t *testing.T) {
	if err := auth.Allowed.Err(); err != nil {
		t.Fatalf("Allowed.Err() = %v", err)
	}
	cases := map[auth.DenyReason]error{
		auth.DenyUnauthenticated:        auth.ErrInvalidToken,
		auth.DenyInsufficientPermission: auth.ErrInsufficientPermission,
		auth.DenyOutOfScope:             auth.ErrOutOfScope,
	}
	for reason, want := range cases {
		if got := auth.Denied(reason).Err(); got != want {
			t.Fatalf("Denied(%s).Err() = %v, want %v", reason, got, want)
		}
	}
}
