package auth

import (
	"context"
	"errors"

	"fleetgov.org/internal/obs"
)

// DenyReason classifies why an authorization was refused.
type DenyReason string

const (
	DenyUnauthenticated        DenyReason = "unauthenticated"
	DenyInsufficientPermission DenyReason = "insufficient_permission"
	DenyOutOfScope             DenyReason = "out_of_scope"
)

// Decision is the outcome of one authorization check.
type Decision struct {
	Allow  bool
	Reason DenyReason
}

// Allowed is the positive decision.
var Allowed = Decision{Allow: true}

// Denied builds a negative decision.
func Denied(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// Err maps the decision onto the error taxonomy. Allow yields nil.
func (d Decision) Err() error {
	switch d.Reason {
	case DenyUnauthenticated:
		return ErrInvalidToken
	case DenyInsufficientPermission:
		return ErrInsufficientPermission
	case DenyOutOfScope:
		return ErrOutOfScope
	}
	return nil
}

// Gate composes the authenticator, the role table and the organizational
// scope into the single authorize decision the request layer consumes. Every
// denial is handed to the audit collaborator.
type Gate struct {
	svc   *Service
	scope *Scope
	audit Recorder
}

// NewGate wires a gate. audit may be nil.
func NewGate(svc *Service, scope *Scope, audit Recorder) (*Gate, error) {
	if svc == nil {
		return nil, errors.New("auth: service is required")
	}
	if scope == nil {
		return nil, errors.New("auth: organizational scope is required")
	}
	if audit == nil {
		audit = NopRecorder{}
	}
	return &Gate{svc: svc, scope: scope, audit: audit}, nil
}

// Authorize evaluates the three mandatory checks in order — live session and
// active account, permission membership, organizational reach — and
// short-circuits on the first failure. The error return is reserved for
// infrastructure trouble; policy outcomes arrive in the Decision.
func (g *Gate) Authorize(ctx context.Context, token, permission string, targetOrgID int64) (*Official, Decision, error) {
	official, err := g.svc.ValidateToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrAccountInactive) {
			g.deny(ctx, nil, permission, targetOrgID, DenyUnauthenticated)
			return nil, Denied(DenyUnauthenticated), nil
		}
		return nil, Decision{}, err
	}

	dec := g.AuthorizeOfficial(ctx, official, permission, targetOrgID)
	return official, dec, nil
}

// AuthorizeOfficial runs the permission and scope checks for an official
// whose session was already validated (middleware typically does the token
// step once per request).
func (g *Gate) AuthorizeOfficial(ctx context.Context, official *Official, permission string, targetOrgID int64) Decision {
	if official == nil || !official.Active {
		g.deny(ctx, official, permission, targetOrgID, DenyUnauthenticated)
		return Denied(DenyUnauthenticated)
	}
	if !HasPermission(official.Role, permission) {
		g.deny(ctx, official, permission, targetOrgID, DenyInsufficientPermission)
		return Denied(DenyInsufficientPermission)
	}
	if !g.scope.CanAct(official.OrganizationID, targetOrgID) &&
		!HasPermission(official.Role, PermCrossOrganization) {
		g.deny(ctx, official, permission, targetOrgID, DenyOutOfScope)
		return Denied(DenyOutOfScope)
	}
	return Allowed
}

func (g *Gate) deny(ctx context.Context, official *Official, permission string, targetOrgID int64, reason DenyReason) {
	obs.AuthorizationDenials.WithLabelValues(string(reason)).Inc()
	ev := Event{
		At:          g.svc.now().UTC(),
		Action:      "auth.deny",
		Permission:  permission,
		TargetOrgID: targetOrgID,
		Outcome:     "deny",
		Reason:      string(reason),
	}
	if official != nil {
		ev.OfficialID = official.ID
		ev.PersonalNumber = official.PersonalNumber
	}
	g.audit.Record(ctx, ev)
}
