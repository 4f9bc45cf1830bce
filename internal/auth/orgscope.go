package auth

import "fmt"

// OrgUnit is one node of the organizational tree. ParentID 0 marks a root
// unit (a ministry headquarters, typically).
type OrgUnit struct {
	ID       int64
	ParentID int64
	Name     string
}

// Scope answers reachability questions over the organizational tree. It is
// built once at startup and read-only thereafter, so concurrent checks need
// no locking. Resolution climbs parent pointers: O(depth), never a scan.
type Scope struct {
	parent map[int64]int64
}

// NewScope indexes the unit list. Units referencing an unknown parent or
// forming a cycle are rejected.
func NewScope(units []OrgUnit) (*Scope, error) {
	parent := make(map[int64]int64, len(units))
	for _, u := range units {
		if u.ID == 0 {
			return nil, fmt.Errorf("%w: organization id 0 is reserved", ErrInvalidInput)
		}
		if _, dup := parent[u.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate organization %d", ErrInvalidInput, u.ID)
		}
		parent[u.ID] = u.ParentID
	}
	for _, u := range units {
		if u.ParentID == 0 {
			continue
		}
		if _, ok := parent[u.ParentID]; !ok {
			return nil, fmt.Errorf("%w: organization %d references unknown parent %d",
				ErrInvalidInput, u.ID, u.ParentID)
		}
	}
	s := &Scope{parent: parent}
	for id := range parent {
		if !s.terminates(id) {
			return nil, fmt.Errorf("%w: organization %d is part of a cycle", ErrInvalidInput, id)
		}
	}
	return s, nil
}

// Contains reports whether the unit is known to the tree.
func (s *Scope) Contains(id int64) bool {
	_, ok := s.parent[id]
	return ok
}

// CanAct reports whether target lies within the scope reachable from actor:
// the actor's own unit or any descendant of it. Cross-organization authority
// is a role capability, applied by the gate, not here.
func (s *Scope) CanAct(actorOrg, targetOrg int64) bool {
	if !s.Contains(actorOrg) || !s.Contains(targetOrg) {
		return false
	}
	for id := targetOrg; id != 0; id = s.parent[id] {
		if id == actorOrg {
			return true
		}
	}
	return false
}

func (s *Scope) terminates(id int64) bool {
	steps := 0
	for cur := id; cur != 0; cur = s.parent[cur] {
		steps++
		if steps > len(s.parent) {
			return false
		}
	}
	return true
}
