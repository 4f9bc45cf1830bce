package auth

import (
	"errors"
	"testing"
)

// Ministry HQ (1) -> regional office (2) -> county depot (4)
//                 -> second region    (3)
func testUnits() []OrgUnit {
	return []OrgUnit{
		{ID: 1, Name: "Ministry HQ"},
		{ID: 2, ParentID: 1, Name: "Nairobi Region"},
		{ID: 3, ParentID: 1, Name: "Coast Region"},
		{ID: 4, ParentID: 2, Name: "Westlands Depot"},
	}
}

func TestCanActWithinScope(t *testing.T) {
	scope, err := NewScope(testUnits())
	if err != nil {
		t.Fatalf("NewScope: %v", err)
	}

	cases := []struct {
		actor, target int64
		want          bool
	}{
		{1, 1, true},
		{1, 4, true},  // HQ reaches every descendant
		{2, 4, true},  // region reaches its depot
		{2, 3, false}, // sibling regions are out of reach
		{4, 2, false}, // never upward
		{2, 9, false}, // unknown target
		{9, 2, false}, // unknown actor
	}
	for _, c := range cases {
		if got := scope.CanAct(c.actor, c.target); got != c.want {
			t.Fatalf("CanAct(%d, %d) = %v, want %v", c.actor, c.target, got, c.want)
		}
	}
}

func TestNewScopeRejectsUnknownParent(t *testing.T) {
	_, err := NewScope([]OrgUnit{{ID: 1, ParentID: 99}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewScopeRejectsCycle(t *testing.T) {
	_, err := NewScope([]OrgUnit{
		{ID: 1, ParentID: 2},
		{ID: 2, ParentID: 1},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNewScopeRejectsDuplicates(t *testing.T) {
	_, err := NewScope([]OrgUnit{{ID: 1}, {ID: 1}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
