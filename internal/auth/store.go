package auth

import (
	"context"
	"time"
)

// Store bundles the persistence operations the identity subsystem needs.
// Implementations live under internal/store; everything here is keyed by
// official id and must serialize per-official mutation (counter increments,
// challenge replacement) so concurrent logins cannot lose updates.
type Store interface {
	Officials() OfficialStore
	Credentials() CredentialStore
	Challenges() ChallengeStore
	Sessions() SessionStore
}

// OfficialStore manages the officials directory.
type OfficialStore interface {
	Create(ctx context.Context, o *Official) error
	Find(ctx context.Context, id int64) (*Official, error)
	FindByPersonalNumber(ctx context.Context, pn string) (*Official, error)
	ListByOrg(ctx context.Context, orgID int64) ([]*Official, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// CredentialStore manages password hashes and lockout state. RecordFailure
// and ResetFailures must be atomic per official.
type CredentialStore interface {
	Find(ctx context.Context, officialID int64) (*CredentialRecord, error)
	SetPassword(ctx context.Context, officialID int64, hash string, now time.Time) error

	// RecordFailure increments the failed-attempt counter; when the new
	// count reaches threshold it sets locked-until = now + lockFor in the
	// same operation. Returns the updated record.
	RecordFailure(ctx context.Context, officialID int64, threshold int, lockFor time.Duration, now time.Time) (*CredentialRecord, error)

	// ResetFailures zeroes the counter and clears any lock.
	ResetFailures(ctx context.Context, officialID int64, now time.Time) error
}

// ChallengeStore manages one-time code challenges. Replace must atomically
// retire any unconsumed challenge for the official before inserting the new
// one, so two live challenges can never coexist.
type ChallengeStore interface {
	Replace(ctx context.Context, ch *Challenge) error
	Pending(ctx context.Context, officialID int64) (*Challenge, error)

	// Consume marks the challenge used. A challenge already consumed (or
	// retired by Replace) yields ErrNotFound.
	Consume(ctx context.Context, challengeID string) error
}

// SessionStore manages bearer session records.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	Revoke(ctx context.Context, id string) error
	RevokeAll(ctx context.Context, officialID int64) error
}

// Sender is the notification collaborator: it delivers a one-time code over
// the requested channel. Implementations live under internal/notify.
type Sender interface {
	Send(ctx context.Context, channel Channel, recipient, code string) error
}

// Recorder is the audit collaborator. Every authorization denial and every
// lockout produces one event; the recorder decides where it lands.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// Event is one structured audit entry.
type Event struct {
	At             time.Time
	Action         string
	OfficialID     int64
	PersonalNumber string
	Permission     string
	TargetOrgID    int64
	Outcome        string
	Reason         string
}

// NopRecorder discards events. Used when no audit sink is wired.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) {}
