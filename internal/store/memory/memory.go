// Package memory is the in-process Store used by tests and by dev mode when
// no Postgres DSN is configured. One store-wide mutex serializes every
// mutation, which trivially satisfies the per-official atomicity the
// credential and challenge contracts demand.
package memory

import (
	"context"
	"sync"
	"time"

	"fleetgov.org/internal/auth"
)

type Store struct {
	mu         sync.RWMutex
	officials  map[int64]auth.Official
	byPN       map[string]int64
	creds      map[int64]auth.CredentialRecord
	challenges map[string]auth.Challenge
	pending    map[int64]string
	sessions   map[string]auth.Session
	nextID     int64
}

var _ auth.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		officials:  make(map[int64]auth.Official),
		byPN:       make(map[string]int64),
		creds:      make(map[int64]auth.CredentialRecord),
		challenges: make(map[string]auth.Challenge),
		pending:    make(map[int64]string),
		sessions:   make(map[string]auth.Session),
	}
}

func (s *Store) Officials() auth.OfficialStore     { return (*officialStore)(s) }
func (s *Store) Credentials() auth.CredentialStore { return (*credentialStore)(s) }
func (s *Store) Challenges() auth.ChallengeStore   { return (*challengeStore)(s) }
func (s *Store) Sessions() auth.SessionStore       { return (*sessionStore)(s) }

// Officials -----------------------------------------------------------------

type officialStore Store

func (s *officialStore) Create(_ context.Context, o *auth.Official) error {
	if err := o.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		s.nextID++
		o.ID = s.nextID
	} else if o.ID > s.nextID {
		s.nextID = o.ID
	}
	if _, dup := s.byPN[o.PersonalNumber]; dup {
		return auth.ErrInvalidInput
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	s.officials[o.ID] = *o
	s.byPN[o.PersonalNumber] = o.ID
	return nil
}

func (s *officialStore) Find(_ context.Context, id int64) (*auth.Official, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.officials[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &o, nil
}

func (s *officialStore) FindByPersonalNumber(_ context.Context, pn string) (*auth.Official, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPN[pn]
	if !ok {
		return nil, auth.ErrNotFound
	}
	o := s.officials[id]
	return &o, nil
}

func (s *officialStore) ListByOrg(_ context.Context, orgID int64) ([]*auth.Official, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*auth.Official
	for _, o := range s.officials {
		if o.OrganizationID == orgID {
			copied := o
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *officialStore) SetActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.officials[id]
	if !ok {
		return auth.ErrNotFound
	}
	o.Active = active
	o.UpdatedAt = time.Now().UTC()
	s.officials[id] = o
	return nil
}

// Credentials ---------------------------------------------------------------

type credentialStore Store

func (s *credentialStore) Find(_ context.Context, officialID int64) (*auth.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[officialID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &c, nil
}

func (s *credentialStore) SetPassword(_ context.Context, officialID int64, hash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.officials[officialID]; !ok {
		return auth.ErrNotFound
	}
	reset := now
	s.creds[officialID] = auth.CredentialRecord{
		OfficialID:   officialID,
		PasswordHash: hash,
		LastResetAt:  &reset,
	}
	return nil
}

func (s *credentialStore) RecordFailure(_ context.Context, officialID int64, threshold int, lockFor time.Duration, now time.Time) (*auth.CredentialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[officialID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	c.FailedAttempts++
	if c.FailedAttempts >= threshold {
		until := now.Add(lockFor)
		c.LockedUntil = &until
	}
	s.creds[officialID] = c
	return &c, nil
}

func (s *credentialStore) ResetFailures(_ context.Context, officialID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[officialID]
	if !ok {
		return auth.ErrNotFound
	}
	c.FailedAttempts = 0
	c.LockedUntil = nil
	reset := now
	c.LastResetAt = &reset
	s.creds[officialID] = c
	return nil
}

// Challenges ----------------------------------------------------------------

type challengeStore Store

func (s *challengeStore) Replace(_ context.Context, ch *auth.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.pending[ch.OfficialID]; ok {
		delete(s.challenges, prev)
	}
	s.challenges[ch.ID] = *ch
	s.pending[ch.OfficialID] = ch.ID
	return nil
}

func (s *challengeStore) Pending(_ context.Context, officialID int64) (*auth.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pending[officialID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	ch, ok := s.challenges[id]
	if !ok || ch.Consumed {
		return nil, auth.ErrNotFound
	}
	return &ch, nil
}

func (s *challengeStore) Consume(_ context.Context, challengeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[challengeID]
	if !ok || ch.Consumed {
		return auth.ErrNotFound
	}
	ch.Consumed = true
	s.challenges[challengeID] = ch
	delete(s.pending, ch.OfficialID)
	return nil
}

// Sessions ------------------------------------------------------------------

type sessionStore Store

func (s *sessionStore) Create(_ context.Context, sess *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *sessionStore) Find(_ context.Context, id string) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &sess, nil
}

func (s *sessionStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return auth.ErrNotFound
	}
	sess.Revoked = true
	s.sessions[id] = sess
	return nil
}

func (s *sessionStore) RevokeAll(_ context.Context, officialID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.OfficialID == officialID {
			sess.Revoked = true
			s.sessions[id] = sess
		}
	}
	return nil
}
