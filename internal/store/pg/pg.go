// Package pg implements the identity Store on PostgreSQL. Per-official
// atomicity comes from single-row UPDATE ... RETURNING statements and short
// transactions, never from process-local locks.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetgov.org/internal/auth"
)

type Store struct {
	db *sql.DB
}

var _ auth.Store = (*Store)(nil)

// Open connects to PostgreSQL with pool settings tuned for a request-scoped
// auth workload.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle (tests use this with sqlmock).
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Officials() auth.OfficialStore     { return &officialStore{db: s.db} }
func (s *Store) Credentials() auth.CredentialStore { return &credentialStore{db: s.db} }
func (s *Store) Challenges() auth.ChallengeStore   { return &challengeStore{db: s.db} }
func (s *Store) Sessions() auth.SessionStore       { return &sessionStore{db: s.db} }

// LoadOrgUnits reads the organizational tree for scope construction.
func (s *Store) LoadOrgUnits(ctx context.Context) ([]auth.OrgUnit, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, coalesce(parent_id, 0), name from organizations order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []auth.OrgUnit
	for rows.Next() {
		var u auth.OrgUnit
		if err := rows.Scan(&u.ID, &u.ParentID, &u.Name); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// Officials -----------------------------------------------------------------

type officialStore struct{ db *sql.DB }

const officialColumns = `id, personal_number, name, position, job_group, role, level,
	organization_id, email, phone, channel, active, created_at, updated_at`

func (s *officialStore) Create(ctx context.Context, o *auth.Official) error {
	if err := o.Validate(); err != nil {
		return err
	}
	row := s.db.QueryRowContext(ctx,
		`insert into officials
			(personal_number, name, position, job_group, role, level,
			 organization_id, email, phone, channel, active)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 returning id, created_at, updated_at`,
		o.PersonalNumber, o.Name, o.Position, o.JobGroup, string(o.Role), o.Level,
		o.OrganizationID, o.Email, o.Phone, string(o.Channel), o.Active,
	)
	return row.Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (s *officialStore) Find(ctx context.Context, id int64) (*auth.Official, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+officialColumns+` from officials where id = $1`, id)
	return scanOfficial(row)
}

func (s *officialStore) FindByPersonalNumber(ctx context.Context, pn string) (*auth.Official, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+officialColumns+` from officials where personal_number = $1`, pn)
	return scanOfficial(row)
}

func (s *officialStore) ListByOrg(ctx context.Context, orgID int64) ([]*auth.Official, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+officialColumns+` from officials where organization_id = $1 order by level, name`,
		orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*auth.Official
	for rows.Next() {
		o, err := scanOfficial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *officialStore) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`update officials set active = $2, updated_at = now() where id = $1`, id, active)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOfficial(row rowScanner) (*auth.Official, error) {
	var (
		o       auth.Official
		role    string
		channel string
	)
	err := row.Scan(&o.ID, &o.PersonalNumber, &o.Name, &o.Position, &o.JobGroup,
		&role, &o.Level, &o.OrganizationID, &o.Email, &o.Phone, &channel,
		&o.Active, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	o.Role = auth.Role(role)
	o.Channel = auth.Channel(channel)
	return &o, nil
}

// Credentials ---------------------------------------------------------------

type credentialStore struct{ db *sql.DB }

func (s *credentialStore) Find(ctx context.Context, officialID int64) (*auth.CredentialRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`select official_id, password_hash, failed_attempts, locked_until, last_reset_at
		   from credentials where official_id = $1`, officialID)
	return scanCredential(row)
}

func (s *credentialStore) SetPassword(ctx context.Context, officialID int64, hash string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`insert into credentials (official_id, password_hash, failed_attempts, locked_until, last_reset_at)
		 values ($1, $2, 0, null, $3)
		 on conflict (official_id) do update
		   set password_hash = excluded.password_hash,
		       failed_attempts = 0,
		       locked_until = null,
		       last_reset_at = excluded.last_reset_at`,
		officialID, hash, now)
	return err
}

// RecordFailure is a single-row atomic increment: the lock decision happens
// inside the UPDATE so two concurrent failures cannot both observe the
// pre-increment counter.
func (s *credentialStore) RecordFailure(ctx context.Context, officialID int64, threshold int, lockFor time.Duration, now time.Time) (*auth.CredentialRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`update credentials
		    set failed_attempts = failed_attempts + 1,
		        locked_until = case
		          when failed_attempts + 1 >= $2 then $3::timestamptz
		          else locked_until
		        end
		  where official_id = $1
		  returning official_id, password_hash, failed_attempts, locked_until, last_reset_at`,
		officialID, threshold, now.Add(lockFor))
	return scanCredential(row)
}

func (s *credentialStore) ResetFailures(ctx context.Context, officialID int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update credentials
		    set failed_attempts = 0, locked_until = null, last_reset_at = $2
		  where official_id = $1`,
		officialID, now)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanCredential(row rowScanner) (*auth.CredentialRecord, error) {
	var (
		c           auth.CredentialRecord
		lockedUntil sql.NullTime
		lastReset   sql.NullTime
	)
	err := row.Scan(&c.OfficialID, &c.PasswordHash, &c.FailedAttempts, &lockedUntil, &lastReset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		c.LockedUntil = &t
	}
	if lastReset.Valid {
		t := lastReset.Time
		c.LastResetAt = &t
	}
	return &c, nil
}

// Challenges ----------------------------------------------------------------

type challengeStore struct{ db *sql.DB }

// Replace retires every unconsumed challenge for the official and inserts the
// new one inside one transaction, so a second live challenge can never be
// observed.
func (s *challengeStore) Replace(ctx context.Context, ch *auth.Challenge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`update otp_challenges set consumed = true
		  where official_id = $1 and not consumed`, ch.OfficialID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`insert into otp_challenges (id, official_id, code, channel, issued_at, expires_at, consumed)
		 values ($1,$2,$3,$4,$5,$6,false)`,
		ch.ID, ch.OfficialID, ch.Code, string(ch.Channel), ch.IssuedAt, ch.ExpiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *challengeStore) Pending(ctx context.Context, officialID int64) (*auth.Challenge, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, official_id, code, channel, issued_at, expires_at, consumed
		   from otp_challenges
		  where official_id = $1 and not consumed
		  order by issued_at desc
		  limit 1`, officialID)

	var (
		ch      auth.Challenge
		channel string
	)
	err := row.Scan(&ch.ID, &ch.OfficialID, &ch.Code, &channel, &ch.IssuedAt, &ch.ExpiresAt, &ch.Consumed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	ch.Channel = auth.Channel(channel)
	return &ch, nil
}

// Consume flips the consumed flag only if it was clear; losing the race reads
// as ErrNotFound, which the verifier maps to the uniform OTP failure.
func (s *challengeStore) Consume(ctx context.Context, challengeID string) error {
	res, err := s.db.ExecContext(ctx,
		`update otp_challenges set consumed = true where id = $1 and not consumed`,
		challengeID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Sessions ------------------------------------------------------------------

type sessionStore struct{ db *sql.DB }

func (s *sessionStore) Create(ctx context.Context, sess *auth.Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into sessions (id, official_id, issued_at, expires_at, revoked)
		 values ($1,$2,$3,$4,false)`,
		sess.ID, sess.OfficialID, sess.IssuedAt, sess.ExpiresAt)
	return err
}

func (s *sessionStore) Find(ctx context.Context, id string) (*auth.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, official_id, issued_at, expires_at, revoked from sessions where id = $1`, id)

	var sess auth.Session
	err := row.Scan(&sess.ID, &sess.OfficialID, &sess.IssuedAt, &sess.ExpiresAt, &sess.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *sessionStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update sessions set revoked = true where id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *sessionStore) RevokeAll(ctx context.Context, officialID int64) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set revoked = true where official_id = $1 and not revoked`,
		officialID)
	return err
}

// helpers -------------------------------------------------------------------

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
