package auth

import (
	"fmt"
	"strings"
	"time"
)

// Channel identifies the delivery route for one-time codes.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ValidChannel reports whether ch is a supported delivery channel.
func ValidChannel(ch Channel) bool {
	return ch == ChannelEmail || ch == ChannelSMS
}

// Official is a government officer known to the fleet platform. Identity
// fields are immutable after creation; Active and Position change only
// through administrative action.
type Official struct {
	ID             int64     `json:"id"`
	PersonalNumber string    `json:"personal_number"`
	Name           string    `json:"name"`
	Position       string    `json:"position"`
	JobGroup       string    `json:"job_group"`
	Role           Role      `json:"role"`
	Level          int       `json:"level"`
	OrganizationID int64     `json:"organization_id"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Channel        Channel   `json:"channel"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the structural invariants of an official record. The level
// stored on the instance must equal the constant defined by its role; a
// mismatch means the record was corrupted or written by older code.
func (o *Official) Validate() error {
	if err := ValidatePersonalNumber(o.PersonalNumber); err != nil {
		return err
	}
	if !IsValidRole(o.Role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, o.Role)
	}
	if o.Level != LevelOf(o.Role) {
		return fmt.Errorf("%w: level %d does not match role %q (want %d)",
			ErrInvalidInput, o.Level, o.Role, LevelOf(o.Role))
	}
	if !ValidChannel(o.Channel) {
		return fmt.Errorf("%w: unsupported channel %q", ErrInvalidInput, o.Channel)
	}
	return nil
}

// Recipient returns the delivery address for the official's configured
// channel.
func (o *Official) Recipient() string {
	if o.Channel == ChannelSMS {
		return o.Phone
	}
	return o.Email
}

// ValidatePersonalNumber enforces the 6-8 digit service-number format.
// Whitespace is not trimmed: a padded number is a rejected number.
func ValidatePersonalNumber(pn string) error {
	if len(pn) < 6 || len(pn) > 8 {
		return fmt.Errorf("%w: personal number must be 6-8 digits", ErrInvalidInput)
	}
	for i := 0; i < len(pn); i++ {
		if pn[i] < '0' || pn[i] > '9' {
			return fmt.Errorf("%w: personal number must be numeric", ErrInvalidInput)
		}
	}
	return nil
}

// NewOfficial constructs an official, deriving the hierarchical level from
// the role so the two can never disagree.
func NewOfficial(id int64, personalNumber, name, position, jobGroup string, role Role, orgID int64) (*Official, error) {
	if err := ValidatePersonalNumber(personalNumber); err != nil {
		return nil, err
	}
	if !IsValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return &Official{
		ID:             id,
		PersonalNumber: personalNumber,
		Name:           name,
		Position:       strings.TrimSpace(position),
		JobGroup:       strings.TrimSpace(jobGroup),
		Role:           role,
		Level:          LevelOf(role),
		OrganizationID: orgID,
		Channel:        ChannelEmail,
		Active:         true,
	}, nil
}

// CredentialRecord holds the secret material and lockout state for one
// official. LockedUntil is set only by the store once FailedAttempts reaches
// the configured threshold; clearing the lock always zeroes the counter.
type CredentialRecord struct {
	OfficialID     int64
	PasswordHash   string
	FailedAttempts int
	LockedUntil    *time.Time
	LastResetAt    *time.Time
}

// Locked reports whether the record is locked at the given instant. Locks
// expire lazily; nobody clears LockedUntil on the way out.
func (c *CredentialRecord) Locked(now time.Time) bool {
	return c.LockedUntil != nil && now.Before(*c.LockedUntil)
}

// Challenge is a single-use one-time code. At most one unconsumed, unexpired
// challenge exists per official; issuing a new one replaces the old.
type Challenge struct {
	ID         string
	OfficialID int64
	Code       string
	Channel    Channel
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Consumed   bool
}

// Expired reports whether the challenge TTL has elapsed at the given instant.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Session is the server-side record behind a bearer token. The token carries
// the session ID as its jti claim; revocation flips the record, not the
// token.
type Session struct {
	ID         string
	OfficialID int64
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Revoked    bool
}

// Live reports whether the session is usable at the given instant.
func (s *Session) Live(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
