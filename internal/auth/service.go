package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleetgov.org/internal/obs"
)

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
	defaultOTPTTL           = 5 * time.Minute
	defaultSessionTTL       = 12 * time.Hour
)

// Service orchestrates the two-step login protocol: password check, lockout
// policy, one-time code issuance and verification, and bearer session
// lifecycle. All mutable state lives in the Store; the service itself is safe
// for concurrent use.
type Service struct {
	store  Store
	otp    *OTPService
	audit  Recorder
	log    *zap.Logger
	now    func() time.Time
	issuer string

	signingSecret    []byte
	lockoutThreshold int
	lockoutDuration  time.Duration
	otpTTL           time.Duration
	sessionTTL       time.Duration
}

// LoginResult reports a successful first factor: the official to challenge
// and the channel the code went out on.
type LoginResult struct {
	OfficialID int64     `json:"official_id"`
	Channel    Channel   `json:"channel"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithSigningSecret sets the HS256 secret for bearer tokens. Required.
func WithSigningSecret(secret string) ServiceOption {
	return func(s *Service) error {
		if strings.TrimSpace(secret) == "" {
			return errors.New("auth: signing secret is empty")
		}
		s.signingSecret = []byte(secret)
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithLockoutThreshold sets how many consecutive failures trip the lock.
func WithLockoutThreshold(n int) ServiceOption {
	return func(s *Service) error {
		if n > 0 {
			s.lockoutThreshold = n
		}
		return nil
	}
}

// WithLockoutDuration sets how long a tripped lock holds.
func WithLockoutDuration(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d > 0 {
			s.lockoutDuration = d
		}
		return nil
	}
}

// WithOTPTTL sets the one-time code lifetime.
func WithOTPTTL(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d > 0 {
			s.otpTTL = d
		}
		return nil
	}
}

// WithSessionTTL sets the bearer session lifetime.
func WithSessionTTL(d time.Duration) ServiceOption {
	return func(s *Service) error {
		if d > 0 {
			s.sessionTTL = d
		}
		return nil
	}
}

// WithAudit wires the audit collaborator for lockout and denial events.
func WithAudit(r Recorder) ServiceOption {
	return func(s *Service) error {
		if r != nil {
			s.audit = r
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the authenticator. sender delivers one-time codes;
// a signing secret must be provided via WithSigningSecret.
func NewService(store Store, sender Sender, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if sender == nil {
		return nil, errors.New("auth: sender is required")
	}
	svc := &Service{
		store:            store,
		audit:            NopRecorder{},
		log:              obs.Named("auth"),
		now:              time.Now,
		lockoutThreshold: defaultLockoutThreshold,
		lockoutDuration:  defaultLockoutDuration,
		otpTTL:           defaultOTPTTL,
		sessionTTL:       defaultSessionTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if len(svc.signingSecret) == 0 {
		return nil, errors.New("auth: signing secret is not configured")
	}
	svc.otp = NewOTPService(store, sender, svc.otpTTL, svc.now)
	return svc, nil
}

// OTP exposes the issuer/verifier sharing this service's clock and TTL.
func (s *Service) OTP() *OTPService { return s.otp }

// Login runs the first factor. On success a one-time code has been issued on
// the returned channel and the caller proceeds to VerifyOTP. Failure kinds:
// ErrAccountInactive (checked before the password so a deactivated account
// reads the same no matter what was typed), ErrAccountLocked,
// ErrInvalidCredentials. ErrDeliveryFailure is special: the first factor
// succeeded and the challenge is live, but the code did not go out — the
// result is returned alongside the error so the caller can offer a resend.
func (s *Service) Login(ctx context.Context, personalNumber, password string) (*LoginResult, error) {
	if err := ValidatePersonalNumber(personalNumber); err != nil {
		obs.LoginFailures.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	official, err := s.store.Officials().FindByPersonalNumber(ctx, personalNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.LoginFailures.WithLabelValues("invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load official: %w", err)
	}
	if !official.Active {
		obs.LoginFailures.WithLabelValues("inactive").Inc()
		return nil, ErrAccountInactive
	}

	cred, err := s.store.Credentials().Find(ctx, official.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.LoginFailures.WithLabelValues("invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	now := s.now().UTC()
	if cred.Locked(now) {
		obs.LoginFailures.WithLabelValues("locked").Inc()
		return nil, ErrAccountLocked
	}

	if err := VerifyPassword(cred.PasswordHash, password); err != nil {
		return nil, s.recordFailure(ctx, official)
	}

	ch, err := s.otp.Issue(ctx, official, official.Channel)
	if err != nil && !errors.Is(err, ErrDeliveryFailure) {
		return nil, err
	}
	res := &LoginResult{OfficialID: official.ID, Channel: ch.Channel, ExpiresAt: ch.ExpiresAt}
	if err != nil {
		s.log.Warn("one-time code delivery failed",
			zap.Int64("official_id", official.ID), zap.String("channel", string(ch.Channel)))
		return res, err
	}
	return res, nil
}

// recordFailure increments the counter and maps the outcome. The store does
// the increment atomically per official, so concurrent wrong-password
// attempts cannot under-count.
func (s *Service) recordFailure(ctx context.Context, official *Official) error {
	cred, err := s.store.Credentials().RecordFailure(
		ctx, official.ID, s.lockoutThreshold, s.lockoutDuration, s.now().UTC())
	if err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}
	if cred.LockedUntil != nil {
		obs.Lockouts.Inc()
		obs.LoginFailures.WithLabelValues("locked").Inc()
		s.audit.Record(ctx, Event{
			At:             s.now().UTC(),
			Action:         "auth.lockout",
			OfficialID:     official.ID,
			PersonalNumber: official.PersonalNumber,
			Outcome:        "locked",
			Reason:         fmt.Sprintf("%d consecutive failed attempts", cred.FailedAttempts),
		})
		s.log.Warn("account locked",
			zap.Int64("official_id", official.ID),
			zap.Int("failed_attempts", cred.FailedAttempts),
			zap.Timep("locked_until", cred.LockedUntil))
		return ErrAccountLocked
	}
	obs.LoginFailures.WithLabelValues("invalid_credentials").Inc()
	return ErrInvalidCredentials
}

// VerifyOTP runs the second factor. Success mints a bearer token, clears the
// failed-attempt counter and completes the login. An invalid code leaves the
// password-verified state intact: the caller may retry until the challenge
// expires on its own.
func (s *Service) VerifyOTP(ctx context.Context, officialID int64, code string) (string, error) {
	official, err := s.store.Officials().Find(ctx, officialID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidOTP
		}
		return "", fmt.Errorf("load official: %w", err)
	}
	if !official.Active {
		return "", ErrAccountInactive
	}

	if err := s.otp.Verify(ctx, officialID, code); err != nil {
		return "", err
	}

	if err := s.store.Credentials().ResetFailures(ctx, officialID, s.now().UTC()); err != nil {
		return "", fmt.Errorf("reset failed attempts: %w", err)
	}

	now := s.now().UTC()
	sess := &Session{
		ID:         uuid.NewString(),
		OfficialID: official.ID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.sessionTTL),
	}
	if err := s.store.Sessions().Create(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return s.signSession(official, sess)
}

// ResendOTP re-dispatches the live challenge for the official, same code,
// same deadline. No challenge to resend reads as ErrInvalidOTP.
func (s *Service) ResendOTP(ctx context.Context, officialID int64) error {
	official, err := s.store.Officials().Find(ctx, officialID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidOTP
		}
		return fmt.Errorf("load official: %w", err)
	}
	if !official.Active {
		return ErrAccountInactive
	}
	return s.otp.Resend(ctx, official)
}

// ValidateToken verifies a bearer token end to end: signature and claims,
// then the server-side session record (revocation, expiry), then the
// official's current state. Deactivating an official invalidates every token
// they hold, whatever its expiry says.
func (s *Service) ValidateToken(ctx context.Context, token string) (*Official, error) {
	claims, err := s.parseSession(token)
	if err != nil {
		return nil, err
	}
	officialID, err := claims.officialID()
	if err != nil {
		return nil, err
	}

	sess, err := s.store.Sessions().Find(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.OfficialID != officialID || !sess.Live(s.now().UTC()) {
		return nil, ErrInvalidToken
	}

	official, err := s.store.Officials().Find(ctx, officialID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load official: %w", err)
	}
	if !official.Active {
		return nil, ErrAccountInactive
	}
	return official, nil
}

// Logout revokes the presented token's session. Other sessions the official
// holds stay live: sessions are per device.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.parseSession(token)
	if err != nil {
		return err
	}
	if err := s.store.Sessions().Revoke(ctx, claims.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// UnlockAccount is the administrative reset: it clears the counter and any
// lock without waiting for the cooldown.
func (s *Service) UnlockAccount(ctx context.Context, officialID int64) error {
	if err := s.store.Credentials().ResetFailures(ctx, officialID, s.now().UTC()); err != nil {
		return fmt.Errorf("reset failed attempts: %w", err)
	}
	s.audit.Record(ctx, Event{
		At:         s.now().UTC(),
		Action:     "auth.unlock",
		OfficialID: officialID,
		Outcome:    "reset",
	})
	return nil
}

// SetOfficialActive flips the administrative active flag. Deactivation also
// revokes every live session the official holds.
func (s *Service) SetOfficialActive(ctx context.Context, officialID int64, active bool) error {
	if err := s.store.Officials().SetActive(ctx, officialID, active); err != nil {
		return err
	}
	if !active {
		if err := s.store.Sessions().RevokeAll(ctx, officialID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
	}
	return nil
}
