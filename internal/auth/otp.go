package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"fleetgov.org/internal/ids"
	"fleetgov.org/internal/obs"
)

const otpCodeLength = 6

var otpCodeSpace = big.NewInt(1_000_000)

// OTPService issues and verifies the time-boxed one-time codes that form the
// second login factor.
type OTPService struct {
	store  Store
	sender Sender
	ttl    time.Duration
	now    func() time.Time
}

// NewOTPService wires the issuer against a store and a delivery channel.
func NewOTPService(store Store, sender Sender, ttl time.Duration, now func() time.Time) *OTPService {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OTPService{store: store, sender: sender, ttl: ttl, now: now}
}

// Issue creates a fresh challenge for the official, retiring any prior
// unconsumed one first, then dispatches the code. The challenge is valid the
// moment it is stored: a delivery problem comes back as ErrDeliveryFailure
// with the challenge still live, so the caller can offer a resend instead of
// restarting the login.
func (s *OTPService) Issue(ctx context.Context, official *Official, channel Channel) (*Challenge, error) {
	if !ValidChannel(channel) {
		return nil, fmt.Errorf("%w: unsupported channel %q", ErrInvalidInput, channel)
	}
	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	now := s.now().UTC()
	ch := &Challenge{
		ID:         ids.New(),
		OfficialID: official.ID,
		Code:       code,
		Channel:    channel,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.store.Challenges().Replace(ctx, ch); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	obs.OTPIssued.WithLabelValues(string(channel)).Inc()

	if err := s.sender.Send(ctx, channel, official.Recipient(), code); err != nil {
		return ch, fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	}
	return ch, nil
}

// Resend re-dispatches the official's pending challenge without minting a new
// code. A missing or expired challenge reads as ErrInvalidOTP so callers
// learn nothing about challenge state they did not already know.
func (s *OTPService) Resend(ctx context.Context, official *Official) error {
	ch, err := s.store.Challenges().Pending(ctx, official.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidOTP
		}
		return fmt.Errorf("load challenge: %w", err)
	}
	if ch.Expired(s.now().UTC()) {
		return ErrInvalidOTP
	}
	if err := s.sender.Send(ctx, ch.Channel, official.Recipient(), ch.Code); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	}
	return nil
}

// Verify checks a submitted code against the official's pending challenge and
// consumes it on success. Wrong code, expired code, already-consumed code and
// no pending challenge are deliberately indistinguishable: all read as
// ErrInvalidOTP.
func (s *OTPService) Verify(ctx context.Context, officialID int64, submitted string) error {
	ch, err := s.store.Challenges().Pending(ctx, officialID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.OTPVerified.WithLabelValues("rejected").Inc()
			return ErrInvalidOTP
		}
		return fmt.Errorf("load challenge: %w", err)
	}
	if ch.Expired(s.now().UTC()) ||
		subtle.ConstantTimeCompare([]byte(ch.Code), []byte(submitted)) != 1 {
		obs.OTPVerified.WithLabelValues("rejected").Inc()
		return ErrInvalidOTP
	}
	if err := s.store.Challenges().Consume(ctx, ch.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Lost the race against a concurrent verify or a newer Issue.
			obs.OTPVerified.WithLabelValues("rejected").Inc()
			return ErrInvalidOTP
		}
		return fmt.Errorf("consume challenge: %w", err)
	}
	obs.OTPVerified.WithLabelValues("ok").Inc()
	return nil
}

// generateCode draws a fixed-length numeric code from crypto/rand. Leading
// zeros are preserved.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpCodeLength, n), nil
}
