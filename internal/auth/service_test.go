package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fleetgov.org/internal/auth"
	"fleetgov.org/internal/store/memory"
)

const (
	testPersonalNumber = "400123"
	testPassword       = "correct-horse-battery"
	testOrgID          = int64(7)
)

type sentCode struct {
	channel   auth.Channel
	recipient string
	code      string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentCode
	fail error
}

func (f *fakeSender) Send(_ context.Context, channel auth.Channel, recipient, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, sentCode{channel: channel, recipient: recipient, code: code})
	return nil
}

func (f *fakeSender) last(t *testing.T) sentCode {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no code was delivered")
	}
	return f.sent[len(f.sent)-1]
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc    *auth.Service
	store  *memory.Store
	sender *fakeSender
	clock  *fakeClock
}

func newFixture(t *testing.T, opts ...auth.ServiceOption) *fixture {
	t.Helper()
	store := memory.New()
	sender := &fakeSender{}
	clock := newFakeClock()

	base := []auth.ServiceOption{
		auth.WithSigningSecret("test-secret"),
		auth.WithIssuer("fleetgov-test"),
		auth.WithClock(clock.Now),
	}
	svc, err := auth.NewService(store, sender, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	fx := &fixture{svc: svc, store: store, sender: sender, clock: clock}
	fx.seedOfficial(t, testPersonalNumber, auth.RoleFleetManager, testOrgID, true)
	return fx
}

func (fx *fixture) seedOfficial(t *testing.T, pn string, role auth.Role, orgID int64, active bool) *auth.Official {
	t.Helper()
	ctx := context.Background()
	o, err := auth.NewOfficial(0, pn, "Test Official", "Officer", "N", role, orgID)
	if err != nil {
		t.Fatalf("NewOfficial: %v", err)
	}
	o.Email = pn + "@transport.go.ke"
	o.Active = active
	if err := fx.store.Officials().Create(ctx, o); err != nil {
		t.Fatalf("create official: %v", err)
	}
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := fx.store.Credentials().SetPassword(ctx, o.ID, hash, fx.clock.Now()); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	return o
}

func (fx *fixture) login(t *testing.T) *auth.LoginResult {
	t.Helper()
	res, err := fx.svc.Login(context.Background(), testPersonalNumber, testPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return res
}

func (fx *fixture) authenticate(t *testing.T) string {
	t.Helper()
	res := fx.login(t)
	token, err := fx.svc.VerifyOTP(context.Background(), res.OfficialID, fx.sender.last(t).code)
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	return token
}

func TestLoginHappyPath(t *testing.T) {
	fx := newFixture(t)

	res := fx.login(t)
	if res.Channel != auth.ChannelEmail {
		t.Fatalf("unexpected channel: %s", res.Channel)
	}
	delivered := fx.sender.last(t)
	if len(delivered.code) != 6 {
		t.Fatalf("code length = %d, want 6", len(delivered.code))
	}
	if delivered.recipient != testPersonalNumber+"@transport.go.ke" {
		t.Fatalf("unexpected recipient: %s", delivered.recipient)
	}

	token, err := fx.svc.VerifyOTP(context.Background(), res.OfficialID, delivered.code)
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	official, err := fx.svc.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if official.PersonalNumber != testPersonalNumber {
		t.Fatalf("unexpected official: %s", official.PersonalNumber)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.svc.Login(context.Background(), testPersonalNumber, "nope")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownIdentifier(t *testing.T) {
	fx := newFixture(t)
	for _, pn := range []string{"999999", "12345", " 123456"} {
		if _, err := fx.svc.Login(context.Background(), pn, testPassword); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("Login(%q): expected ErrInvalidCredentials, got %v", pn, err)
		}
	}
}

func TestLoginInactiveAccountIgnoresPassword(t *testing.T) {
	fx := newFixture(t)
	fx.seedOfficial(t, "500777", auth.RoleDriver, testOrgID, false)

	for _, password := range []string{testPassword, "wrong"} {
		_, err := fx.svc.Login(context.Background(), "500777", password)
		if !errors.Is(err, auth.ErrAccountInactive) {
			t.Fatalf("password %q: expected ErrAccountInactive, got %v", password, err)
		}
	}

	// An inactive account never accumulates failed attempts.
	cred, err := fx.store.Credentials().Find(context.Background(), 2)
	if err != nil {
		t.Fatalf("Find credentials: %v", err)
	}
	if cred.FailedAttempts != 0 {
		t.Fatalf("inactive account counted %d failed attempts", cred.FailedAttempts)
	}
}

func TestLockoutAfterThreshold(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := fx.svc.Login(ctx, testPersonalNumber, "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	// The fifth consecutive failure trips the lock.
	if _, err := fx.svc.Login(ctx, testPersonalNumber, "wrong"); !errors.Is(err, auth.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked on threshold, got %v", err)
	}
	// Correct password against a locked account is still refused.
	if _, err := fx.svc.Login(ctx, testPersonalNumber, testPassword); !errors.Is(err, auth.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}

	// After the cooldown the lock expires lazily and a correct login resets
	// the counter.
	fx.clock.Advance(15*time.Minute + time.Second)
	res, err := fx.svc.Login(ctx, testPersonalNumber, testPassword)
	if err != nil {
		t.Fatalf("post-cooldown login: %v", err)
	}
	if _, err := fx.svc.VerifyOTP(ctx, res.OfficialID, fx.sender.last(t).code); err != nil {
		t.Fatalf("post-cooldown VerifyOTP: %v", err)
	}
	cred, err := fx.store.Credentials().Find(ctx, res.OfficialID)
	if err != nil {
		t.Fatalf("Find credentials: %v", err)
	}
	if cred.FailedAttempts != 0 || cred.LockedUntil != nil {
		t.Fatalf("counter not reset after full login: %+v", cred)
	}
}

func TestLockoutSurvivesCooldownWithoutReset(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		fx.svc.Login(ctx, testPersonalNumber, "wrong")
	}
	fx.clock.Advance(16 * time.Minute)

	// The counter was never reset, so one more failure locks again
	// immediately.
	if _, err := fx.svc.Login(ctx, testPersonalNumber, "wrong"); !errors.Is(err, auth.ErrAccountLocked) {
		t.Fatalf("expected immediate re-lock, got %v", err)
	}
}

func TestConcurrentFailuresAreNotLost(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fx.svc.Login(ctx, testPersonalNumber, "wrong")
		}()
	}
	wg.Wait()

	cred, err := fx.store.Credentials().Find(ctx, 1)
	if err != nil {
		t.Fatalf("Find credentials: %v", err)
	}
	if cred.FailedAttempts < 5 {
		t.Fatalf("increments were lost: %d", cred.FailedAttempts)
	}
	if cred.LockedUntil == nil {
		t.Fatalf("threshold reached but no lock set")
	}
}

func TestAdminUnlock(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		fx.svc.Login(ctx, testPersonalNumber, "wrong")
	}
	if err := fx.svc.UnlockAccount(ctx, 1); err != nil {
		t.Fatalf("UnlockAccount: %v", err)
	}
	if _, err := fx.svc.Login(ctx, testPersonalNumber, testPassword); err != nil {
		t.Fatalf("login after admin unlock: %v", err)
	}
}

func TestLoginDeliveryFailureIsDistinct(t *testing.T) {
	fx := newFixture(t)
	fx.sender.fail = errors.New("smtp: connection refused")

	res, err := fx.svc.Login(context.Background(), testPersonalNumber, testPassword)
	if !errors.Is(err, auth.ErrDeliveryFailure) {
		t.Fatalf("expected ErrDeliveryFailure, got %v", err)
	}
	if errors.Is(err, auth.ErrInvalidOTP) {
		t.Fatalf("delivery failure must not read as an OTP failure")
	}
	if res == nil {
		t.Fatalf("first factor succeeded; result must identify the official")
	}

	// The challenge is live despite the failed dispatch: a resend after the
	// channel recovers delivers the same code.
	fx.sender.fail = nil
	official, err := fx.store.Officials().Find(context.Background(), res.OfficialID)
	if err != nil {
		t.Fatalf("Find official: %v", err)
	}
	if err := fx.svc.OTP().Resend(context.Background(), official); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if _, err := fx.svc.VerifyOTP(context.Background(), res.OfficialID, fx.sender.last(t).code); err != nil {
		t.Fatalf("VerifyOTP after resend: %v", err)
	}
}

func TestLogoutRevokesOnlyPresentedToken(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first := fx.authenticate(t)
	second := fx.authenticate(t)

	if err := fx.svc.Logout(ctx, first); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := fx.svc.ValidateToken(ctx, first); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("revoked token still validates: %v", err)
	}
	if _, err := fx.svc.ValidateToken(ctx, second); err != nil {
		t.Fatalf("second device session should survive: %v", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	fx := newFixture(t)
	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := fx.svc.ValidateToken(context.Background(), token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestValidateTokenExpires(t *testing.T) {
	fx := newFixture(t, auth.WithSessionTTL(time.Hour))
	token := fx.authenticate(t)

	fx.clock.Advance(2 * time.Hour)
	if _, err := fx.svc.ValidateToken(context.Background(), token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected expired token rejection, got %v", err)
	}
}

func TestDeactivationKillsLiveSessions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	token := fx.authenticate(t)

	if err := fx.svc.SetOfficialActive(ctx, 1, false); err != nil {
		t.Fatalf("SetOfficialActive: %v", err)
	}
	if _, err := fx.svc.ValidateToken(ctx, token); err == nil {
		t.Fatalf("deactivated official's token still validates")
	}
}
