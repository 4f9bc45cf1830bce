package auth

import (
	"errors"
	"testing"
)

func TestValidatePersonalNumber(t *testing.T) {
	valid := []string{"123456", "87451210", "0001234"}
	for _, pn := range valid {
		if err := ValidatePersonalNumber(pn); err != nil {
			t.Fatalf("ValidatePersonalNumber(%q) = %v, want nil", pn, err)
		}
	}

	invalid := []string{"12345", "123456789", "12a456", " 123456", "123456 ", ""}
	for _, pn := range invalid {
		if err := ValidatePersonalNumber(pn); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ValidatePersonalNumber(%q) = %v, want ErrInvalidInput", pn, err)
		}
	}
}

func TestNewOfficialDerivesLevelFromRole(t *testing.T) {
	o, err := NewOfficial(1, "123456", "A. Wanjiku", "Fleet Manager", "P", RoleFleetManager, 7)
	if err != nil {
		t.Fatalf("NewOfficial: %v", err)
	}
	if o.Level != LevelOf(RoleFleetManager) {
		t.Fatalf("level %d does not match role constant %d", o.Level, LevelOf(RoleFleetManager))
	}
	if !o.Active {
		t.Fatalf("new officials start active")
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestNewOfficialRejectsUnknownRole(t *testing.T) {
	if _, err := NewOfficial(1, "123456", "X", "", "", Role("intern"), 1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestValidateRejectsLevelMismatch(t *testing.T) {
	o, err := NewOfficial(1, "123456", "A. Wanjiku", "", "", RoleDriver, 7)
	if err != nil {
		t.Fatalf("NewOfficial: %v", err)
	}
	o.Level = 1
	if err := o.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected level mismatch rejection, got %v", err)
	}
}

func TestRecipientFollowsChannel(t *testing.T) {
	o := &Official{Email: "fm@transport.go.ke", Phone: "+254700000001", Channel: ChannelEmail}
	if got := o.Recipient(); got != "fm@transport.go.ke" {
		t.Fatalf("email recipient = %q", got)
	}
	o.Channel = ChannelSMS
	if got := o.Recipient(); got != "+254700000001" {
		t.Fatalf("sms recipient = %q", got)
	}
}
