package audit

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"fleetgov.org/internal/auth"
)

func TestRecordIncludesContextEnrichment(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := NewLogRecorder(zap.New(core))

	ctx := WithRequestID(context.Background(), "req-42")
	ctx = WithSourceAddr(ctx, "10.0.0.9")

	rec.Record(ctx, auth.Event{
		At:          time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Action:      "auth.deny",
		OfficialID:  12,
		Permission:  "assign_vehicle",
		TargetOrgID: 9,
		Outcome:     "deny",
		Reason:      "out_of_scope",
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	for key, want := range map[string]any{
		"type":          "audit",
		"action":        "auth.deny",
		"outcome":       "deny",
		"official_id":   int64(12),
		"permission":    "assign_vehicle",
		"target_org_id": int64(9),
		"reason":        "out_of_scope",
		"request_id":    "req-42",
		"source_addr":   "10.0.0.9",
	} {
		if fields[key] != want {
			t.Errorf("field %q = %v, want %v", key, fields[key], want)
		}
	}
}

func TestRecordOmitsEmptyFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := NewLogRecorder(zap.New(core))

	rec.Record(context.Background(), auth.Event{
		At:      time.Now(),
		Action:  "auth.lockout",
		Outcome: "locked",
	})

	fields := logs.All()[0].ContextMap()
	for _, key := range []string{"official_id", "personal_number", "permission", "request_id"} {
		if _, ok := fields[key]; ok {
			t.Errorf("field %q should be omitted when empty", key)
		}
	}
}
