// Package audit records security-relevant identity events: lockouts,
// authorization denials, account state changes. Events land in the structured
// log under a fixed "audit" marker so they can be shipped separately.
package audit

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"fleetgov.org/internal/auth"
)

type ctxKey string

const (
	requestIDKey  ctxKey = "audit_request_id"
	sourceAddrKey ctxKey = "audit_source_addr"
)

// WithRequestID attaches the request identifier for audit enrichment.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithSourceAddr attaches the caller's network address.
func WithSourceAddr(ctx context.Context, addr string) context.Context {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ctx
	}
	return context.WithValue(ctx, sourceAddrKey, addr)
}

func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func sourceAddrFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sourceAddrKey).(string); ok {
		return v
	}
	return ""
}

// LogRecorder writes audit events through zap.
type LogRecorder struct {
	log *zap.Logger
}

var _ auth.Recorder = (*LogRecorder)(nil)

func NewLogRecorder(log *zap.Logger) *LogRecorder {
	return &LogRecorder{log: log.Named("audit")}
}

func (r *LogRecorder) Record(ctx context.Context, ev auth.Event) {
	fields := make([]zap.Field, 0, 10)
	fields = append(fields,
		zap.String("type", "audit"),
		zap.Time("at", ev.At),
		zap.String("action", ev.Action),
		zap.String("outcome", ev.Outcome),
	)
	if ev.OfficialID != 0 {
		fields = append(fields, zap.Int64("official_id", ev.OfficialID))
	}
	if ev.PersonalNumber != "" {
		fields = append(fields, zap.String("personal_number", ev.PersonalNumber))
	}
	if ev.Permission != "" {
		fields = append(fields, zap.String("permission", ev.Permission))
	}
	if ev.TargetOrgID != 0 {
		fields = append(fields, zap.Int64("target_org_id", ev.TargetOrgID))
	}
	if ev.Reason != "" {
		fields = append(fields, zap.String("reason", ev.Reason))
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	if addr := sourceAddrFromContext(ctx); addr != "" {
		fields = append(fields, zap.String("source_addr", addr))
	}
	r.log.Info(ev.Action, fields...)
}
