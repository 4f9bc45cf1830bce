// Package httpapi is the HTTP boundary. Handlers stay thin: decode, call the
// identity layer, map the error taxonomy onto status codes.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fleetgov.org/internal/auth"
	"fleetgov.org/internal/obs"
)

// ReadyProbe reports whether the backing stores are reachable.
type ReadyProbe struct {
	DB    *sql.DB
	Redis func(context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		return rp.Redis(ctx)
	}
	return nil
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	svc        *auth.Service
	gate       *auth.Gate
	directory  auth.OfficialStore
	log        *zap.Logger
	readyProbe ReadyProbe
	version    string
}

func New(svc *auth.Service, gate *auth.Gate, directory auth.OfficialStore, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		gate:       gate,
		directory:  directory,
		log:        obs.Named("httpapi"),
		readyProbe: rp,
		version:    version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// login protocol
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/otp/verify", a.handleOTPVerify)
	a.mux.HandleFunc("/v1/auth/otp/resend", a.handleOTPResend)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	// permission-gated fleet operations
	a.mux.HandleFunc("/v1/vehicles/", a.handleVehicleScoped)
	a.mux.HandleFunc("/v1/bookings/", a.handleBookingScoped)
	a.mux.HandleFunc("/v1/reports/fleet", a.handleFleetReport)
	a.mux.HandleFunc("/v1/officials", a.handleOfficials)
	a.mux.HandleFunc("/v1/officials/", a.handleOfficialScoped)
	a.mux.HandleFunc("/v1/governance/intervene", a.handleGovernanceIntervention)
	a.mux.HandleFunc("/v1/budget/oversight", a.handleBudgetOversight)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 20, 10)
	h = SecurityHeaders(h)
	h = Logging(a.log, h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "fleetgov-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "fleetgov-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
