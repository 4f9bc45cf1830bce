package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"fleetgov.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/login",
	"/v1/auth/otp/verify",
	"/v1/auth/otp/resend",
}

// withAuth authenticates every non-public request: bearer token, live
// session, active official. The official lands in the request context for
// the gate checks downstream.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		official, err := a.svc.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrAccountInactive):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
			}
			return
		}

		ctx := auth.ContextWithActor(r.Context(), official)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireActor fetches the authenticated official placed by withAuth.
func requireActor(w http.ResponseWriter, r *http.Request) (*auth.Official, bool) {
	official, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return official, true
}

// ensurePermission runs the gate for the actor against the target
// organization and writes the mapped refusal when denied.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, permission string, targetOrgID int64) (*auth.Official, bool) {
	official, ok := requireActor(w, r)
	if !ok {
		return nil, false
	}
	dec := a.gate.AuthorizeOfficial(r.Context(), official, permission, targetOrgID)
	if !dec.Allow {
		handleAuthError(w, r, dec.Err())
		return nil, false
	}
	return official, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
