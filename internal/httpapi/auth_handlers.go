package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"fleetgov.org/internal/auth"
)

type loginRequest struct {
	PersonalNumber string `json:"personal_number"`
	Password       string `json:"password"`
}

type loginResponse struct {
	OfficialID int64        `json:"official_id"`
	Channel    auth.Channel `json:"channel"`
	ExpiresAt  time.Time    `json:"expires_at"`
	Delivered  bool         `json:"delivered"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.PersonalNumber) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "personal_number and password are required")
		return
	}

	res, err := a.svc.Login(r.Context(), req.PersonalNumber, req.Password)
	if err != nil {
		// The first factor can succeed while delivery fails. The challenge
		// stays live, so tell the caller and let them ask for a resend.
		if errors.Is(err, auth.ErrDeliveryFailure) && res != nil {
			writeJSON(w, http.StatusBadGateway, loginResponse{
				OfficialID: res.OfficialID,
				Channel:    res.Channel,
				ExpiresAt:  res.ExpiresAt,
				Delivered:  false,
			})
			return
		}
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		OfficialID: res.OfficialID,
		Channel:    res.Channel,
		ExpiresAt:  res.ExpiresAt,
		Delivered:  true,
	})
}

type otpVerifyRequest struct {
	OfficialID int64  `json:"official_id"`
	Code       string `json:"code"`
}

type otpVerifyResponse struct {
	Token string `json:"token"`
}

func (a *API) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req otpVerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.OfficialID <= 0 || req.Code == "" {
		writeError(w, r, http.StatusBadRequest, "official_id and code are required")
		return
	}

	token, err := a.svc.VerifyOTP(r.Context(), req.OfficialID, req.Code)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, otpVerifyResponse{Token: token})
}

type otpResendRequest struct {
	OfficialID int64 `json:"official_id"`
}

func (a *API) handleOTPResend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req otpResendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.OfficialID <= 0 {
		writeError(w, r, http.StatusBadRequest, "official_id is required")
		return
	}

	if err := a.svc.ResendOTP(r.Context(), req.OfficialID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "sent"})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.svc.Logout(r.Context(), token); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}
