package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/s-hosono/stamprally/internal/auth"
	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/services"
)

// AuthHandler handles HTTP requests for registration and login.
type AuthHandler struct {
	service      services.AuthServiceProvider
	tokens       *auth.TokenIssuer
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. secureCookie sets the Secure
// flag on the token cookie.
func NewAuthHandler(service services.AuthServiceProvider, tokens *auth.TokenIssuer, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: service, tokens: tokens, secureCookie: secureCookie}
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by a successful register or login.
type AuthResponse struct {
	Success bool        `json:"success"`
	User    models.User `json:"user"`
	Token   string      `json:"token"`
}

// Register handles new user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadBody(w)
		return
	}

	user, err := h.service.Register(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		writeAuthErrors(w, err)
		return
	}
	h.issue(w, user)
}

// Login handles user authentication and JWT generation.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadBody(w)
		return
	}

	user, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeAuthErrors(w, err)
		return
	}
	h.issue(w, user)
}

// issue signs a token for user, sets it as a cookie and writes the response.
func (h *AuthHandler) issue(w http.ResponseWriter, user models.User) {
	token, err := h.tokens.Generate(user)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		writeServerError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Expires:  time.Now().Add(h.tokens.TTL()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	writeJSON(w, http.StatusOK, AuthResponse{Success: true, User: user, Token: token})
}

// writeAuthErrors maps service failures onto status codes: internal errors
// are 500, rejected credentials 401 and everything else 400.
func writeAuthErrors(w http.ResponseWriter, err error) {
	var errs services.AuthErrors
	if !errors.As(err, &errs) {
		log.Error().Err(err).Msg("Unexpected authentication failure")
		writeServerError(w)
		return
	}

	status := http.StatusBadRequest
	switch {
	case errs.Has(services.KindInternal):
		status = http.StatusInternalServerError
	case errs.Has(services.KindInvalidCredentials):
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, errorBody{Errors: errs})
}
