package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/services"
)

// UserHandler serves the diagnostic user listing.
type UserHandler struct {
	service services.AuthServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.AuthServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

// List handles GET /users. Emails are masked.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		writeServerError(w)
		return
	}

	masked := make([]models.User, len(users))
	for i, u := range users {
		u.Email = MaskEmail(u.Email)
		masked[i] = u
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": masked})
}

// MaskEmail keeps the first two characters of the local part and the
// domain, replacing the rest of the local part with "***".
// "taro.yamada@example.com" becomes "ta***@example.com".
func MaskEmail(email string) string {
	local, domain := email, ""
	if at := strings.LastIndex(email, "@"); at >= 0 {
		local, domain = email[:at], email[at:]
	}
	keep := []rune(local)
	if len(keep) > 2 {
		keep = keep[:2]
	}
	return string(keep) + "***" + domain
}
