package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/s-hosono/stamprally/internal/auth"
	"github.com/s-hosono/stamprally/internal/models"
	"github.com/s-hosono/stamprally/internal/services"
	"github.com/s-hosono/stamprally/internal/stamps"
)

// StampHandler handles the authenticated stamp endpoints.
type StampHandler struct {
	service services.StampServiceProvider
}

// NewStampHandler creates a new StampHandler.
func NewStampHandler(service services.StampServiceProvider) *StampHandler {
	return &StampHandler{service: service}
}

// ScanPayload is the body of a scan request. Location is optional.
type ScanPayload struct {
	QRCode   string           `json:"qrCode"`
	Location *models.Location `json:"location,omitempty"`
}

// ScanResponse is returned for every scan decision.
type ScanResponse struct {
	Success    bool               `json:"success"`
	Outcome    stamps.Status      `json:"outcome"`
	Stamp      *models.UserStamp  `json:"stamp,omitempty"`
	Point      *models.StampPoint `json:"point,omitempty"`
	DistanceKm *float64           `json:"distanceKm,omitempty"`
	Errors     []messageError     `json:"errors,omitempty"`
}

var rejections = map[stamps.Status]struct {
	status  int
	message string
}{
	stamps.InvalidCode:      {http.StatusBadRequest, "This QR code does not belong to a stamp point"},
	stamps.AlreadyCollected: {http.StatusConflict, "You have already collected this stamp"},
	stamps.OutOfRange:       {http.StatusForbidden, "You are too far away from this stamp point"},
}

// GetPoints lists the catalog annotated with the caller's completion state.
func (h *StampHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	points, err := h.service.Points(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to retrieve stamp points")
		writeServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "points": points})
}

// GetCollected lists the caller's stamps in collection order.
func (h *StampHandler) GetCollected(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	collected, err := h.service.Collected(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to retrieve collected stamps")
		writeServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stamps": collected})
}

// GetProgress reports the caller's overall and per-category progress.
func (h *StampHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	progress, err := h.service.Progress(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to compute progress")
		writeServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "progress": progress})
}

// Scan handles a QR code scan.
func (h *StampHandler) Scan(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var payload ScanPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadBody(w)
		return
	}
	if strings.TrimSpace(payload.QRCode) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Errors: []services.FieldError{{Field: "qrCode", Message: "Please scan a QR code"}}})
		return
	}

	outcome, err := h.service.Scan(r.Context(), userID, payload.QRCode, payload.Location)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to commit stamp")
		writeServerError(w)
		return
	}

	resp := ScanResponse{
		Success:    outcome.Accepted(),
		Outcome:    outcome.Status,
		Stamp:      outcome.Stamp,
		Point:      outcome.Point,
		DistanceKm: outcome.DistanceKm,
	}
	status := http.StatusOK
	if rej, rejected := rejections[outcome.Status]; rejected {
		status = rej.status
		resp.Errors = []messageError{{Message: rej.message}}
	}
	writeJSON(w, status, resp)
}

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		log.Error().Msg("Could not retrieve user claims from context")
		writeMessage(w, http.StatusUnauthorized, "Missing auth token")
		return "", false
	}
	return claims.UserID, true
}
