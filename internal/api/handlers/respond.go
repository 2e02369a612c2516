package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// errorBody is the shape of every failure response.
type errorBody struct {
	Success bool `json:"success"`
	Errors  any  `json:"errors"`
}

type messageError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Errors: []messageError{{Message: message}}})
}

func writeBadBody(w http.ResponseWriter) {
	writeMessage(w, http.StatusBadRequest, "Invalid request body")
}

func writeServerError(w http.ResponseWriter) {
	writeMessage(w, http.StatusInternalServerError, "A server error occurred")
}
