package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/s-hosono/stamprally/internal/services"
)

// BackupHandler handles HTTP requests related to backups.
type BackupHandler struct {
	service services.BackupServiceProvider
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(service services.BackupServiceProvider) *BackupHandler {
	return &BackupHandler{service: service}
}

// GetAll handles the request to list backup archives, newest first.
func (h *BackupHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	backups, err := h.service.ListBackups()
	if err != nil {
		log.Error().Err(err).Msg("Failed to retrieve backups")
		writeServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "backups": backups})
}
