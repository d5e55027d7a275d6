package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hszk-dev/framestream/internal/api/middleware"
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/player"
	"github.com/hszk-dev/framestream/internal/usecase"
)

type serviceError struct {
	target  error
	status  int
	code    string
	message string
}

// serviceErrors is checked in order; the first errors.Is match wins.
var serviceErrors = []serviceError{
	{repository.ErrMediaNotFound, http.StatusNotFound, "media_not_found", "Media not found"},
	{repository.ErrSessionNotFound, http.StatusNotFound, "session_not_found", "No playback session is open for this media"},
	{repository.ErrFrameNotFound, http.StatusNotFound, "frame_not_found", "Frame not found"},
	{repository.ErrObjectNotFound, http.StatusNotFound, "object_not_found", "Media file not found in storage"},

	{model.ErrEmptyName, http.StatusBadRequest, "invalid_name", "Name cannot be empty"},
	{model.ErrNameTooLong, http.StatusBadRequest, "invalid_name", "Name exceeds maximum length"},
	{usecase.ErrInvalidFileName, http.StatusBadRequest, "invalid_file_name", "File name must be a plain file name"},
	{usecase.ErrInvalidCommand, http.StatusBadRequest, "invalid_command", "Unknown playback command"},
	{model.ErrInvalidDirection, http.StatusBadRequest, "invalid_direction", "Direction must be forward or backward"},
	{player.ErrInvalidFPS, http.StatusBadRequest, "invalid_fps", "FPS must be positive"},
	{repository.ErrInvalidRange, http.StatusBadRequest, "invalid_range", "Invalid frame range"},

	{usecase.ErrMediaAlreadyProbed, http.StatusConflict, "media_already_probed", "Media has already been probed"},
	{usecase.ErrUploadIncomplete, http.StatusConflict, "upload_incomplete", "Media file has not been uploaded yet"},
	{usecase.ErrMediaNotReady, http.StatusConflict, "media_not_ready", "Media is not ready for playback"},
	{repository.ErrDuplicateMedia, http.StatusConflict, "duplicate_media", "Media already exists"},
	{repository.ErrInvalidState, http.StatusConflict, "invalid_state", "Frames are not loaded"},
}

// handleServiceError maps a service error to a JSON error response.
// Unmapped errors are logged and reported as 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.target) {
			Error(w, se.status, se.code, se.message)
			return
		}
	}

	middleware.LoggerWithRequestID(r.Context(), logger).Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}
