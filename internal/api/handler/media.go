package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/usecase"
)

// Request/Response types

type CreateMediaRequest struct {
	Name     string `json:"name"`
	FileName string `json:"file_name"`
}

type CreateMediaResponse struct {
	MediaResponse
	UploadURL string `json:"upload_url"`
}

type MediaResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Hash       string  `json:"hash,omitempty"`
	FrameCount int     `json:"frame_count,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

type ListMediaResponse struct {
	Media []MediaResponse `json:"media"`
	Count int             `json:"count"`
}

// MediaHandler handles media-related HTTP requests.
type MediaHandler struct {
	svc    usecase.MediaService
	logger *slog.Logger
}

// NewMediaHandler creates a new MediaHandler.
func NewMediaHandler(svc usecase.MediaService, logger *slog.Logger) *MediaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaHandler{svc: svc, logger: logger}
}

// Create handles POST /v1/media
func (h *MediaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if req.Name == "" {
		Error(w, http.StatusBadRequest, "invalid_name", "Name is required")
		return
	}

	if req.FileName == "" {
		Error(w, http.StatusBadRequest, "invalid_file_name", "File name is required")
		return
	}

	output, err := h.svc.CreateMedia(r.Context(), usecase.CreateMediaInput{
		Name:     req.Name,
		FileName: req.FileName,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	JSON(w, http.StatusCreated, CreateMediaResponse{
		MediaResponse: toMediaResponse(output.Media),
		UploadURL:     output.UploadURL,
	})
}

// List handles GET /v1/media?limit=&offset=
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}

	media, err := h.svc.ListMedia(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	resp := ListMediaResponse{
		Media: make([]MediaResponse, 0, len(media)),
		Count: len(media),
	}
	for _, m := range media {
		resp.Media = append(resp.Media, toMediaResponse(m))
	}
	JSON(w, http.StatusOK, resp)
}

// Get handles GET /v1/media/{id}
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	mediaID, ok := parseMediaID(w, r)
	if !ok {
		return
	}

	media, err := h.svc.GetMedia(r.Context(), mediaID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	JSON(w, http.StatusOK, toMediaResponse(media))
}

// Delete handles DELETE /v1/media/{id}
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	mediaID, ok := parseMediaID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteMedia(r.Context(), mediaID); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TriggerProbe handles POST /v1/media/{id}/probe
func (h *MediaHandler) TriggerProbe(w http.ResponseWriter, r *http.Request) {
	mediaID, ok := parseMediaID(w, r)
	if !ok {
		return
	}

	if err := h.svc.TriggerProbe(r.Context(), mediaID); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func parseMediaID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	mediaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_media_id", "Media ID must be a valid UUID")
		return uuid.Nil, false
	}
	return mediaID, true
}

// queryInt parses an optional integer query parameter. A missing
// parameter yields 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_"+name, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func toMediaResponse(m *model.Media) MediaResponse {
	return MediaResponse{
		ID:         m.ID.String(),
		Name:       m.Name,
		Status:     m.Status.String(),
		Hash:       m.Hash,
		FrameCount: m.FrameCount,
		FPS:        m.FPS,
		Width:      m.Width,
		Height:     m.Height,
		CreatedAt:  m.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  m.UpdatedAt.Format(time.RFC3339),
	}
}
