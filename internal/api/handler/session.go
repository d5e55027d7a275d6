package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hszk-dev/framestream/internal/api/middleware"
	"github.com/hszk-dev/framestream/internal/domain/model"
	"github.com/hszk-dev/framestream/internal/player"
	"github.com/hszk-dev/framestream/internal/usecase"
)

type OpenSessionRequest struct {
	Start int `json:"start"`
}

type ControlRequest struct {
	Action    string          `json:"action"`
	Direction model.Direction `json:"direction,omitempty"`
	Index     int             `json:"index,omitempty"`
	FPS       float64         `json:"fps,omitempty"`
}

type SessionResponse struct {
	MediaID string       `json:"media_id"`
	Backend string       `json:"backend"`
	Width   int          `json:"width"`
	Height  int          `json:"height"`
	State   player.State `json:"state"`
}

var pngEncoder = png.Encoder{CompressionLevel: png.BestSpeed}

// SessionHandler handles playback sessions and frame reads.
type SessionHandler struct {
	svc    usecase.SessionService
	logger *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(svc usecase.SessionService, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{svc: svc, logger: logger}
}

// Open handles POST /v1/media/{id}/session. The body is optional.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	mediaID, ok := parseMediaID(w, r)
	if !ok {
		return
	}

	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	info, err := h.svc.Open(r.Context(), mediaID, req.Start)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	JSON(w, http.StatusCreated, toSessionResponse(info))
}

// Info handles GET /v1/media/{id}/session
func (h *SessionHandler) Info(w http.ResponseWriter, r *http.Request) {
	mediaID, ok := parseMediaID(w, r)
	if !ok {
		return
	}

	info, err := h.svc.Info(r.Context(), mediaID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	JSON(w, http.StatusOK, toSessionResponse(info))
}

// Close handles DELETE /v1/media/{id}/session
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	mediaID, ok := parseMediaID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Close(r.Context(), mediaID); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Control handles POST /v1/media/{id}/session/control
func (h *SessionHandler) Control(w http.ResponseWriter, r *http.Request) {
	mediaID, ok := parseMediaID(w, r)
	if !ok {
		return
	}

	var req ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	info, err := h.svc.Control(r.Context(), mediaID, usecase.Command{
		Action:    usecase.Action(req.Action),
		Direction: req.Direction,
		Index:     req.Index,
		FPS:       req.FPS,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	JSON(w, http.StatusOK, toSessionResponse(info))
}

// Frame handles GET /v1/media/{id}/frames/{index}?once=
func (h *SessionHandler) Frame(w http.ResponseWriter, r *http.Request) {
	mediaID, ok := parseMediaID(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid_index", "Frame index must be an integer")
		return
	}

	once := false
	if raw := r.URL.Query().Get("once"); raw != "" {
		if once, err = strconv.ParseBool(raw); err != nil {
			Error(w, http.StatusBadRequest, "invalid_once", "once must be a boolean")
			return
		}
	}

	frame, err := h.svc.Frame(r.Context(), mediaID, index, once)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.writeFrame(w, r, frame)
}

// Current handles GET /v1/media/{id}/session/frame
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	mediaID, ok := parseMediaID(w, r)
	if !ok {
		return
	}

	frame, err := h.svc.Current(r.Context(), mediaID)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.writeFrame(w, r, frame)
}

// writeFrame encodes frame as PNG and releases it.
func (h *SessionHandler) writeFrame(w http.ResponseWriter, r *http.Request, frame *model.Frame) {
	var buf bytes.Buffer
	err := pngEncoder.Encode(&buf, frame.Image())
	index, ts := frame.Index, frame.Timestamp
	if rerr := frame.Release(); rerr != nil {
		middleware.LoggerWithRequestID(r.Context(), h.logger).Warn("failed to release frame",
			slog.Int("index", index),
			slog.String("error", rerr.Error()),
		)
	}
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Frame-Index", strconv.Itoa(index))
	w.Header().Set("X-Frame-Timestamp", ts.String())
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func toSessionResponse(info *usecase.SessionInfo) SessionResponse {
	return SessionResponse{
		MediaID: info.MediaID.String(),
		Backend: string(info.Backend),
		Width:   info.Width,
		Height:  info.Height,
		State:   info.State,
	}
}
