package control

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/livescript/livescript/internal/docstore"
	"github.com/livescript/livescript/internal/httputil"
	"github.com/livescript/livescript/internal/validate"
)

type Handler struct {
	svc     *Service
	baseURL string
}

func NewHandler(svc *Service, baseURL string) *Handler {
	return &Handler{svc: svc, baseURL: baseURL}
}

func (h *Handler) GetPresentation(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Presentation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "failed to load presentation")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

type advanceRequest struct {
	Direction string `json:"direction"`
}

type syncResponse struct {
	SyncID string `json:"syncId"`
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dir, err := ParseDirection(req.Direction)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	syncID, err := h.svc.Advance(r.Context(), chi.URLParam(r, "id"), dir)
	if err != nil {
		writeServiceError(w, err, "failed to advance")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, syncResponse{SyncID: syncID})
}

type jumpRequest struct {
	TranscriptID string `json:"transcriptId"`
}

func (h *Handler) Jump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	transcriptID := strings.TrimSpace(req.TranscriptID)
	if transcriptID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "transcriptId is required")
		return
	}

	if err := h.svc.Jump(r.Context(), chi.URLParam(r, "id"), transcriptID); err != nil {
		writeServiceError(w, err, "failed to jump")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, syncResponse{SyncID: transcriptID})
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reset(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err, "failed to reset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListGroupPresentations(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.GroupPresentations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "failed to list presentations")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) ShareLinks(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ShareLinks(h.baseURL, chi.URLParam(r, "id")))
}

type promoteRequest struct {
	PresentationID string `json:"presentationId"`
	Confirm        bool   `json:"confirm"`
}

func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	var req promoteRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.PresentationID) == "" {
		httputil.WriteError(w, http.StatusBadRequest, "presentationId is required")
		return
	}
	if msg := validate.ID(req.PresentationID); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	groupID := chi.URLParam(r, "id")
	if err := h.svc.PromoteToAudience(r.Context(), groupID, req.PresentationID, req.Confirm); err != nil {
		writeServiceError(w, err, "failed to update live presentation")
		return
	}
	slog.Info("control: presentation promoted to audience", "group_id", groupID, "presentation_id", req.PresentationID)
	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, ErrConfirmationRequired):
		httputil.WriteError(w, http.StatusPreconditionRequired, err.Error())
	case errors.Is(err, ErrTranscriptNotInPresentation):
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrPresentationNotInGroup):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidDirection):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("control: "+fallback, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, fallback)
	}
}
