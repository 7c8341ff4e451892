package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"streamvault/internal/database"
	"streamvault/models"
	"streamvault/services/admin"
)

type adminService interface {
	ListContent(ctx context.Context) ([]models.Content, error)
	CreateContent(ctx context.Context, in models.ContentUpsert) (*models.Content, error)
	UpdateContent(ctx context.Context, extID string, in models.ContentUpsert) (*models.Content, error)
	DeleteContent(ctx context.Context, extID string) error
	AddEpisode(ctx context.Context, extID string, ep models.Episode) (*models.Content, error)
	RemoveEpisode(ctx context.Context, extID string, season, episode int) (*models.Content, error)
}

var _ adminService = (*admin.Service)(nil)

// AdminHandler serves the content-management console endpoints. Operator
// authentication sits in front of these routes, outside this core.
type AdminHandler struct {
	Service adminService
	Logger  *slog.Logger
}

func NewAdminHandler(service adminService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{Service: service, Logger: logger}
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListContent(r.Context())
	if err != nil {
		serverError(h.Logger, w, r, "admin list failed", err)
		return
	}
	if items == nil {
		items = []models.Content{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body models.ContentUpsert
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.Service.CreateContent(r.Context(), body)
	if err != nil {
		h.writeAdminError(w, r, "admin create failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": item})
}

func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	extID := strings.TrimSpace(mux.Vars(r)["extId"])

	var body models.ContentUpsert
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.Service.UpdateContent(r.Context(), extID, body)
	if err != nil {
		h.writeAdminError(w, r, "admin update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	extID := strings.TrimSpace(mux.Vars(r)["extId"])

	if err := h.Service.DeleteContent(r.Context(), extID); err != nil {
		h.writeAdminError(w, r, "admin delete failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) AddEpisode(w http.ResponseWriter, r *http.Request) {
	extID := strings.TrimSpace(mux.Vars(r)["extId"])

	var body models.Episode
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.Service.AddEpisode(r.Context(), extID, body)
	if err != nil {
		h.writeAdminError(w, r, "admin add episode failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (h *AdminHandler) RemoveEpisode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	extID := strings.TrimSpace(vars["extId"])
	season, err1 := strconv.Atoi(vars["season"])
	episode, err2 := strconv.Atoi(vars["episode"])
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "season and episode must be numeric")
		return
	}

	item, err := h.Service.RemoveEpisode(r.Context(), extID, season, episode)
	if err != nil {
		h.writeAdminError(w, r, "admin remove episode failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (h *AdminHandler) writeAdminError(w http.ResponseWriter, r *http.Request, event string, err error) {
	switch {
	case errors.Is(err, admin.ErrTitleRequired),
		errors.Is(err, admin.ErrInvalidType),
		errors.Is(err, admin.ErrInvalidEpisode),
		errors.Is(err, admin.ErrInvalidMedia):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, admin.ErrDuplicateEpisode):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrContentNotFound):
		writeError(w, http.StatusNotFound, "content not found")
	default:
		serverError(h.Logger, w, r, event, err)
	}
}
