package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"streamvault/internal/database"
	"streamvault/models"
)

type engagementStore interface {
	ToggleLike(ctx context.Context, profileID, extID string, like bool) (bool, int, error)
	UpsertProgress(ctx context.Context, p models.WatchProgress) error
	GetProgress(ctx context.Context, profileID, extID string) ([]models.WatchProgress, error)
	ListContinueWatching(ctx context.Context, profileID string, limit int) ([]models.WatchProgress, error)
	DeleteProgress(ctx context.Context, profileID, extID string) (int64, error)
}

var _ engagementStore = (*database.EngagementRepository)(nil)

// EngagementHandler serves like toggles and watch-progress CRUD.
type EngagementHandler struct {
	Store  engagementStore
	Logger *slog.Logger
}

func NewEngagementHandler(store engagementStore, logger *slog.Logger) *EngagementHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EngagementHandler{Store: store, Logger: logger}
}

func (h *EngagementHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	var body models.LikeToggle
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.ProfileID) == "" || strings.TrimSpace(body.ContentExtID) == "" {
		writeError(w, http.StatusBadRequest, "profileId and contentExtId are required")
		return
	}

	liked, likes, err := h.Store.ToggleLike(r.Context(), body.ProfileID, body.ContentExtID, body.Like)
	if err != nil {
		if errors.Is(err, database.ErrContentNotFound) {
			writeError(w, http.StatusNotFound, "content not found")
			return
		}
		serverError(h.Logger, w, r, "like toggle failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"liked": liked, "likes": likes})
}

func (h *EngagementHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	profileID, extID, ok := h.requireProgressKeys(w, r)
	if !ok {
		return
	}

	items, err := h.Store.GetProgress(r.Context(), profileID, extID)
	if err != nil {
		serverError(h.Logger, w, r, "get progress failed", err)
		return
	}
	if items == nil {
		items = []models.WatchProgress{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *EngagementHandler) PostProgress(w http.ResponseWriter, r *http.Request) {
	var body models.ProgressUpsert
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if strings.TrimSpace(body.ProfileID) == "" || strings.TrimSpace(body.ContentExtID) == "" {
		writeError(w, http.StatusBadRequest, "profileId and contentExtId are required")
		return
	}
	if (body.Season == nil) != (body.Episode == nil) {
		writeError(w, http.StatusBadRequest, "season and episode must be provided together")
		return
	}
	if body.Season != nil && (*body.Season < 1 || *body.Episode < 1) {
		writeError(w, http.StatusBadRequest, "season and episode must be positive")
		return
	}
	if body.PositionSec < 0 || body.DurationSec < 0 {
		writeError(w, http.StatusBadRequest, "positionSec and durationSec must not be negative")
		return
	}

	progress := models.WatchProgress{
		ProfileID:    body.ProfileID,
		ContentExtID: body.ContentExtID,
		Season:       body.Season,
		Episode:      body.Episode,
		PositionSec:  body.PositionSec,
		DurationSec:  body.DurationSec,
		Completed:    body.Completed,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := h.Store.UpsertProgress(r.Context(), progress); err != nil {
		serverError(h.Logger, w, r, "upsert progress failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": progress})
}

// DeleteProgress is the bulk "rewatch" reset for one (profile, content) pair.
func (h *EngagementHandler) DeleteProgress(w http.ResponseWriter, r *http.Request) {
	profileID, extID, ok := h.requireProgressKeys(w, r)
	if !ok {
		return
	}

	deleted, err := h.Store.DeleteProgress(r.Context(), profileID, extID)
	if err != nil {
		serverError(h.Logger, w, r, "delete progress failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (h *EngagementHandler) ContinueWatching(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	profileID := strings.TrimSpace(q.Get("profileId"))
	if profileID == "" {
		writeError(w, http.StatusBadRequest, "profileId is required")
		return
	}

	items, err := h.Store.ListContinueWatching(r.Context(), profileID, intParam(q.Get("limit"), 20))
	if err != nil {
		serverError(h.Logger, w, r, "continue watching failed", err)
		return
	}
	if items == nil {
		items = []models.WatchProgress{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *EngagementHandler) requireProgressKeys(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	q := r.URL.Query()
	profileID := strings.TrimSpace(q.Get("profileId"))
	extID := strings.TrimSpace(q.Get("extId"))
	if profileID == "" || extID == "" {
		writeError(w, http.StatusBadRequest, "profileId and extId are required")
		return "", "", false
	}
	return profileID, extID, true
}
