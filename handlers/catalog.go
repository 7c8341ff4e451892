package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"streamvault/models"
	"streamvault/services/catalog"
)

const defaultPageSize = 50

type catalogService interface {
	GetFeed(ctx context.Context, q catalog.FeedQuery) ([]models.FeedItem, error)
	Search(ctx context.Context, q catalog.SearchQuery) (models.SearchQueryEcho, []models.FeedItem, error)
	Similar(ctx context.Context, extID string, limit int, profileID string) ([]models.FeedItem, error)
	Recommend(ctx context.Context, profileID string, limit, offset int) ([]models.FeedItem, error)
	GetDetail(ctx context.Context, extID, profileID string) (*models.FeedItem, error)
}

var _ catalogService = (*catalog.Service)(nil)

// CatalogHandler serves the feed, search, similar and recommendation
// endpoints.
type CatalogHandler struct {
	Service catalogService
	Logger  *slog.Logger
}

func NewCatalogHandler(service catalogService, logger *slog.Logger) *CatalogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogHandler{Service: service, Logger: logger}
}

func (h *CatalogHandler) Feed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.Service.GetFeed(r.Context(), catalog.FeedQuery{
		Sort:      q.Get("sort"),
		Limit:     intParam(q.Get("limit"), defaultPageSize),
		Offset:    intParam(q.Get("offset"), 0),
		ProfileID: strings.TrimSpace(q.Get("profileId")),
	})
	if err != nil {
		serverError(h.Logger, w, r, "feed failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	echo, items, err := h.Service.Search(r.Context(), catalog.SearchQuery{
		Query:     q.Get("query"),
		Type:      q.Get("type"),
		Genre:     q.Get("genre"),
		YearFrom:  q.Get("year_from"),
		YearTo:    q.Get("year_to"),
		Sort:      q.Get("sort"),
		Limit:     intParam(q.Get("limit"), defaultPageSize),
		Offset:    intParam(q.Get("offset"), 0),
		ProfileID: strings.TrimSpace(q.Get("profileId")),
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrInvalidYear), errors.Is(err, catalog.ErrInvalidRange):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			serverError(h.Logger, w, r, "search failed", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": echo, "items": items})
}

func (h *CatalogHandler) Similar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	extID := strings.TrimSpace(q.Get("extId"))
	if extID == "" {
		writeError(w, http.StatusBadRequest, "extId is required")
		return
	}

	items, err := h.Service.Similar(r.Context(), extID,
		intParam(q.Get("limit"), 20), strings.TrimSpace(q.Get("profileId")))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "content not found")
			return
		}
		serverError(h.Logger, w, r, "similar failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CatalogHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	profileID := strings.TrimSpace(q.Get("profileId"))
	if profileID == "" {
		writeError(w, http.StatusBadRequest, "profileId is required")
		return
	}

	items, err := h.Service.Recommend(r.Context(), profileID,
		intParam(q.Get("limit"), defaultPageSize), intParam(q.Get("offset"), 0))
	if err != nil {
		serverError(h.Logger, w, r, "recommendations failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func intParam(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
