package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"streamvault/services/catalog"
)

// Detail serves a single content document with stale media filtered out.
func (h *CatalogHandler) Detail(w http.ResponseWriter, r *http.Request) {
	extID := strings.TrimSpace(mux.Vars(r)["extId"])
	if extID == "" {
		writeError(w, http.StatusBadRequest, "extId is required")
		return
	}

	item, err := h.Service.GetDetail(r.Context(), extID, strings.TrimSpace(r.URL.Query().Get("profileId")))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "content not found")
			return
		}
		serverError(h.Logger, w, r, "content detail failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}
