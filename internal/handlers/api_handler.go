package handlers

import (
	"net/http"
	"slices"

	"leetee/internal/content"
	"leetee/internal/i18n"
	"leetee/internal/logger"
	"leetee/internal/service"
)

// APIHandler serves JSON endpoints for translations, state and health.
type APIHandler struct {
	player   *service.PlayerService
	bundle   *i18n.Bundle
	catalog  *content.Catalog
	pages    *PlayerHandler
	degraded func() bool
	log      *logger.Logger
}

// NewAPIHandler creates a new API handler. degraded reports whether storage
// has fallen back to memory; it may be nil.
func NewAPIHandler(player *service.PlayerService, bundle *i18n.Bundle, catalog *content.Catalog, pages *PlayerHandler, degraded func() bool, log *logger.Logger) *APIHandler {
	if degraded == nil {
		degraded = func() bool { return false }
	}
	return &APIHandler{
		player:   player,
		bundle:   bundle,
		catalog:  catalog,
		pages:    pages,
		degraded: degraded,
		log:      logger.OrNop(log).With("component", "api"),
	}
}

// Dictionary returns the merged translations for a language.
func (h *APIHandler) Dictionary(w http.ResponseWriter, r *http.Request) {
	lang := r.PathValue("lang")
	if !slices.Contains(h.player.Languages(), lang) {
		writeJSON(h.log, w, http.StatusNotFound, errorResponse{Error: "unknown language"})
		return
	}
	writeJSON(h.log, w, http.StatusOK, h.player.Resolver(lang).Dictionary())
}

// Missing lists translation keys that fell back, for content authors.
func (h *APIHandler) Missing(w http.ResponseWriter, r *http.Request) {
	missing := h.bundle.Missing()
	if missing == nil {
		missing = []string{}
	}
	writeJSON(h.log, w, http.StatusOK, map[string]any{"missing": missing})
}

// State returns the device's stored state for an episode.
func (h *APIHandler) State(w http.ResponseWriter, r *http.Request) {
	st, err := h.player.State(r.Context(), h.pages.visit(r))
	if err != nil {
		h.pages.handleError(w, r, err)
		return
	}
	writeJSON(h.log, w, http.StatusOK, st)
}

type healthResponse struct {
	Status   string   `json:"status"`
	Storage  string   `json:"storage"`
	Episodes int      `json:"episodes"`
	Invalid  []string `json:"invalid,omitempty"`
}

// Health reports liveness plus storage and content status.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Storage: "ok", Episodes: len(h.catalog.Episodes())}
	if h.degraded() {
		resp.Status = "degraded"
		resp.Storage = "memory"
	}
	for id := range h.catalog.Invalid() {
		resp.Invalid = append(resp.Invalid, id)
	}
	slices.Sort(resp.Invalid)
	writeJSON(h.log, w, http.StatusOK, resp)
}
