package handlers

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"leetee/internal/content"
	"leetee/internal/logger"
	"leetee/internal/models"
	"leetee/internal/progress"
	"leetee/internal/sections"
	"leetee/internal/service"
	"leetee/internal/state"
)

// PlayerHandler serves the dashboard and episode pages and applies learner
// actions.
type PlayerHandler struct {
	player    *service.PlayerService
	mw        *Middleware
	templates *template.Template
	log       *logger.Logger
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(player *service.PlayerService, mw *Middleware, templates *template.Template, log *logger.Logger) *PlayerHandler {
	return &PlayerHandler{
		player:    player,
		mw:        mw,
		templates: templates,
		log:       logger.OrNop(log).With("component", "player_handler"),
	}
}

func (h *PlayerHandler) visit(r *http.Request) service.Visit {
	return service.Visit{
		Device:    GetDeviceFromContext(r.Context()),
		Episode:   r.PathValue("id"),
		CSRFToken: h.mw.CSRFToken(r),
	}
}

func (h *PlayerHandler) episodeURL(id string) string {
	return "/episodes/" + id
}

// Dashboard shows every episode with the device's progress.
func (h *PlayerHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d := h.player.Dashboard(r.Context(), GetDeviceFromContext(r.Context()), r.Header.Get("Accept-Language"))
	data := DashboardViewData{
		PageData: PageData{
			Title:     d.Resolver.Resolve("nav.dashboard"),
			Lang:      d.Language,
			BodyClass: bodyClass(d.Settings),
			CSRFToken: h.mw.CSRFToken(r),
			Languages: h.player.Languages(),
			T:         d.Resolver,
		},
		Dashboard: d,
	}
	renderPage(h.log, w, h.templates, http.StatusOK, "dashboard.tmpl", d.Resolver, data)
}

// Continue sends the learner back to their most recent episode.
func (h *PlayerHandler) Continue(w http.ResponseWriter, r *http.Request) {
	id, err := h.player.Continue(r.Context(), GetDeviceFromContext(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	http.Redirect(w, r, h.episodeURL(id), http.StatusSeeOther)
}

// ShowEpisode renders the current section of an episode.
func (h *PlayerHandler) ShowEpisode(w http.ResponseWriter, r *http.Request) {
	v := h.visit(r)
	view, err := h.player.Open(r.Context(), v)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.renderEpisode(w, http.StatusOK, v, view, nil)
}

func (h *PlayerHandler) renderEpisode(w http.ResponseWriter, status int, v service.Visit, view *service.EpisodeView, outcome *sections.Outcome) {
	data := EpisodeViewData{
		PageData: PageData{
			Title:     view.Episode.Title,
			Lang:      view.Resolver.Language(),
			BodyClass: bodyClass(view.State.Settings),
			CSRFToken: v.CSRFToken,
			Languages: h.player.Languages(),
			T:         view.Resolver,
		},
		View:      view,
		Outcome:   outcome,
		Notices:   view.Notices,
		Narration: view.Narration,
		Words:     narrationWords(view.Narration),
	}
	renderPage(h.log, w, h.templates, status, "episode.tmpl", view.Resolver, data)
}

type navResponse struct {
	Current   int    `json:"current"`
	Moved     bool   `json:"moved"`
	SectionID string `json:"sectionId,omitempty"`
	HasNext   bool   `json:"hasNext"`
	HasPrev   bool   `json:"hasPrev"`
}

func (h *PlayerHandler) navigate(w http.ResponseWriter, r *http.Request, move string, index int) {
	v := h.visit(r)
	view, moved, err := h.player.Navigate(r.Context(), v, move, index)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if wantsJSON(r) {
		resp := navResponse{Current: view.Current, Moved: moved, HasNext: view.HasNext, HasPrev: view.HasPrev}
		if view.Section != nil {
			resp.SectionID = view.Section.ID
		}
		writeJSON(h.log, w, http.StatusOK, resp)
		return
	}
	http.Redirect(w, r, h.episodeURL(v.Episode), http.StatusSeeOther)
}

// GoTo jumps to a section by navigation index.
func (h *PlayerHandler) GoTo(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		respondWithError(h.log, w, http.StatusBadRequest, "Invalid section index", "", nil)
		return
	}
	h.navigate(w, r, service.MoveGoTo, index)
}

// Next moves to the following section.
func (h *PlayerHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, service.MoveNext, 0)
}

// Prev moves to the previous section.
func (h *PlayerHandler) Prev(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, service.MovePrev, 0)
}

type submitResponse struct {
	Outcome      sections.Outcome       `json:"outcome"`
	Celebrations []progress.Celebration `json:"celebrations"`
	Notices      []string               `json:"notices"`
	Points       int                    `json:"points"`
	Percent      int                    `json:"percent"`
}

// Submit grades an activity response.
func (h *PlayerHandler) Submit(w http.ResponseWriter, r *http.Request) {
	resp, err := parseResponse(w, r)
	if err != nil {
		respondWithError(h.log, w, http.StatusBadRequest, ErrInvalidFormData, "parse submission failed", err)
		return
	}

	v := h.visit(r)
	res, err := h.player.Submit(r.Context(), v, r.PathValue("section"), resp)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(h.log, w, http.StatusOK, submitResponse{
			Outcome:      res.Outcome,
			Celebrations: res.View.Celebrations,
			Notices:      res.View.Notices,
			Points:       res.View.State.Progress.Points,
			Percent:      res.View.Percent,
		})
		return
	}
	h.renderEpisode(w, http.StatusOK, v, res.View, &res.Outcome)
}

func parseResponse(w http.ResponseWriter, r *http.Request) (sections.Response, error) {
	var resp sections.Response
	if isJSONBody(r) {
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&resp)
		return resp, err
	}
	if r.PostForm == nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			return resp, err
		}
	}
	return sections.ParseForm(r.PostForm), nil
}

// UpdateSettings saves the accessibility toggles. HTML forms send every
// checkbox, so absent ones are off; JSON patches only touch the fields they
// name.
func (h *PlayerHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch state.SettingsPatch
	if isJSONBody(r) {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&patch); err != nil {
			respondWithError(h.log, w, http.StatusBadRequest, ErrInvalidFormData, "decode settings failed", err)
			return
		}
	} else {
		checked := func(name string) *bool {
			b := r.PostFormValue(name) != ""
			return &b
		}
		patch = state.SettingsPatch{
			ReadAloud:    checked("readAloud"),
			DyslexiaFont: checked("dyslexiaFont"),
			HighContrast: checked("highContrast"),
			ShowHints:    checked("showHints"),
		}
	}

	st, err := h.player.UpdateSettings(r.Context(), h.visit(r), patch)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondState(w, r, st)
}

// SetLanguage switches the UI language.
func (h *PlayerHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	st, err := h.player.SetLanguage(r.Context(), h.visit(r), strings.TrimSpace(r.PostFormValue("language")))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondState(w, r, st)
}

// Pause pauses or resumes the episode.
func (h *PlayerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	paused := true
	if v := r.PostFormValue("paused"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(h.log, w, http.StatusBadRequest, ErrInvalidFormData, "", nil)
			return
		}
		paused = b
	}
	st, err := h.player.SetPaused(r.Context(), h.visit(r), paused)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondState(w, r, st)
}

func (h *PlayerHandler) respondState(w http.ResponseWriter, r *http.Request, st models.AppState) {
	if wantsJSON(r) {
		writeJSON(h.log, w, http.StatusOK, st)
		return
	}
	http.Redirect(w, r, h.episodeURL(r.PathValue("id")), http.StatusSeeOther)
}

// ShowReset asks for confirmation before clearing progress.
func (h *PlayerHandler) ShowReset(w http.ResponseWriter, r *http.Request) {
	h.renderReset(w, r, http.StatusOK, "")
}

func (h *PlayerHandler) renderReset(w http.ResponseWriter, r *http.Request, status int, errorKey string) {
	v := h.visit(r)
	view, err := h.player.Open(r.Context(), v)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	data := ResetViewData{
		PageData: PageData{
			Title:     view.Resolver.Resolve("reset.title"),
			Lang:      view.Resolver.Language(),
			BodyClass: bodyClass(view.State.Settings),
			CSRFToken: v.CSRFToken,
			Languages: h.player.Languages(),
			T:         view.Resolver,
		},
		Episode:    view.Episode,
		RequirePIN: h.player.ResetRequiresPIN(),
		ErrorKey:   errorKey,
	}
	renderPage(h.log, w, h.templates, status, "reset.tmpl", view.Resolver, data)
}

// Reset clears the episode's progress.
func (h *PlayerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	confirmed := r.PostFormValue("confirm") == "yes"
	st, err := h.player.Reset(r.Context(), h.visit(r), confirmed, r.PostFormValue("pin"))
	switch {
	case errors.Is(err, service.ErrInvalidPIN):
		if wantsJSON(r) {
			writeJSON(h.log, w, http.StatusForbidden, errorResponse{Error: err.Error()})
			return
		}
		h.renderReset(w, r, http.StatusForbidden, "reset.pinWrong")
		return
	case errors.Is(err, service.ErrResetNotConfirmed):
		if wantsJSON(r) {
			writeJSON(h.log, w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		http.Redirect(w, r, h.episodeURL(r.PathValue("id"))+"/reset", http.StatusSeeOther)
		return
	case err != nil:
		h.handleError(w, r, err)
		return
	}
	h.respondState(w, r, st)
}

type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// handleError maps service errors to status codes. Content problems get a
// friendly page instead of a bare error.
func (h *PlayerHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	key := "errors.generic"
	var problems []string

	var verr *content.ValidationError
	switch {
	case errors.Is(err, content.ErrEpisodeNotFound), errors.Is(err, service.ErrNoEpisodes):
		status, key = http.StatusNotFound, "errors.episodeNotFound"
	case errors.Is(err, content.ErrEpisodeInvalid):
		status, key = http.StatusUnprocessableEntity, "errors.episodeInvalid"
		if errors.As(err, &verr) {
			problems = verr.Problems
		}
		h.log.Error("invalid episode requested", "episode", r.PathValue("id"), "error", err)
	case errors.Is(err, service.ErrSectionNotFound), errors.Is(err, sections.ErrUnknownItem):
		respondWithError(h.log, w, http.StatusNotFound, ErrNotFound, "", nil)
		return
	case errors.Is(err, service.ErrSectionLocked):
		respondWithError(h.log, w, http.StatusConflict, "Section is locked", "", nil)
		return
	case errors.Is(err, service.ErrUnsupportedLanguage):
		respondWithError(h.log, w, http.StatusBadRequest, "Unsupported language", "", nil)
		return
	default:
		h.log.Error("request failed", "path", r.URL.Path, "error", err)
	}

	if wantsJSON(r) {
		writeJSON(h.log, w, status, errorResponse{Error: http.StatusText(status), Problems: problems})
		return
	}

	res := h.player.Resolver(h.player.InitialLanguage(r.Header.Get("Accept-Language")))
	data := ErrorViewData{
		PageData: PageData{
			Title:     res.Resolve(key),
			Lang:      res.Language(),
			CSRFToken: h.mw.CSRFToken(r),
			Languages: h.player.Languages(),
			T:         res,
		},
		MessageKey: key,
		Message:    res.Resolve(key),
		Problems:   problems,
	}
	renderPage(h.log, w, h.templates, status, "error.tmpl", res, data)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(log *logger.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.OrNop(log).Error("encode json response failed", "error", err)
	}
}
