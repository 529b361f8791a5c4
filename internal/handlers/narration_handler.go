package handlers

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"leetee/internal/logger"
	"leetee/internal/narration"
	"leetee/internal/service"
)

// AudioStore synthesizes narration audio and locates cached clips.
type AudioStore interface {
	narration.Engine
	Path(file string) (string, bool)
}

// NarrationHandler drives read-aloud playback and serves narration audio.
type NarrationHandler struct {
	player *service.PlayerService
	audio  AudioStore
	pages  *PlayerHandler
	log    *logger.Logger
}

// NewNarrationHandler creates a new narration handler
func NewNarrationHandler(player *service.PlayerService, audio AudioStore, pages *PlayerHandler, log *logger.Logger) *NarrationHandler {
	return &NarrationHandler{
		player: player,
		audio:  audio,
		pages:  pages,
		log:    logger.OrNop(log).With("component", "narration_handler"),
	}
}

// Start begins reading a section aloud.
func (h *NarrationHandler) Start(w http.ResponseWriter, r *http.Request) {
	v := h.pages.visit(r)
	section := r.PostFormValue("section")
	if section == "" {
		section = r.URL.Query().Get("section")
	}

	status, err := h.player.StartNarration(r.Context(), v, section)
	if err != nil && !errors.Is(err, narration.ErrEmptyText) {
		h.pages.handleError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(h.log, w, http.StatusOK, status)
		return
	}
	view, err := h.player.Open(r.Context(), v)
	if err != nil {
		h.pages.handleError(w, r, err)
		return
	}
	view.Narration = status
	h.pages.renderEpisode(w, http.StatusOK, v, view, nil)
}

// Advance moves the highlight to the word the audio has reached.
func (h *NarrationHandler) Advance(w http.ResponseWriter, r *http.Request) {
	word, err := strconv.Atoi(r.PostFormValue("word"))
	if err != nil {
		respondWithError(h.log, w, http.StatusBadRequest, "Invalid word index", "", nil)
		return
	}
	h.respond(w, r, h.player.AdvanceNarration(GetDeviceFromContext(r.Context()), word))
}

// Finish is called by the page when the audio ends.
func (h *NarrationHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.player.FinishNarration(GetDeviceFromContext(r.Context())))
}

// Stop cancels playback.
func (h *NarrationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.player.StopNarration(GetDeviceFromContext(r.Context())))
}

func (h *NarrationHandler) respond(w http.ResponseWriter, r *http.Request, status narration.Status) {
	if wantsJSON(r) {
		writeJSON(h.log, w, http.StatusOK, status)
		return
	}
	http.Redirect(w, r, "/episodes/"+r.PathValue("id"), http.StatusSeeOther)
}

// Speak synthesizes arbitrary text and serves the MP3.
func (h *NarrationHandler) Speak(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	lang := r.URL.Query().Get("lang")
	if text == "" {
		respondWithError(h.log, w, http.StatusBadRequest, "Missing text", "", nil)
		return
	}
	if utf8.RuneCountInString(text) > narration.MaxClipChars {
		respondWithError(h.log, w, http.StatusBadRequest, "Text is too long", "", nil)
		return
	}
	if lang != "" && !slices.Contains(h.player.Languages(), lang) {
		respondWithError(h.log, w, http.StatusBadRequest, "Unsupported language", "", nil)
		return
	}

	clip, err := h.audio.Synthesize(r.Context(), text, lang)
	if err != nil {
		respondWithError(h.log, w, http.StatusBadGateway, "Audio is not available right now", "synthesize failed", err)
		return
	}
	h.serveClip(w, r, clip.File)
}

// Audio serves a cached narration clip.
func (h *NarrationHandler) Audio(w http.ResponseWriter, r *http.Request) {
	h.serveClip(w, r, r.PathValue("file"))
}

func (h *NarrationHandler) serveClip(w http.ResponseWriter, r *http.Request, file string) {
	path, ok := h.audio.Path(file)
	if !ok {
		respondWithError(h.log, w, http.StatusNotFound, ErrNotFound, "", nil)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}
