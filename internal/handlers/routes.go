package handlers

import (
	"net/http"

	"leetee/internal/logger"
)

// Handlers groups everything the router needs.
type Handlers struct {
	Middleware *Middleware
	Player     *PlayerHandler
	Narration  *NarrationHandler
	API        *APIHandler
	StaticDir  string
	Log        *logger.Logger
}

// Routes builds the application's HTTP handler.
func Routes(h Handlers) http.Handler {
	mw := h.Middleware
	mux := http.NewServeMux()

	// Static files
	mux.HandleFunc("GET /static/audio/{file}", h.Narration.Audio)
	if h.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(h.StaticDir))))
	}

	mux.HandleFunc("GET /healthz", h.API.Health)

	// Pages
	mux.HandleFunc("GET /{$}", h.Player.Dashboard)
	mux.HandleFunc("GET /continue", h.Player.Continue)
	mux.HandleFunc("GET /episodes/{id}", h.Player.ShowEpisode)
	mux.HandleFunc("GET /episodes/{id}/reset", h.Player.ShowReset)

	// Learner actions
	mux.HandleFunc("POST /episodes/{id}/goto/{index}", mw.CSRFProtect(h.Player.GoTo))
	mux.HandleFunc("POST /episodes/{id}/next", mw.CSRFProtect(h.Player.Next))
	mux.HandleFunc("POST /episodes/{id}/prev", mw.CSRFProtect(h.Player.Prev))
	mux.HandleFunc("POST /episodes/{id}/sections/{section}/submit", mw.RateLimit(mw.CSRFProtect(h.Player.Submit)))
	mux.HandleFunc("POST /episodes/{id}/settings", mw.CSRFProtect(h.Player.UpdateSettings))
	mux.HandleFunc("POST /episodes/{id}/language", mw.CSRFProtect(h.Player.SetLanguage))
	mux.HandleFunc("POST /episodes/{id}/pause", mw.CSRFProtect(h.Player.Pause))
	mux.HandleFunc("POST /episodes/{id}/reset", mw.RateLimit(mw.CSRFProtect(h.Player.Reset)))

	// Narration
	mux.HandleFunc("POST /episodes/{id}/narration/start", mw.RateLimit(mw.CSRFProtect(h.Narration.Start)))
	mux.HandleFunc("POST /episodes/{id}/narration/advance", mw.CSRFProtect(h.Narration.Advance))
	mux.HandleFunc("POST /episodes/{id}/narration/finish", mw.CSRFProtect(h.Narration.Finish))
	mux.HandleFunc("POST /episodes/{id}/narration/stop", mw.CSRFProtect(h.Narration.Stop))
	mux.HandleFunc("GET /api/tts", mw.RateLimit(h.Narration.Speak))

	// API
	mux.HandleFunc("GET /api/i18n/missing", h.API.Missing)
	mux.HandleFunc("GET /api/i18n/{lang}", h.API.Dictionary)
	mux.HandleFunc("GET /api/episodes/{id}/state", h.API.State)

	return Logging(h.Log, mw.Device(mux))
}
