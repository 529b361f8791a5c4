package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"leetee/internal/i18n"
	"leetee/internal/logger"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// LoadTemplates parses the embedded page templates.
func LoadTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
	}
	return template.New("pages").Funcs(funcMap).ParseFS(templateFS, "templates/*.tmpl")
}

// renderPage executes a page template into a buffer and runs the
// translation pass over the result before writing it.
func renderPage(log *logger.Logger, w http.ResponseWriter, tmpl *template.Template, status int, name string, r *i18n.Resolver, data any) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		respondWithError(log, w, http.StatusInternalServerError, ErrInternalServerError, "render "+name+" failed", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r == nil {
		_, _ = buf.WriteTo(w)
		return
	}
	if err := r.ApplyToDocument(&buf, w); err != nil {
		logger.OrNop(log).Error("translate page failed", "template", name, "error", err)
	}
}
