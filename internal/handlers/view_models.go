package handlers

import (
	"strings"

	"leetee/internal/i18n"
	"leetee/internal/models"
	"leetee/internal/narration"
	"leetee/internal/sections"
	"leetee/internal/service"
)

// PageData is shared by every page.
type PageData struct {
	Title     string
	Lang      string
	BodyClass string
	CSRFToken string
	Languages []string
	T         *i18n.Resolver
}

type DashboardViewData struct {
	PageData
	Dashboard *service.Dashboard
}

type EpisodeViewData struct {
	PageData
	View      *service.EpisodeView
	Outcome   *sections.Outcome
	Notices   []string
	Narration narration.Status
	Words     []WordView
}

// WordView is one narration word with its highlight state.
type WordView struct {
	Text        string
	Highlighted bool
	InSentence  bool
}

type ResetViewData struct {
	PageData
	Episode    *models.Episode
	RequirePIN bool
	ErrorKey   string
}

type ErrorViewData struct {
	PageData
	MessageKey string
	Message    string
	Problems   []string
}

// bodyClass maps accessibility settings to CSS classes on <body>.
func bodyClass(s models.Settings) string {
	var classes []string
	if s.DyslexiaFont {
		classes = append(classes, "dyslexia-font")
	}
	if s.HighContrast {
		classes = append(classes, "high-contrast")
	}
	if !s.ShowHints {
		classes = append(classes, "hide-hints")
	}
	return strings.Join(classes, " ")
}

// narrationWords marks the highlighted word and its sentence.
func narrationWords(st narration.Status) []WordView {
	if !st.Playing {
		return nil
	}
	words := make([]WordView, len(st.Script.Words))
	for i, w := range st.Script.Words {
		words[i] = WordView{
			Text:        w.Text,
			Highlighted: i == st.Highlight.Word,
			InSentence:  w.Sentence == st.Highlight.Sentence,
		}
	}
	return words
}
