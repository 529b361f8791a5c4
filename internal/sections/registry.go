// Package sections renders episode sections and grades learner responses,
// dispatching on the section type.
package sections

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"maps"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"leetee/internal/grading"
	"leetee/internal/i18n"
	"leetee/internal/logger"
	"leetee/internal/models"
	"leetee/internal/progress"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	ErrUnknownType = errors.New("no builder registered for type")
	ErrUnknownItem = errors.New("activity does not belong to section")
)

// Feedback translation keys.
const (
	MsgCorrect        = "feedback.correct"
	MsgIncorrect      = "feedback.incorrect"
	MsgPending        = "feedback.pending"
	MsgAlreadyDone    = "feedback.alreadyDone"
	MsgTooShort       = "feedback.tooShort"
	MsgMissingKeyword = "feedback.missingKeyword"
	MsgKindWords      = "feedback.kindWords"
	MsgChoose         = "activity.choose"
)

// GradeFunc grades a response. in is nil for section-level activities.
type GradeFunc func(s *models.Section, in *models.Interaction, resp Response) grading.Verdict

// Builder renders and grades one section or interaction type.
type Builder struct {
	Template string
	Grade    GradeFunc
	// FreeText responses are checked against the word filter before grading.
	FreeText bool
}

// RenderContext is everything a builder may read. Builders never write
// state; a correct first answer is reported through Emit.
type RenderContext struct {
	Episode   *models.Episode
	Progress  models.Progress
	Settings  models.Settings
	Resolver  *i18n.Resolver
	CSRFToken string
	Filter    WordFilter
	Emit      func(progress.CompletionEvent) bool
}

func (rc RenderContext) done(id string) bool {
	return rc.Progress.IsCompleted(rc.Episode.ID, id)
}

func (rc RenderContext) message(key string, args ...any) string {
	if rc.Resolver == nil {
		return key
	}
	return rc.Resolver.Format(key, args...)
}

// Outcome is the result of one submission.
type Outcome struct {
	SectionID   string          `json:"sectionId"`
	ItemID      string          `json:"itemId"`
	Verdict     grading.Verdict `json:"verdict"`
	Completed   bool            `json:"completed"`
	AlreadyDone bool            `json:"alreadyDone,omitempty"`
	Flagged     bool            `json:"flagged,omitempty"`
	MessageKey  string          `json:"messageKey"`
	Message     string          `json:"message"`
}

// Hint is a glossary helper shown next to a section.
type Hint struct {
	Term string
	Text string
}

type view struct {
	EpisodeID    string
	Section      *models.Section
	Item         *models.Interaction
	Done         bool
	Interactions []template.HTML
	Hints        []Hint
	CSRFToken    string
	Action       string
	MinLength    int
}

// Registry maps section and interaction types to builders.
type Registry struct {
	sections     map[string]Builder
	interactions map[string]Builder
	tmpl         *template.Template
	log          *logger.Logger
}

// NewRegistry parses the embedded templates and registers every built-in type.
func NewRegistry(log *logger.Logger) (*Registry, error) {
	tmpl, err := template.New("sections").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse section templates: %w", err)
	}
	r := &Registry{
		sections:     map[string]Builder{},
		interactions: map[string]Builder{},
		tmpl:         tmpl,
		log:          logger.OrNop(log).With("component", "sections"),
	}
	registerDefaults(r)
	return r, nil
}

// Register adds or replaces the builder for a section type.
func (r *Registry) Register(sectionType string, b Builder) {
	r.sections[sectionType] = b
}

// RegisterInteraction adds or replaces the builder for a story interaction type.
func (r *Registry) RegisterInteraction(interactionType string, b Builder) {
	r.interactions[interactionType] = b
}

// Types returns the registered section types, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.sections))
	for t := range r.sections {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Validate reports every section or interaction whose type has no builder.
func (r *Registry) Validate(episodes ...*models.Episode) error {
	var errs []error
	for _, ep := range episodes {
		for _, s := range ep.Sections {
			if _, ok := r.sections[s.Type]; !ok {
				r.log.Error("section type has no builder", "episode", ep.ID, "section", s.ID, "type", s.Type)
				errs = append(errs, fmt.Errorf("episode %s section %s: %w %q", ep.ID, s.ID, ErrUnknownType, s.Type))
			}
			for _, in := range s.Interactions {
				if _, ok := r.interactions[in.Type]; !ok {
					r.log.Error("interaction type has no builder", "episode", ep.ID, "interaction", in.ID, "type", in.Type)
					errs = append(errs, fmt.Errorf("episode %s interaction %s: %w %q", ep.ID, in.ID, ErrUnknownType, in.Type))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Render returns the translated HTML for a section. A section whose type has
// no builder, or whose template fails, renders a visible notice instead.
func (r *Registry) Render(s *models.Section, rc RenderContext) template.HTML {
	b, ok := r.sections[s.Type]
	if !ok {
		r.log.Error("cannot render section", "episode", rc.Episode.ID, "section", s.ID, "type", s.Type)
		return r.fallback(s, rc)
	}

	v := r.newView(s, nil, rc)
	v.Done = len(s.Interactions) == 0 && rc.done(s.ID)
	for i := range s.Interactions {
		v.Interactions = append(v.Interactions, r.renderInteraction(s, &s.Interactions[i], rc))
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, b.Template, v); err != nil {
		r.log.Error("section template failed", "section", s.ID, "template", b.Template, "error", err)
		return r.fallback(s, rc)
	}
	return r.translate(buf.String(), rc)
}

func (r *Registry) renderInteraction(s *models.Section, in *models.Interaction, rc RenderContext) template.HTML {
	b, ok := r.interactions[in.Type]
	if !ok {
		r.log.Error("cannot render interaction", "section", s.ID, "interaction", in.ID, "type", in.Type)
		return r.fallback(s, rc)
	}
	v := r.newView(s, in, rc)
	v.Done = rc.done(in.ID)
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, b.Template, v); err != nil {
		r.log.Error("interaction template failed", "interaction", in.ID, "error", err)
		return r.fallback(s, rc)
	}
	// Translated once with the enclosing section.
	return template.HTML(buf.String())
}

func (r *Registry) newView(s *models.Section, in *models.Interaction, rc RenderContext) view {
	minLength, _ := criteria(s, in)
	v := view{
		EpisodeID: rc.Episode.ID,
		Section:   s,
		Item:      in,
		CSRFToken: rc.CSRFToken,
		Action:    fmt.Sprintf("/episodes/%s/sections/%s/submit", rc.Episode.ID, s.ID),
		MinLength: minLength,
	}
	if rc.Settings.ShowHints {
		v.Hints = hintsFor(rc.Episode, s)
	}
	return v
}

func (r *Registry) fallback(s *models.Section, rc RenderContext) template.HTML {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "fallback", view{Section: s}); err != nil {
		return template.HTML(`<p role="alert">` + template.HTMLEscapeString(s.ID) + `</p>`)
	}
	return r.translate(buf.String(), rc)
}

func (r *Registry) translate(fragment string, rc RenderContext) template.HTML {
	if rc.Resolver == nil {
		return template.HTML(fragment)
	}
	out, err := rc.Resolver.ApplyToFragment(fragment)
	if err != nil {
		r.log.Warn("translation pass failed", "error", err)
		return template.HTML(fragment)
	}
	return template.HTML(out)
}

// Submit grades resp against the section (or the story interaction named by
// resp.Item). A correct answer to an activity that is not yet complete emits
// exactly one completion event.
func (r *Registry) Submit(ctx context.Context, s *models.Section, resp Response, rc RenderContext) (Outcome, error) {
	b, ok := r.sections[s.Type]
	if !ok {
		return Outcome{}, fmt.Errorf("%w %q", ErrUnknownType, s.Type)
	}

	itemID := resp.Item
	var in *models.Interaction
	if len(s.Interactions) > 0 {
		found, ok := s.Interaction(itemID)
		if !ok {
			return Outcome{}, fmt.Errorf("%w: %q in %s", ErrUnknownItem, itemID, s.ID)
		}
		in = found
		if b, ok = r.interactions[in.Type]; !ok {
			return Outcome{}, fmt.Errorf("%w %q", ErrUnknownType, in.Type)
		}
	} else {
		if itemID != "" && itemID != s.ID {
			return Outcome{}, fmt.Errorf("%w: %q in %s", ErrUnknownItem, itemID, s.ID)
		}
		itemID = s.ID
	}

	out := Outcome{SectionID: s.ID, ItemID: itemID}
	setMessage := func(key string, args ...any) {
		out.MessageKey = key
		out.Message = rc.message(key, args...)
	}

	if rc.done(itemID) {
		out.Verdict = grading.Correct
		out.AlreadyDone = true
		setMessage(MsgAlreadyDone)
		return out, nil
	}

	if b.FreeText && rc.Filter != nil {
		words, err := rc.Filter.FindBadWords(ctx, resp.Text)
		if err != nil {
			r.log.Warn("word filter unavailable, grading unfiltered", "error", err)
		} else if len(words) > 0 {
			r.log.Info("response flagged by word filter", "episode", rc.Episode.ID, "activity", itemID, "count", len(words))
			out.Verdict = grading.Incorrect
			out.Flagged = true
			setMessage(MsgKindWords)
			return out, nil
		}
	}

	out.Verdict = b.Grade(s, in, resp)
	switch out.Verdict {
	case grading.Correct:
		setMessage(MsgCorrect)
		if rc.Emit != nil {
			out.Completed = rc.Emit(progress.CompletionEvent{EpisodeID: rc.Episode.ID, ActivityID: itemID})
		}
	case grading.Pending:
		setMessage(MsgPending)
	default:
		switch {
		case b.FreeText:
			minLength, keywords := criteria(s, in)
			missing := grading.MissingKeywords(resp.Text, keywords)
			if utf8.RuneCountInString(strings.TrimSpace(resp.Text)) < minLength {
				setMessage(MsgTooShort, minLength)
			} else if len(missing) > 0 {
				setMessage(MsgMissingKeyword, missing[0])
			} else {
				setMessage(MsgIncorrect)
			}
		case b.Template == "choice" && resp.Choice == "":
			setMessage(MsgChoose)
		default:
			setMessage(MsgIncorrect)
		}
	}
	return out, nil
}

// criteria returns the free-text length floor and keywords for an activity.
func criteria(s *models.Section, in *models.Interaction) (int, []string) {
	minLength, keywords := s.MinLength, s.Keywords
	if in != nil {
		minLength, keywords = in.MinLength, in.Keywords
	}
	if minLength <= 0 {
		minLength = grading.DefaultMinLength
	}
	return minLength, keywords
}

// hintsFor returns the episode helpers whose term appears in the section's text.
func hintsFor(ep *models.Episode, s *models.Section) []Hint {
	if len(ep.Helpers) == 0 {
		return nil
	}
	parts := []string{s.Title, s.Text, s.Prompt, s.Caption}
	parts = append(parts, s.Paragraphs...)
	for _, c := range s.Cards {
		parts = append(parts, c.Term, c.Definition, c.Example)
	}
	for _, in := range s.Interactions {
		parts = append(parts, in.Prompt, in.Sentence)
	}
	haystack := strings.ToLower(strings.Join(parts, " "))

	var hints []Hint
	for _, term := range slices.Sorted(maps.Keys(ep.Helpers)) {
		if !strings.Contains(haystack, strings.ToLower(term)) {
			continue
		}
		if text, ok := ep.Hint(term); ok {
			hints = append(hints, Hint{Term: term, Text: text})
		}
	}
	return hints
}
