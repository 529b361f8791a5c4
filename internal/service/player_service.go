package service

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"maps"
	"slices"
	"strings"
	"sync"

	"leetee/internal/content"
	"leetee/internal/i18n"
	"leetee/internal/logger"
	"leetee/internal/models"
	"leetee/internal/narration"
	"leetee/internal/navigation"
	"leetee/internal/progress"
	"leetee/internal/sections"
	"leetee/internal/security"
	"leetee/internal/state"
)

var (
	ErrSectionNotFound     = errors.New("section not found")
	ErrSectionLocked       = errors.New("section is locked")
	ErrInvalidPIN          = errors.New("invalid PIN")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrResetNotConfirmed   = errors.New("reset not confirmed")
	ErrNoEpisodes          = errors.New("no episodes available")
)

// Navigation moves.
const (
	MoveGoTo = "goto"
	MoveNext = "next"
	MovePrev = "prev"
)

// PlayerConfig holds the settings the player service needs from config.
type PlayerConfig struct {
	DefaultLanguage  string
	FallbackLanguage string
	Namespaces       []string
	ResetPINHash     string
}

// Visit identifies who is looking at which episode.
type Visit struct {
	Device    string
	Episode   string
	CSRFToken string
}

func (v Visit) scope() state.Scope {
	return state.Scope{Device: v.Device, Episode: v.Episode}
}

// EpisodeView is everything needed to draw an episode page.
type EpisodeView struct {
	Episode      *models.Episode
	State        models.AppState
	Resolver     *i18n.Resolver
	Nav          []navigation.Item
	Current      int
	HasNext      bool
	HasPrev      bool
	Section      *models.Section
	SectionHTML  template.HTML
	Percent      int
	Completed    int
	Total        int
	Celebrations []progress.Celebration
	Notices      []string
	Narration    narration.Status
}

// EpisodeCard is one entry on the dashboard.
type EpisodeCard struct {
	ID        string
	Title     string
	Subtitle  string
	Percent   int
	Completed int
	Total     int
	Points    int
	Current   bool
	Invalid   bool
}

// BadgeView is an earned badge with its display details.
type BadgeView struct {
	ID    string
	Label string
	Icon  string
}

// Dashboard is the device's cross-episode overview.
type Dashboard struct {
	Nickname    string
	Language    string
	Settings    models.Settings
	Resolver    *i18n.Resolver
	Episodes    []EpisodeCard
	Points      int
	Badges      []BadgeView
	LastEpisode string
}

// SubmitResult is the outcome of a submission plus the refreshed page.
type SubmitResult struct {
	Outcome sections.Outcome
	View    *EpisodeView
}

// PlayerService orchestrates the lesson player: it rehydrates device state,
// builds navigation and trackers per request, and applies learner actions.
type PlayerService struct {
	catalog  *content.Catalog
	store    *state.Store
	registry *sections.Registry
	bundle   *i18n.Bundle
	narrator *narration.Manager
	filter   sections.WordFilter
	cfg      PlayerConfig
	log      *logger.Logger

	locks sync.Map // device -> *sync.Mutex
}

// NewPlayerService creates a player service. filter may be nil.
func NewPlayerService(
	catalog *content.Catalog,
	store *state.Store,
	registry *sections.Registry,
	bundle *i18n.Bundle,
	narrator *narration.Manager,
	filter sections.WordFilter,
	cfg PlayerConfig,
	log *logger.Logger,
) *PlayerService {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.FallbackLanguage == "" {
		cfg.FallbackLanguage = cfg.DefaultLanguage
	}
	s := &PlayerService{
		catalog:  catalog,
		store:    store,
		registry: registry,
		bundle:   bundle,
		narrator: narrator,
		filter:   filter,
		cfg:      cfg,
		log:      logger.OrNop(log).With("component", "player"),
	}
	narrator.OnFinish(func(device, sectionID string) {
		s.log.Debug("narration finished", "device", device, "section", sectionID)
	})
	return s
}

// lockDevice serialises the actions of one device so they apply in
// arrival order.
func (s *PlayerService) lockDevice(device string) func() {
	m, _ := s.locks.LoadOrStore(device, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Resolver returns a resolver for lang, falling back to the default language
// when lang is not available.
func (s *PlayerService) Resolver(lang string) *i18n.Resolver {
	if !i18n.Supported(lang, s.bundle.Languages()) {
		lang = s.cfg.DefaultLanguage
	}
	return s.bundle.Resolver(lang, s.cfg.FallbackLanguage, s.cfg.Namespaces)
}

// Languages lists the UI languages with translation files.
func (s *PlayerService) Languages() []string {
	return s.bundle.Languages()
}

// InitialLanguage picks a first-visit language from an Accept-Language header.
func (s *PlayerService) InitialLanguage(acceptLanguage string) string {
	return i18n.Negotiate(acceptLanguage, s.bundle.Languages(), s.cfg.DefaultLanguage)
}

// Dashboard summarises every episode for a device. acceptLanguage picks
// the language until the device has chosen one.
func (s *PlayerService) Dashboard(ctx context.Context, device, acceptLanguage string) *Dashboard {
	agg := s.store.Aggregate(ctx, device)
	lang := agg.Language
	if lang == "" {
		lang = s.InitialLanguage(acceptLanguage)
	}
	settings := models.DefaultSettings()
	if agg.Settings != nil {
		settings = *agg.Settings
	}

	d := &Dashboard{
		Nickname:    security.Nickname(device),
		Language:    lang,
		Settings:    settings,
		Resolver:    s.Resolver(lang),
		Points:      agg.Points,
		LastEpisode: agg.LastEpisode,
	}

	badges := map[string]BadgeView{}
	for _, ep := range s.catalog.Episodes() {
		for _, b := range ep.Badges {
			badges[b.ID] = BadgeView{ID: b.ID, Label: b.Label, Icon: b.Icon}
		}
		items := ep.ProgressItems()
		sum := agg.Episodes[ep.ID]
		d.Episodes = append(d.Episodes, EpisodeCard{
			ID:        ep.ID,
			Title:     ep.Title,
			Subtitle:  ep.Subtitle,
			Percent:   progress.Percentage(sum.Completed, len(items)),
			Completed: sum.Completed,
			Total:     len(items),
			Points:    sum.Points,
			Current:   ep.ID == agg.LastEpisode,
		})
	}
	for _, id := range slices.Sorted(maps.Keys(s.catalog.Invalid())) {
		d.Episodes = append(d.Episodes, EpisodeCard{ID: id, Title: id, Invalid: true})
	}
	for _, id := range agg.Badges {
		b, ok := badges[id]
		if !ok {
			b = BadgeView{ID: id, Label: id}
		}
		d.Badges = append(d.Badges, b)
	}
	return d
}

// Continue returns the episode the device should resume: the last one it
// navigated in, or the first available episode.
func (s *PlayerService) Continue(ctx context.Context, device string) (string, error) {
	if last := s.store.Aggregate(ctx, device).LastEpisode; last != "" {
		if _, err := s.catalog.Episode(last); err == nil {
			return last, nil
		}
	}
	eps := s.catalog.Episodes()
	if len(eps) == 0 {
		return "", ErrNoEpisodes
	}
	return eps[0].ID, nil
}

// Open rehydrates the device's state for an episode and renders the
// current section.
func (s *PlayerService) Open(ctx context.Context, v Visit) (*EpisodeView, error) {
	unlock := s.lockDevice(v.Device)
	defer unlock()

	ep, err := s.catalog.Episode(v.Episode)
	if err != nil {
		return nil, err
	}
	st := s.store.Load(ctx, v.scope())
	nav := s.navigator(ctx, ep, v, st)
	return s.view(ep, v, st, nav), nil
}

// State returns the stored learner state for an episode.
func (s *PlayerService) State(ctx context.Context, v Visit) (models.AppState, error) {
	if _, err := s.catalog.Episode(v.Episode); err != nil {
		return models.AppState{}, err
	}
	return s.store.Load(ctx, v.scope()), nil
}

// navigator builds the navigation model from state and the persisted pointer.
func (s *PlayerService) navigator(ctx context.Context, ep *models.Episode, v Visit, st models.AppState) *navigation.Controller {
	nav := navigation.FromEpisode(ep, st.Progress, s.log)
	nav.Restore(s.store.LoadNav(ctx, v.scope()))
	nav.OnPersist(func(index int) {
		s.store.SaveNav(ctx, v.scope(), index)
	})
	nav.Subscribe(func(from, to int) {
		s.narrator.Player(v.Device).Stop()
		s.log.Debug("section changed", "device", v.Device, "episode", ep.ID, "from", from, "to", to)
	})
	return nav
}

func (s *PlayerService) view(ep *models.Episode, v Visit, st models.AppState, nav *navigation.Controller) *EpisodeView {
	r := s.Resolver(st.Language)
	items := ep.ProgressItems()
	completed := st.Progress.CompletedCount(ep.ID, items)

	view := &EpisodeView{
		Episode:   ep,
		State:     st,
		Resolver:  r,
		Nav:       nav.Items(),
		Current:   nav.Current(),
		HasNext:   nav.HasNext(),
		HasPrev:   nav.HasPrev(),
		Completed: completed,
		Total:     len(items),
		Percent:   progress.Percentage(completed, len(items)),
		Narration: s.narrator.Player(v.Device).Status(),
	}
	if sec, ok := ep.SectionAt(nav.Current()); ok {
		view.Section = sec
		view.SectionHTML = s.registry.Render(sec, s.renderContext(ep, v, st, r, nil))
	}
	return view
}

func (s *PlayerService) renderContext(ep *models.Episode, v Visit, st models.AppState, r *i18n.Resolver, emit func(progress.CompletionEvent) bool) sections.RenderContext {
	return sections.RenderContext{
		Episode:   ep,
		Progress:  st.Progress,
		Settings:  st.Settings,
		Resolver:  r,
		CSRFToken: v.CSRFToken,
		Filter:    s.filter,
		Emit:      emit,
	}
}

// Navigate applies a navigation move. Moves to locked or missing sections
// leave the view unchanged; the bool reports whether the section changed.
func (s *PlayerService) Navigate(ctx context.Context, v Visit, move string, index int) (*EpisodeView, bool, error) {
	unlock := s.lockDevice(v.Device)
	defer unlock()

	ep, err := s.catalog.Episode(v.Episode)
	if err != nil {
		return nil, false, err
	}
	st := s.store.Load(ctx, v.scope())
	nav := s.navigator(ctx, ep, v, st)

	var moved bool
	switch move {
	case MoveNext:
		moved = nav.Next()
	case MovePrev:
		moved = nav.Prev()
	case MoveGoTo:
		moved = nav.GoTo(index)
	default:
		return nil, false, fmt.Errorf("unknown navigation move %q", move)
	}
	return s.view(ep, v, st, nav), moved, nil
}

// Submit grades a response for a section and applies a first correct
// answer to progress.
func (s *PlayerService) Submit(ctx context.Context, v Visit, sectionID string, resp sections.Response) (*SubmitResult, error) {
	unlock := s.lockDevice(v.Device)
	defer unlock()

	ep, err := s.catalog.Episode(v.Episode)
	if err != nil {
		return nil, err
	}
	sec, ok := ep.Section(sectionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}

	st := s.store.Load(ctx, v.scope())
	nav := navigation.FromEpisode(ep, st.Progress, s.log)
	for _, it := range nav.Items() {
		if it.Index == sec.NavIndex && it.Locked {
			return nil, fmt.Errorf("%w: %s", ErrSectionLocked, sectionID)
		}
	}

	tracker := progress.NewTracker(s.store, v.scope(), ep, s.log)
	var celebrations []progress.Celebration
	tracker.OnCelebrate(func(c progress.Celebration) {
		celebrations = append(celebrations, c)
	})
	emit := func(ev progress.CompletionEvent) bool {
		return tracker.Handle(ctx, ev)
	}

	r := s.Resolver(st.Language)
	outcome, err := s.registry.Submit(ctx, sec, resp, s.renderContext(ep, v, st, r, emit))
	if err != nil {
		return nil, err
	}

	// Completion may have unlocked sections; rebuild from the new state.
	st = tracker.State(ctx)
	view := s.view(ep, v, st, s.navigator(ctx, ep, v, st))
	view.Celebrations = celebrations
	view.Notices = append(view.Notices, CelebrationMessages(r, celebrations)...)
	return &SubmitResult{Outcome: outcome, View: view}, nil
}

// CelebrationMessages turns celebrations into translated notices.
func CelebrationMessages(r *i18n.Resolver, cs []progress.Celebration) []string {
	var out []string
	for _, c := range cs {
		switch c.Kind {
		case progress.CelebratePoints:
			out = append(out, r.Format("feedback.pointsEarned", c.Amount))
		case progress.CelebrateBadge:
			label := c.Label
			if label == "" {
				label = c.BadgeID
			}
			out = append(out, r.Format("feedback.badgeEarned", label))
		case progress.CelebrateEpisode:
			out = append(out, r.Resolve("feedback.episodeComplete"), r.Format("feedback.pointsEarned", c.Amount))
		}
	}
	return out
}

// UpdateSettings applies accessibility toggles. Turning read-aloud on clears
// an earlier narration failure; turning it off stops playback.
func (s *PlayerService) UpdateSettings(ctx context.Context, v Visit, patch state.SettingsPatch) (models.AppState, error) {
	unlock := s.lockDevice(v.Device)
	defer unlock()

	if _, err := s.catalog.Episode(v.Episode); err != nil {
		return models.AppState{}, err
	}
	if patch.ReadAloud != nil {
		p := s.narrator.Player(v.Device)
		if *patch.ReadAloud {
			p.Enable()
		} else {
			p.Stop()
		}
	}
	st := s.store.Update(ctx, v.scope(), state.Patch{Settings: &patch})
	s.log.Info("settings updated", "device", v.Device, "episode", v.Episode)
	return st, nil
}

// SetLanguage switches the UI language for the episode.
func (s *PlayerService) SetLanguage(ctx context.Context, v Visit, lang string) (models.AppState, error) {
	unlock := s.lockDevice(v.Device)
	defer unlock()

	if _, err := s.catalog.Episode(v.Episode); err != nil {
		return models.AppState{}, err
	}
	if !i18n.Supported(lang, s.bundle.Languages()) {
		return models.AppState{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	s.narrator.Player(v.Device).Stop()
	return s.store.Update(ctx, v.scope(), state.Patch{Language: &lang}), nil
}

// SetPaused marks the episode paused or resumed. Pausing stops narration.
func (s *PlayerService) SetPaused(ctx context.Context, v Visit, paused bool) (models.AppState, error) {
	unlock := s.lockDevice(v.Device)
	defer unlock()

	if _, err := s.catalog.Episode(v.Episode); err != nil {
		return models.AppState{}, err
	}
	if paused {
		s.narrator.Player(v.Device).Stop()
	}
	return s.store.Update(ctx, v.scope(), state.Patch{Progress: &state.ProgressPatch{Paused: &paused}}), nil
}

// ResetRequiresPIN reports whether a caregiver PIN is configured.
func (s *PlayerService) ResetRequiresPIN() bool {
	return s.cfg.ResetPINHash != ""
}

// Reset clears the episode's progress and navigation pointer after the
// caller confirmed and, when configured, supplied the caregiver PIN.
func (s *PlayerService) Reset(ctx context.Context, v Visit, confirmed bool, pin string) (models.AppState, error) {
	if !confirmed {
		return models.AppState{}, ErrResetNotConfirmed
	}
	if !security.CheckPIN(s.cfg.ResetPINHash, pin) {
		s.log.Warn("reset refused, wrong PIN", "device", v.Device, "episode", v.Episode)
		return models.AppState{}, ErrInvalidPIN
	}

	unlock := s.lockDevice(v.Device)
	defer unlock()

	if _, err := s.catalog.Episode(v.Episode); err != nil {
		return models.AppState{}, err
	}
	s.narrator.Player(v.Device).Stop()
	return s.store.ResetProgress(ctx, v.scope()), nil
}

// StartNarration reads a section aloud. A synthesis failure turns the
// read-aloud setting off and the returned status carries a one-time notice.
// A cancelled or expired ctx is returned as an error and changes nothing.
func (s *PlayerService) StartNarration(ctx context.Context, v Visit, sectionID string) (narration.Status, error) {
	unlock := s.lockDevice(v.Device)
	defer unlock()

	ep, err := s.catalog.Episode(v.Episode)
	if err != nil {
		return narration.Status{}, err
	}
	sec, ok := ep.Section(sectionID)
	if !ok {
		return narration.Status{}, fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}
	st := s.store.Load(ctx, v.scope())
	player := s.narrator.Player(v.Device)
	if !st.Settings.ReadAloud {
		return player.Stop(), nil
	}

	status, err := player.Start(ctx, sec.ID, NarrationText(sec), st.Language)
	switch {
	case err == nil:
		return status, nil
	case errors.Is(err, narration.ErrEmptyText):
		return status, err
	case errors.Is(err, narration.ErrDisabled):
		return status, nil
	case ctx.Err() != nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status, err
	}

	off := false
	s.store.Update(ctx, v.scope(), state.Patch{Settings: &state.SettingsPatch{ReadAloud: &off}})
	return status, nil
}

// AdvanceNarration moves the highlight to a word.
func (s *PlayerService) AdvanceNarration(device string, word int) narration.Status {
	return s.narrator.Player(device).Advance(word)
}

// FinishNarration reports that playback reached the end.
func (s *PlayerService) FinishNarration(device string) narration.Status {
	return s.narrator.Player(device).Finish()
}

// StopNarration cancels playback for a device.
func (s *PlayerService) StopNarration(device string) narration.Status {
	return s.narrator.Player(device).Stop()
}

// NarrationText is the text read aloud for a section.
func NarrationText(sec *models.Section) string {
	var parts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			if !strings.ContainsAny(s[len(s)-1:], ".!?") {
				s += "."
			}
			parts = append(parts, s)
		}
	}
	add(sec.Title)
	add(sec.Text)
	for _, p := range sec.Paragraphs {
		add(p)
	}
	for _, c := range sec.Cards {
		add(c.Term)
		add(c.Definition)
	}
	add(sec.Prompt)
	add(sec.Caption)
	return strings.Join(parts, " ")
}
