// Package state persists learner AppState, navigation pointers and the
// per-device aggregate in a key-value store.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"leetee/internal/logger"
	"leetee/internal/models"
	"leetee/internal/storage"
)

// KeyPrefix starts every key the store writes.
const KeyPrefix = "leetee"

// Scope identifies one device's state for one episode.
type Scope struct {
	Device  string
	Episode string
}

func (s Scope) stateKey() string {
	return fmt.Sprintf("%s:%s:episode:%s:state", KeyPrefix, s.Device, s.Episode)
}

func (s Scope) navKey() string {
	return fmt.Sprintf("%s:%s:episode:%s:nav", KeyPrefix, s.Device, s.Episode)
}

func episodePrefix(device string) string {
	return fmt.Sprintf("%s:%s:episode:", KeyPrefix, device)
}

func globalKey(device string) string {
	return fmt.Sprintf("%s:%s:global", KeyPrefix, device)
}

// Patch is a partial update. Nil fields are left untouched; Settings and
// Progress merge one level deep.
type Patch struct {
	Language *string
	Settings *SettingsPatch
	Progress *ProgressPatch
}

// SettingsPatch lists the accessibility toggles to change.
type SettingsPatch struct {
	ReadAloud    *bool `json:"readAloud,omitempty"`
	DyslexiaFont *bool `json:"dyslexiaFont,omitempty"`
	HighContrast *bool `json:"highContrast,omitempty"`
	ShowHints    *bool `json:"showHints,omitempty"`
}

// ProgressPatch lists the progress fields to change.
type ProgressPatch struct {
	// CompletedSections replaces the whole completion map when non-nil.
	CompletedSections map[string]map[string]bool
	// Badges replaces the badge list when non-nil.
	Badges []string
	Points *int
	Paused *bool
}

// Store reads and writes learner state. Load and Update never fail: storage
// problems are logged and defaults or the in-memory result are returned.
type Store struct {
	kv              storage.KV
	log             *logger.Logger
	defaultLanguage string
	now             func() time.Time

	locks sync.Map // device -> *sync.Mutex
}

func New(kv storage.KV, log *logger.Logger, defaultLanguage string) *Store {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &Store{
		kv:              kv,
		log:             logger.OrNop(log).With("component", "state"),
		defaultLanguage: defaultLanguage,
		now:             time.Now,
	}
}

func (s *Store) lock(device string) func() {
	m, _ := s.locks.LoadOrStore(device, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Load returns the stored state for scope. A missing blob yields defaults
// that inherit the device's most recent language and settings; an
// unreadable blob or one written by a different schema version yields
// exactly models.DefaultState.
func (s *Store) Load(ctx context.Context, scope Scope) models.AppState {
	unlock := s.lock(scope.Device)
	defer unlock()
	return s.load(ctx, scope).Clone()
}

func (s *Store) load(ctx context.Context, scope Scope) models.AppState {
	raw, err := s.kv.Get(ctx, scope.stateKey())
	if errors.Is(err, storage.ErrNotFound) {
		return s.defaults(ctx, scope.Device)
	}
	if err != nil {
		s.log.Error("load state failed, using defaults", "key", scope.stateKey(), "error", err)
		return models.DefaultState(s.defaultLanguage)
	}

	// A blob that cannot be trusted is replaced whole, never merged.
	var st models.AppState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		s.log.Warn("corrupt state discarded", "key", scope.stateKey(), "error", err)
		return models.DefaultState(s.defaultLanguage)
	}
	if st.Version != models.StateVersion {
		s.log.Info("state version mismatch, resetting", "key", scope.stateKey(), "found", st.Version, "want", models.StateVersion)
		return models.DefaultState(s.defaultLanguage)
	}
	normalize(&st, s.defaultLanguage)
	return st
}

// defaults seeds a first visit to an episode with the device's most recent
// language and settings.
func (s *Store) defaults(ctx context.Context, device string) models.AppState {
	st := models.DefaultState(s.defaultLanguage)
	agg, ok := s.readAggregate(ctx, device)
	if !ok {
		return st
	}
	if agg.Language != "" {
		st.Language = agg.Language
	}
	if agg.Settings != nil {
		st.Settings = *agg.Settings
	}
	return st
}

func normalize(st *models.AppState, defaultLanguage string) {
	if st.Language == "" {
		st.Language = defaultLanguage
	}
	if st.Progress.CompletedSections == nil {
		st.Progress.CompletedSections = map[string]map[string]bool{}
	}
	if st.Progress.Badges == nil {
		st.Progress.Badges = []string{}
	}
}

// Update merges patch into the stored state, persists it, recomputes the
// device aggregate and returns a copy of the new state.
func (s *Store) Update(ctx context.Context, scope Scope, patch Patch) models.AppState {
	unlock := s.lock(scope.Device)
	defer unlock()

	st := s.load(ctx, scope)
	apply(&st, patch)
	s.save(ctx, scope, st)
	return st.Clone()
}

// Mutate runs fn against the current state under the device lock and
// persists the result when fn reports a change.
func (s *Store) Mutate(ctx context.Context, scope Scope, fn func(st *models.AppState) bool) (models.AppState, bool) {
	unlock := s.lock(scope.Device)
	defer unlock()

	st := s.load(ctx, scope)
	if !fn(&st) {
		return st.Clone(), false
	}
	s.save(ctx, scope, st)
	return st.Clone(), true
}

func apply(st *models.AppState, p Patch) {
	if p.Language != nil {
		st.Language = *p.Language
	}
	if sp := p.Settings; sp != nil {
		setIf(&st.Settings.ReadAloud, sp.ReadAloud)
		setIf(&st.Settings.DyslexiaFont, sp.DyslexiaFont)
		setIf(&st.Settings.HighContrast, sp.HighContrast)
		setIf(&st.Settings.ShowHints, sp.ShowHints)
	}
	if pp := p.Progress; pp != nil {
		if pp.CompletedSections != nil {
			st.Progress.CompletedSections = models.Progress{CompletedSections: pp.CompletedSections}.Clone().CompletedSections
		}
		if pp.Badges != nil {
			st.Progress.Badges = append([]string{}, pp.Badges...)
		}
		if pp.Points != nil {
			st.Progress.Points = *pp.Points
		}
		setIf(&st.Progress.Paused, pp.Paused)
	}
}

func setIf(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func (s *Store) save(ctx context.Context, scope Scope, st models.AppState) {
	st.Version = models.StateVersion
	raw, err := json.Marshal(st)
	if err != nil {
		s.log.Error("encode state failed", "key", scope.stateKey(), "error", err)
		return
	}
	if err := s.kv.Set(ctx, scope.stateKey(), string(raw)); err != nil {
		s.log.Error("save state failed", "key", scope.stateKey(), "error", err)
	}
	s.recomputeAggregate(ctx, scope.Device, scope.Episode, st)
}

// ResetProgress restores default progress for the episode and clears its
// navigation pointer. Language and settings are preserved.
func (s *Store) ResetProgress(ctx context.Context, scope Scope) models.AppState {
	unlock := s.lock(scope.Device)
	defer unlock()

	st := s.load(ctx, scope)
	st.Progress = models.DefaultProgress()
	if err := s.kv.Delete(ctx, scope.navKey()); err != nil {
		s.log.Error("clear navigation failed", "key", scope.navKey(), "error", err)
	}
	s.save(ctx, scope, st)
	s.log.Info("progress reset", "device", scope.Device, "episode", scope.Episode)
	return st.Clone()
}

// LoadNav returns the persisted current section, or false when none is stored.
func (s *Store) LoadNav(ctx context.Context, scope Scope) (int, bool) {
	raw, err := s.kv.Get(ctx, scope.navKey())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("load navigation failed", "key", scope.navKey(), "error", err)
		}
		return 0, false
	}
	var nav models.NavState
	if err := json.Unmarshal([]byte(raw), &nav); err != nil || nav.CurrentSection < 1 {
		s.log.Warn("corrupt navigation discarded", "key", scope.navKey())
		return 0, false
	}
	return nav.CurrentSection, true
}

// SaveNav persists the current section and marks the episode as the
// device's most recent one.
func (s *Store) SaveNav(ctx context.Context, scope Scope, index int) {
	unlock := s.lock(scope.Device)
	defer unlock()

	raw, _ := json.Marshal(models.NavState{CurrentSection: index})
	if err := s.kv.Set(ctx, scope.navKey(), string(raw)); err != nil {
		s.log.Error("save navigation failed", "key", scope.navKey(), "error", err)
	}

	agg, _ := s.readAggregate(ctx, scope.Device)
	if agg.LastEpisode != scope.Episode {
		agg.LastEpisode = scope.Episode
		s.writeAggregate(ctx, scope.Device, agg)
	}
}

// Aggregate returns the device's cross-episode summary.
func (s *Store) Aggregate(ctx context.Context, device string) models.Aggregate {
	agg, _ := s.readAggregate(ctx, device)
	return agg
}

func (s *Store) readAggregate(ctx context.Context, device string) (models.Aggregate, bool) {
	empty := models.Aggregate{Badges: []string{}, Episodes: map[string]models.EpisodeSummary{}}
	raw, err := s.kv.Get(ctx, globalKey(device))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Error("load aggregate failed", "device", device, "error", err)
		}
		return empty, false
	}
	var agg models.Aggregate
	if err := json.Unmarshal([]byte(raw), &agg); err != nil {
		s.log.Warn("corrupt aggregate discarded", "device", device, "error", err)
		return empty, false
	}
	if agg.Episodes == nil {
		agg.Episodes = map[string]models.EpisodeSummary{}
	}
	if agg.Badges == nil {
		agg.Badges = []string{}
	}
	return agg, true
}

func (s *Store) writeAggregate(ctx context.Context, device string, agg models.Aggregate) {
	agg.UpdatedAt = s.now().UTC()
	raw, err := json.Marshal(agg)
	if err != nil {
		s.log.Error("encode aggregate failed", "device", device, "error", err)
		return
	}
	if err := s.kv.Set(ctx, globalKey(device), string(raw)); err != nil {
		s.log.Error("save aggregate failed", "device", device, "error", err)
	}
}

// recomputeAggregate rebuilds the device summary from every episode blob.
// The just-saved state is passed in so a failed write still counts.
func (s *Store) recomputeAggregate(ctx context.Context, device, episode string, current models.AppState) {
	agg := models.Aggregate{
		Badges:      []string{},
		Episodes:    map[string]models.EpisodeSummary{},
		LastEpisode: episode,
		Language:    current.Language,
	}
	settings := current.Settings
	agg.Settings = &settings

	states := map[string]models.AppState{episode: current}
	keys, err := s.kv.Keys(ctx, episodePrefix(device))
	if err != nil {
		s.log.Error("list episodes failed", "device", device, "error", err)
	}
	for _, k := range keys {
		if !strings.HasSuffix(k, ":state") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, episodePrefix(device)), ":state")
		if _, ok := states[id]; ok {
			continue
		}
		st := s.load(ctx, Scope{Device: device, Episode: id})
		states[id] = st
	}

	ids := make([]string, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		st := states[id]
		completed := 0
		for _, done := range st.Progress.CompletedSections[id] {
			if done {
				completed++
			}
		}
		agg.Points += st.Progress.Points
		for _, b := range st.Progress.Badges {
			if !slices.Contains(agg.Badges, b) {
				agg.Badges = append(agg.Badges, b)
			}
		}
		agg.Episodes[id] = models.EpisodeSummary{
			Completed: completed,
			Points:    st.Progress.Points,
			Badges:    append([]string{}, st.Progress.Badges...),
		}
	}
	s.writeAggregate(ctx, device, agg)
}
