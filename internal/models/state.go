package models

import (
	"slices"
	"time"
)

// StateVersion tags the persisted AppState schema. Blobs carrying any other
// version are discarded on load.
const StateVersion = "leetee-state-v3"

// AppState is the persisted learner state for one device and episode.
type AppState struct {
	Version  string   `json:"version"`
	Language string   `json:"language"`
	Settings Settings `json:"settings"`
	Progress Progress `json:"progress"`
}

// Settings are the accessibility toggles.
type Settings struct {
	ReadAloud    bool `json:"readAloud"`
	DyslexiaFont bool `json:"dyslexiaFont"`
	HighContrast bool `json:"highContrast"`
	ShowHints    bool `json:"showHints"`
}

// Progress records completion, points and badges.
type Progress struct {
	// CompletedSections maps episode ID to the set of completed activity IDs.
	CompletedSections map[string]map[string]bool `json:"completedSections"`
	Badges            []string                   `json:"badges"`
	Points            int                        `json:"points"`
	Paused            bool                       `json:"paused"`
}

// DefaultSettings returns the settings a new learner starts with.
func DefaultSettings() Settings {
	return Settings{ShowHints: true}
}

// DefaultProgress returns empty progress.
func DefaultProgress() Progress {
	return Progress{
		CompletedSections: map[string]map[string]bool{},
		Badges:            []string{},
	}
}

// DefaultState returns a fresh AppState in the given language.
func DefaultState(language string) AppState {
	return AppState{
		Version:  StateVersion,
		Language: language,
		Settings: DefaultSettings(),
		Progress: DefaultProgress(),
	}
}

// Clone returns a deep copy.
func (s AppState) Clone() AppState {
	out := s
	out.Progress = s.Progress.Clone()
	return out
}

// Clone returns a deep copy.
func (p Progress) Clone() Progress {
	out := p
	out.Badges = append([]string{}, p.Badges...)
	out.CompletedSections = make(map[string]map[string]bool, len(p.CompletedSections))
	for ep, items := range p.CompletedSections {
		inner := make(map[string]bool, len(items))
		for id, done := range items {
			inner[id] = done
		}
		out.CompletedSections[ep] = inner
	}
	return out
}

// IsCompleted reports whether an activity of an episode is complete.
func (p Progress) IsCompleted(episodeID, activityID string) bool {
	return p.CompletedSections[episodeID][activityID]
}

// CompletedCount counts how many of ids are complete for the episode.
func (p Progress) CompletedCount(episodeID string, ids []string) int {
	n := 0
	for _, id := range ids {
		if p.IsCompleted(episodeID, id) {
			n++
		}
	}
	return n
}

// HasBadge reports whether the badge has been earned.
func (p Progress) HasBadge(id string) bool {
	return slices.Contains(p.Badges, id)
}

// NavState is the persisted navigation pointer for one device and episode.
type NavState struct {
	CurrentSection int `json:"currentSection"`
}

// Aggregate is the cross-episode summary for one device.
type Aggregate struct {
	Points      int                       `json:"points"`
	Badges      []string                  `json:"badges"`
	Episodes    map[string]EpisodeSummary `json:"episodes"`
	LastEpisode string                    `json:"lastEpisode"`

	// Language and Settings seed episodes the device has not opened yet.
	Language  string    `json:"language,omitempty"`
	Settings  *Settings `json:"settings,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EpisodeSummary is one episode's entry in the Aggregate.
type EpisodeSummary struct {
	Completed int      `json:"completed"`
	Points    int      `json:"points"`
	Badges    []string `json:"badges"`
}
