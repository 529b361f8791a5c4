// Package progress applies activity completions to learner state: points,
// badges and completion percentages.
package progress

import (
	"context"
	"math"
	"slices"

	"leetee/internal/logger"
	"leetee/internal/models"
	"leetee/internal/state"
)

// CompletionEvent is emitted by an activity when the learner first gets it right.
type CompletionEvent struct {
	EpisodeID  string
	ActivityID string
}

// Celebration kinds.
const (
	CelebratePoints  = "points"
	CelebrateBadge   = "badge"
	CelebrateEpisode = "episode"
)

// Celebration is a cosmetic notice for the UI. It carries no state.
type Celebration struct {
	Kind    string `json:"kind"`
	Amount  int    `json:"amount,omitempty"`
	Reason  string `json:"reason,omitempty"`
	BadgeID string `json:"badgeId,omitempty"`
	Label   string `json:"label,omitempty"`
	Icon    string `json:"icon,omitempty"`
}

// Tracker applies progress changes for one device and episode.
type Tracker struct {
	store   *state.Store
	scope   state.Scope
	episode *models.Episode
	log     *logger.Logger

	celebrate func(Celebration)
}

func NewTracker(store *state.Store, scope state.Scope, episode *models.Episode, log *logger.Logger) *Tracker {
	return &Tracker{
		store:   store,
		scope:   scope,
		episode: episode,
		log:     logger.OrNop(log).With("component", "progress", "episode", scope.Episode),
	}
}

// OnCelebrate registers the receiver for celebration notices.
func (t *Tracker) OnCelebrate(fn func(Celebration)) {
	t.celebrate = fn
}

func (t *Tracker) emit(cs []Celebration) {
	if t.celebrate == nil {
		return
	}
	for _, c := range cs {
		t.celebrate(c)
	}
}

// State returns the current learner state.
func (t *Tracker) State(ctx context.Context) models.AppState {
	return t.store.Load(ctx, t.scope)
}

// IsCompleted reports whether an activity is already complete.
func (t *Tracker) IsCompleted(ctx context.Context, activityID string) bool {
	return t.State(ctx).Progress.IsCompleted(t.scope.Episode, activityID)
}

// Handle consumes a completion event from an activity.
func (t *Tracker) Handle(ctx context.Context, ev CompletionEvent) bool {
	if ev.EpisodeID != "" && ev.EpisodeID != t.scope.Episode {
		t.log.Warn("completion event for another episode ignored", "event_episode", ev.EpisodeID, "activity", ev.ActivityID)
		return false
	}
	return t.CompleteActivity(ctx, ev.ActivityID)
}

// CompleteActivity marks an activity complete. It returns false, and changes
// nothing, when the activity was already complete. On first completion the
// activity's points are added and any badge it triggers is awarded.
func (t *Tracker) CompleteActivity(ctx context.Context, activityID string) bool {
	var cs []Celebration
	_, changed := t.store.Mutate(ctx, t.scope, func(st *models.AppState) bool {
		cs = nil
		if st.Progress.IsCompleted(t.scope.Episode, activityID) {
			return false
		}
		items := st.Progress.CompletedSections[t.scope.Episode]
		if items == nil {
			items = map[string]bool{}
			st.Progress.CompletedSections[t.scope.Episode] = items
		}
		items[activityID] = true

		if pts := t.episode.PointsFor(activityID); pts > 0 {
			cs = append(cs, addPoints(st, pts, activityID))
		}
		cs = append(cs, t.evaluateBadges(st, activityID)...)

		all := t.episode.ProgressItems()
		if len(all) > 0 && st.Progress.CompletedCount(t.scope.Episode, all) == len(all) {
			bonus := addPoints(st, t.episode.CompletionBonus(), "episode-complete")
			bonus.Kind = CelebrateEpisode
			cs = append(cs, bonus)
		}
		return true
	})
	if !changed {
		t.log.Debug("activity already complete", "activity", activityID)
		return false
	}
	t.log.Info("activity completed", "device", t.scope.Device, "activity", activityID)
	t.emit(cs)
	return true
}

func addPoints(st *models.AppState, amount int, reason string) Celebration {
	st.Progress.Points += amount
	return Celebration{Kind: CelebratePoints, Amount: amount, Reason: reason}
}

func (t *Tracker) evaluateBadges(st *models.AppState, activityID string) []Celebration {
	var cs []Celebration
	for _, b := range t.episode.Badges {
		if st.Progress.HasBadge(b.ID) || !t.triggered(st, b, activityID) {
			continue
		}
		st.Progress.Badges = append(st.Progress.Badges, b.ID)
		cs = append(cs, Celebration{Kind: CelebrateBadge, BadgeID: b.ID, Label: b.Label, Icon: b.Icon})
	}
	return cs
}

func (t *Tracker) triggered(st *models.AppState, b models.BadgeDef, activityID string) bool {
	switch {
	case b.Activity != "":
		return b.Activity == activityID
	case b.SectionType != "":
		ids := t.episode.ItemsOfType(b.SectionType)
		return len(ids) > 0 && st.Progress.CompletedCount(t.scope.Episode, ids) == len(ids)
	case b.Percent > 0:
		ids := t.episode.ProgressItems()
		return Percentage(st.Progress.CompletedCount(t.scope.Episode, ids), len(ids)) >= b.Percent
	}
	return false
}

// AddPoints adds a non-negative amount. Negative amounts are ignored so that
// points never decrease outside a reset.
func (t *Tracker) AddPoints(ctx context.Context, amount int, reason string) {
	if amount < 0 {
		t.log.Warn("negative points ignored", "amount", amount, "reason", reason)
		return
	}
	if amount == 0 {
		return
	}
	var c Celebration
	t.store.Mutate(ctx, t.scope, func(st *models.AppState) bool {
		c = addPoints(st, amount, reason)
		return true
	})
	t.emit([]Celebration{c})
}

// AwardBadge adds a badge if not already held. Returns whether it was added.
func (t *Tracker) AwardBadge(ctx context.Context, badgeID string) bool {
	_, added := t.store.Mutate(ctx, t.scope, func(st *models.AppState) bool {
		if st.Progress.HasBadge(badgeID) {
			return false
		}
		st.Progress.Badges = append(st.Progress.Badges, badgeID)
		return true
	})
	if added {
		c := Celebration{Kind: CelebrateBadge, BadgeID: badgeID}
		if i := slices.IndexFunc(t.episode.Badges, func(b models.BadgeDef) bool { return b.ID == badgeID }); i >= 0 {
			c.Label, c.Icon = t.episode.Badges[i].Label, t.episode.Badges[i].Icon
		}
		t.emit([]Celebration{c})
	}
	return added
}

// CompletionPercentage returns the rounded share of ids that are complete.
func (t *Tracker) CompletionPercentage(ctx context.Context, ids []string) int {
	st := t.State(ctx)
	return Percentage(st.Progress.CompletedCount(t.scope.Episode, ids), len(ids))
}

// EpisodePercentage is CompletionPercentage over all of the episode's progress items.
func (t *Tracker) EpisodePercentage(ctx context.Context) int {
	return t.CompletionPercentage(ctx, t.episode.ProgressItems())
}

// Percentage returns round(100*completed/total), or 0 when total is 0.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}
