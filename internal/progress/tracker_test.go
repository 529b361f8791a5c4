package progress

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leetee/internal/models"
	"leetee/internal/state"
	"leetee/internal/storage"
)

func testEpisode() *models.Episode {
	return &models.Episode{
		ID:      "ep1",
		Title:   "Test",
		Scoring: models.Scoring{ActivityPoints: 10, CompletionBonus: 50},
		Badges: []models.BadgeDef{
			{ID: "word-wizard", Label: "Word Wizard", Activity: "vocab"},
			{ID: "story-sleuth", Label: "Story Sleuth", SectionType: models.SectionStory},
			{ID: "halfway", Label: "Halfway Hero", Percent: 50},
		},
		Sections: []models.Section{
			{ID: "vocab", Type: models.SectionVocab, NavIndex: 1},
			{ID: "story", Type: models.SectionStory, NavIndex: 2, Interactions: []models.Interaction{
				{ID: "s1", Type: models.InteractionClozeContext},
				{ID: "s2", Type: models.InteractionShortResponse},
			}},
			{ID: "quiz", Type: models.SectionMCQ, NavIndex: 3},
		},
	}
}

func newTracker(t *testing.T) (*Tracker, *[]Celebration) {
	t.Helper()
	store := state.New(storage.NewMemory(), nil, "en")
	tr := NewTracker(store, state.Scope{Device: "d1", Episode: "ep1"}, testEpisode(), nil)
	var got []Celebration
	tr.OnCelebrate(func(c Celebration) { got = append(got, c) })
	return tr, &got
}

func TestCompleteActivityIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t)

	require.True(t, tr.CompleteActivity(ctx, "quiz"))
	first := tr.State(ctx)

	for i := 0; i < 3; i++ {
		assert.False(t, tr.CompleteActivity(ctx, "quiz"))
	}
	again := tr.State(ctx)
	assert.Equal(t, first.Progress.Points, again.Progress.Points)
	assert.Equal(t, first.Progress.Badges, again.Progress.Badges)
	assert.Equal(t, 10, again.Progress.Points)
}

func TestCompleteActivityAwardsActivityBadge(t *testing.T) {
	ctx := context.Background()
	tr, celebrations := newTracker(t)

	require.True(t, tr.CompleteActivity(ctx, "vocab"))
	st := tr.State(ctx)
	assert.Equal(t, []string{"word-wizard"}, st.Progress.Badges)
	require.Len(t, *celebrations, 2)
	assert.Equal(t, CelebratePoints, (*celebrations)[0].Kind)
	assert.Equal(t, CelebrateBadge, (*celebrations)[1].Kind)
	assert.Equal(t, "Word Wizard", (*celebrations)[1].Label)
}

func TestSectionTypeAndPercentBadges(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t)

	tr.CompleteActivity(ctx, "s1")
	assert.False(t, tr.State(ctx).Progress.HasBadge("story-sleuth"))
	assert.False(t, tr.State(ctx).Progress.HasBadge("halfway"))

	tr.CompleteActivity(ctx, "s2")
	st := tr.State(ctx)
	assert.True(t, st.Progress.HasBadge("story-sleuth"))
	assert.True(t, st.Progress.HasBadge("halfway"))
}

func TestEpisodeCompletionBonus(t *testing.T) {
	ctx := context.Background()
	tr, celebrations := newTracker(t)

	for _, id := range []string{"vocab", "s1", "s2", "quiz"} {
		require.True(t, tr.CompleteActivity(ctx, id))
	}
	st := tr.State(ctx)
	assert.Equal(t, 4*10+50, st.Progress.Points)
	assert.Equal(t, 100, tr.EpisodePercentage(ctx))
	last := (*celebrations)[len(*celebrations)-1]
	assert.Equal(t, CelebrateEpisode, last.Kind)
	assert.Equal(t, 50, last.Amount)
}

func TestPointsNeverDecrease(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t)

	ops := []func(){
		func() { tr.AddPoints(ctx, 5, "bonus") },
		func() { tr.AddPoints(ctx, -20, "penalty") },
		func() { tr.CompleteActivity(ctx, "quiz") },
		func() { tr.CompleteActivity(ctx, "quiz") },
		func() { tr.AddPoints(ctx, 0, "nothing") },
		func() { tr.AwardBadge(ctx, "extra") },
	}
	prev := tr.State(ctx).Progress.Points
	for i, op := range ops {
		op()
		cur := tr.State(ctx).Progress.Points
		assert.GreaterOrEqual(t, cur, prev, "op %d decreased points", i)
		prev = cur
	}
	assert.Equal(t, 15, prev)
}

func TestAwardBadgeIsUnique(t *testing.T) {
	ctx := context.Background()
	tr, celebrations := newTracker(t)

	assert.True(t, tr.AwardBadge(ctx, "halfway"))
	assert.False(t, tr.AwardBadge(ctx, "halfway"))
	assert.Equal(t, []string{"halfway"}, tr.State(ctx).Progress.Badges)
	require.Len(t, *celebrations, 1)
	assert.Equal(t, "Halfway Hero", (*celebrations)[0].Label)
}

func TestConcurrentCompletionsCountOnce(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.CompleteActivity(ctx, "quiz") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 10, tr.State(ctx).Progress.Points)
}

func TestHandleRejectsForeignEpisode(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker(t)

	assert.False(t, tr.Handle(ctx, CompletionEvent{EpisodeID: "ep2", ActivityID: "quiz"}))
	assert.True(t, tr.Handle(ctx, CompletionEvent{EpisodeID: "ep1", ActivityID: "quiz"}))
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{3, 8, 38},
		{1, 3, 33},
		{2, 3, 67},
		{8, 8, 100},
		{0, 5, 0},
	}
	for _, tt := range tests {
		if got := Percentage(tt.completed, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}

func TestCompletionPercentageThreeOfEight(t *testing.T) {
	ctx := context.Background()
	store := state.New(storage.NewMemory(), nil, "en")
	ep := &models.Episode{ID: "ep8"}
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		ep.Sections = append(ep.Sections, models.Section{ID: id, Type: models.SectionMCQ, NavIndex: i + 1})
	}
	tr := NewTracker(store, state.Scope{Device: "d1", Episode: "ep8"}, ep, nil)
	for _, id := range []string{"a", "d", "h"} {
		tr.CompleteActivity(ctx, id)
	}
	assert.Equal(t, 38, tr.EpisodePercentage(ctx))
	assert.Equal(t, 0, tr.CompletionPercentage(ctx, nil))
}
