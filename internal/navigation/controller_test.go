package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"leetee/internal/models"
)

func fiveSections() *Controller {
	c := New(5, nil)
	for i := 1; i <= 5; i++ {
		c.RegisterSection(i, "Section", "", false)
	}
	return c
}

func TestBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		start int
		move  func(c *Controller) bool
		want  int
		moved bool
	}{
		{"next at last", 5, (*Controller).Next, 5, false},
		{"prev at first", 1, (*Controller).Prev, 1, false},
		{"goto zero", 3, func(c *Controller) bool { return c.GoTo(0) }, 3, false},
		{"goto beyond total", 3, func(c *Controller) bool { return c.GoTo(6) }, 3, false},
		{"goto valid", 1, func(c *Controller) bool { return c.GoTo(4) }, 4, true},
		{"next in middle", 2, (*Controller).Next, 3, true},
		{"prev in middle", 2, (*Controller).Prev, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fiveSections()
			c.Restore(tt.start, true)
			moved := tt.move(c)
			assert.Equal(t, tt.moved, moved)
			assert.Equal(t, tt.want, c.Current())
		})
	}
}

func TestLockedAndMissingSections(t *testing.T) {
	c := New(4, nil)
	c.RegisterSection(1, "Vocab", "", false)
	c.RegisterSection(2, "Story", "", true)
	c.RegisterSection(4, "Quiz", "", false)

	assert.False(t, c.GoTo(2), "locked section")
	assert.False(t, c.GoTo(3), "unregistered section")
	assert.False(t, c.Next())
	assert.Equal(t, 1, c.Current())
	assert.True(t, c.GoTo(4))
}

func TestPersistAndListeners(t *testing.T) {
	c := fiveSections()
	var persisted []int
	var changes [][2]int
	c.OnPersist(func(i int) { persisted = append(persisted, i) })
	c.Subscribe(func(from, to int) { changes = append(changes, [2]int{from, to}) })

	c.Next()
	c.GoTo(5)
	c.Next()
	c.GoTo(5)

	assert.Equal(t, []int{2, 5}, persisted)
	assert.Equal(t, [][2]int{{1, 2}, {2, 5}}, changes)
}

func TestRestore(t *testing.T) {
	c := fiveSections()
	c.Restore(0, false)
	assert.Equal(t, 1, c.Current())

	c.Restore(4, true)
	assert.Equal(t, 4, c.Current())

	c.Restore(12, true)
	assert.Equal(t, 1, c.Current())
}

func TestFromEpisodeLocksUntilPrerequisite(t *testing.T) {
	ep := &models.Episode{
		ID: "ep1",
		Sections: []models.Section{
			{ID: "vocab", Type: models.SectionVocab, NavIndex: 1, Title: "Words"},
			{ID: "story", Type: models.SectionStory, NavIndex: 2, LockedUntil: "vocab", Interactions: []models.Interaction{
				{ID: "s1"}, {ID: "s2"},
			}},
			{ID: "quiz", Type: models.SectionMCQ, NavIndex: 3, LockedUntil: "story"},
		},
	}

	progress := models.DefaultProgress()
	c := FromEpisode(ep, progress, nil)
	items := c.Items()
	assert.Len(t, items, 3)
	assert.False(t, items[0].Locked)
	assert.True(t, items[0].Current)
	assert.True(t, items[1].Locked)
	assert.True(t, items[2].Locked)

	progress.CompletedSections["ep1"] = map[string]bool{"vocab": true, "s1": true}
	items = FromEpisode(ep, progress, nil).Items()
	assert.False(t, items[1].Locked)
	assert.True(t, items[2].Locked, "story still has an incomplete interaction")

	progress.CompletedSections["ep1"]["s2"] = true
	items = FromEpisode(ep, progress, nil).Items()
	assert.False(t, items[2].Locked)
}
