// Package navigation tracks which section of an episode is showing.
package navigation

import (
	"sort"

	"leetee/internal/logger"
	"leetee/internal/models"
)

// Item is one entry of the navigation bar.
type Item struct {
	Index   int
	Label   string
	Icon    string
	Locked  bool
	Current bool
}

// Listener is notified after the current section changes.
type Listener func(from, to int)

// Controller holds the navigation model for one episode view. Indices are
// 1-based and stable. It is not safe for concurrent use; callers build one
// per request.
type Controller struct {
	total     int
	items     map[int]Item
	current   int
	persist   func(index int)
	listeners []Listener
	log       *logger.Logger
}

// New creates a controller whose valid indices are 1..total.
func New(total int, log *logger.Logger) *Controller {
	return &Controller{
		total:   total,
		items:   make(map[int]Item, total),
		current: 1,
		log:     logger.OrNop(log).With("component", "navigation"),
	}
}

// FromEpisode registers every section of ep, locking those whose
// prerequisite is not complete in progress.
func FromEpisode(ep *models.Episode, progress models.Progress, log *logger.Logger) *Controller {
	total := 0
	for _, s := range ep.Sections {
		total = max(total, s.NavIndex)
	}
	c := New(total, log)
	for _, s := range ep.Sections {
		c.RegisterSection(s.NavIndex, s.Title, s.Icon, !prerequisiteMet(ep, progress, s.LockedUntil))
	}
	return c
}

// prerequisiteMet accepts either a progress item ID or a section ID, in
// which case every item of that section must be complete.
func prerequisiteMet(ep *models.Episode, progress models.Progress, id string) bool {
	if id == "" {
		return true
	}
	if s, ok := ep.Section(id); ok && len(s.Interactions) > 0 {
		for _, in := range s.Interactions {
			if !progress.IsCompleted(ep.ID, in.ID) {
				return false
			}
		}
		return true
	}
	return progress.IsCompleted(ep.ID, id)
}

// RegisterSection adds or replaces the entry at index.
func (c *Controller) RegisterSection(index int, label, icon string, locked bool) {
	c.items[index] = Item{Index: index, Label: label, Icon: icon, Locked: locked}
}

// OnPersist sets the callback that stores the current index after each move.
func (c *Controller) OnPersist(fn func(index int)) {
	c.persist = fn
}

// Subscribe adds a listener for section changes.
func (c *Controller) Subscribe(l Listener) {
	c.listeners = append(c.listeners, l)
}

// Restore sets the starting section from a persisted value, falling back to
// section 1 when the value is missing, out of range or locked.
func (c *Controller) Restore(index int, ok bool) {
	c.current = 1
	if !ok {
		return
	}
	if it, found := c.items[index]; found && index >= 1 && index <= c.total && !it.Locked {
		c.current = index
	}
}

// Current returns the current section index.
func (c *Controller) Current() int {
	return c.current
}

// Total returns the highest valid index.
func (c *Controller) Total() int {
	return c.total
}

// Items returns the navigation entries ordered by index.
func (c *Controller) Items() []Item {
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		it.Current = it.Index == c.current
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// GoTo moves to index. Out-of-range, locked or unregistered targets are
// ignored and logged. Returns whether the current section changed.
func (c *Controller) GoTo(index int) bool {
	if index < 1 || index > c.total {
		c.log.Debug("navigation out of range", "index", index, "total", c.total)
		return false
	}
	it, ok := c.items[index]
	if !ok {
		c.log.Warn("no section registered at index", "index", index)
		return false
	}
	if it.Locked {
		c.log.Debug("navigation to locked section ignored", "index", index)
		return false
	}
	if index == c.current {
		return false
	}

	from := c.current
	c.current = index
	if c.persist != nil {
		c.persist(index)
	}
	for _, l := range c.listeners {
		l(from, index)
	}
	return true
}

// Next moves forward one section, stopping at the last.
func (c *Controller) Next() bool {
	if c.current >= c.total {
		return false
	}
	return c.GoTo(c.current + 1)
}

// Prev moves back one section, stopping at the first.
func (c *Controller) Prev() bool {
	if c.current <= 1 {
		return false
	}
	return c.GoTo(c.current - 1)
}

// HasNext reports whether Next would move.
func (c *Controller) HasNext() bool {
	it, ok := c.items[c.current+1]
	return c.current < c.total && ok && !it.Locked
}

// HasPrev reports whether Prev would move.
func (c *Controller) HasPrev() bool {
	it, ok := c.items[c.current-1]
	return c.current > 1 && ok && !it.Locked
}
