// Package content loads, validates and serves read-only episode content.
package content

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"leetee/internal/logger"
	"leetee/internal/models"
)

// Report summarises one catalog load.
type Report struct {
	Loaded  []string
	Invalid map[string]error // episode ID (or file name) -> problem
	Failed  map[string]error // source name -> fetch error
}

// Catalog holds the current set of episodes. A reload replaces the whole
// set at once, so readers never see a partially loaded catalog.
type Catalog struct {
	sources []Source
	log     *logger.Logger

	mu       sync.RWMutex
	episodes map[string]*models.Episode
	invalid  map[string]error
}

func NewCatalog(log *logger.Logger, sources ...Source) *Catalog {
	return &Catalog{
		sources:  sources,
		log:      logger.OrNop(log).With("component", "content"),
		episodes: map[string]*models.Episode{},
		invalid:  map[string]error{},
	}
}

// Load reads every source. Later sources override earlier ones by episode
// ID. Invalid documents are kept aside so requests for them can report the
// problem. When every source fails the current catalog is left untouched and
// an error is returned.
func (c *Catalog) Load(ctx context.Context) (Report, error) {
	report := Report{Invalid: map[string]error{}, Failed: map[string]error{}}
	episodes := map[string]*models.Episode{}
	invalid := map[string]error{}

	for _, src := range c.sources {
		docs, err := src.Documents(ctx)
		if err != nil {
			c.log.Error("content source failed", "source", src.Name(), "error", err)
			report.Failed[src.Name()] = err
			continue
		}
		for _, doc := range docs {
			ep, err := Parse(doc)
			if err != nil {
				c.log.Error("episode unreadable", "source", src.Name(), "file", doc.Name, "error", err)
				invalid[doc.Name] = err
				continue
			}
			if err := Validate(ep); err != nil {
				var verr *ValidationError
				if errors.As(err, &verr) {
					verr.Source = doc.Name
				}
				key := ep.ID
				if key == "" {
					key = doc.Name
				}
				c.log.Error("episode failed validation", "source", src.Name(), "file", doc.Name, "error", err)
				invalid[key] = err
				delete(episodes, key)
				continue
			}
			episodes[ep.ID] = ep
			delete(invalid, ep.ID)
		}
	}

	if len(c.sources) > 0 && len(report.Failed) == len(c.sources) {
		return report, fmt.Errorf("all %d content sources failed", len(c.sources))
	}

	for id := range episodes {
		report.Loaded = append(report.Loaded, id)
	}
	sort.Strings(report.Loaded)
	for k, v := range invalid {
		report.Invalid[k] = v
	}

	c.mu.Lock()
	c.episodes = episodes
	c.invalid = invalid
	c.mu.Unlock()

	c.log.Info("content loaded", "episodes", len(episodes), "invalid", len(invalid))
	return report, nil
}

// Episode returns the episode with id. Invalid episodes return
// ErrEpisodeInvalid wrapping their *ValidationError or parse error; unknown
// IDs return ErrEpisodeNotFound.
func (c *Catalog) Episode(id string) (*models.Episode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ep, ok := c.episodes[id]; ok {
		return ep, nil
	}
	if err, ok := c.invalid[id]; ok {
		return nil, fmt.Errorf("%w: %w", ErrEpisodeInvalid, err)
	}
	return nil, ErrEpisodeNotFound
}

// Episodes returns all valid episodes ordered by ID.
func (c *Catalog) Episodes() []*models.Episode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*models.Episode, 0, len(c.episodes))
	for _, ep := range c.episodes {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Invalid returns the problems recorded by the last load.
func (c *Catalog) Invalid() map[string]error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]error, len(c.invalid))
	for k, v := range c.invalid {
		out[k] = v
	}
	return out
}
