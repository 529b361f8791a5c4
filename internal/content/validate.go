package content

import (
	"errors"
	"fmt"
	"strings"

	"leetee/internal/models"
)

var (
	// ErrEpisodeNotFound is returned when no episode has the requested ID.
	ErrEpisodeNotFound = errors.New("episode not found")
	// ErrEpisodeInvalid wraps the load error of an episode that failed
	// parsing or validation.
	ErrEpisodeInvalid = errors.New("episode invalid")
)

// ValidationError lists everything wrong with one episode document.
type ValidationError struct {
	Source    string
	EpisodeID string
	Problems  []string
}

func (e *ValidationError) Error() string {
	name := e.EpisodeID
	if name == "" {
		name = e.Source
	}
	return fmt.Sprintf("episode %s is invalid: %s", name, strings.Join(e.Problems, "; "))
}

// Validate checks the minimum schema: id, title, and at least one section,
// plus unique section IDs, unique positive navigation indices and unique
// activity IDs.
func Validate(ep *models.Episode) error {
	var problems []string
	if strings.TrimSpace(ep.ID) == "" {
		problems = append(problems, "missing id")
	}
	if strings.TrimSpace(ep.Title) == "" {
		problems = append(problems, "missing title")
	}
	if len(ep.Sections) == 0 {
		problems = append(problems, "no sections")
	}

	ids := map[string]bool{}
	navs := map[int]string{}
	for i, s := range ep.Sections {
		label := s.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			problems = append(problems, fmt.Sprintf("section %s missing id", label))
		} else if ids[s.ID] {
			problems = append(problems, fmt.Sprintf("duplicate id %q", s.ID))
		}
		ids[s.ID] = true

		if s.Type == "" {
			problems = append(problems, fmt.Sprintf("section %s missing type", label))
		}
		if s.NavIndex < 1 {
			problems = append(problems, fmt.Sprintf("section %s has invalid navIndex %d", label, s.NavIndex))
		} else if other, dup := navs[s.NavIndex]; dup {
			problems = append(problems, fmt.Sprintf("sections %s and %s share navIndex %d", other, label, s.NavIndex))
		} else {
			navs[s.NavIndex] = label
		}

		for _, in := range s.Interactions {
			switch {
			case in.ID == "":
				problems = append(problems, fmt.Sprintf("section %s has an interaction without id", label))
			case ids[in.ID]:
				problems = append(problems, fmt.Sprintf("duplicate id %q", in.ID))
			}
			ids[in.ID] = true
		}
	}

	for _, b := range ep.Badges {
		if b.ID == "" {
			problems = append(problems, "badge without id")
		}
		if b.Activity != "" && !ids[b.Activity] {
			problems = append(problems, fmt.Sprintf("badge %s refers to unknown activity %q", b.ID, b.Activity))
		}
	}
	for _, s := range ep.Sections {
		if s.LockedUntil != "" && !ids[s.LockedUntil] {
			problems = append(problems, fmt.Sprintf("section %s locked until unknown id %q", s.ID, s.LockedUntil))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{EpisodeID: ep.ID, Problems: problems}
	}
	return nil
}
