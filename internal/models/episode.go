package models

// Section types.
const (
	SectionVocab           = "vocab"
	SectionMCQ             = "mcq"
	SectionMultiSelect     = "multiSelect"
	SectionDragMatch       = "dragMatch"
	SectionWriting         = "writing"
	SectionMedia           = "media"
	SectionStory           = "story"
	SectionVideo           = "video"
	SectionSELCheckin      = "sel-checkin"
	SectionCharacterChoice = "character-choice"
	SectionStrategy        = "strategy"
	SectionEssayModel      = "essay-model"
	SectionReflection      = "reflection"
)

// Story interaction types.
const (
	InteractionEvidenceHighlight = "evidence_highlight"
	InteractionSequenceEvents    = "sequence_events"
	InteractionClozeContext      = "cloze_context"
	InteractionShortResponse     = "short_response"
)

// Default scoring when an episode does not configure its own.
const (
	DefaultActivityPoints  = 10
	DefaultCompletionBonus = 50
)

// Episode is a self-contained lesson unit loaded from content files.
type Episode struct {
	ID        string            `json:"id" yaml:"id"`
	Title     string            `json:"title" yaml:"title"`
	Subtitle  string            `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Languages []string          `json:"languages,omitempty" yaml:"languages,omitempty"`
	Helpers   map[string]string `json:"helpers,omitempty" yaml:"helpers,omitempty"`
	Badges    []BadgeDef        `json:"badges,omitempty" yaml:"badges,omitempty"`
	Scoring   Scoring           `json:"scoring,omitempty" yaml:"scoring,omitempty"`
	Sections  []Section         `json:"sections" yaml:"sections"`
}

// Scoring configures points for an episode.
type Scoring struct {
	ActivityPoints  int `json:"activityPoints,omitempty" yaml:"activityPoints,omitempty"`
	CompletionBonus int `json:"completionBonus,omitempty" yaml:"completionBonus,omitempty"`
}

// BadgeDef declares a badge and what earns it. Exactly one trigger is set.
type BadgeDef struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
	Activity    string `json:"activity,omitempty" yaml:"activity,omitempty"`
	SectionType string `json:"sectionType,omitempty" yaml:"sectionType,omitempty"`
	Percent     int    `json:"percent,omitempty" yaml:"percent,omitempty"`
}

// Section is one navigable unit of an episode. Payload fields are used
// according to Type.
type Section struct {
	ID          string `json:"id" yaml:"id"`
	Type        string `json:"type" yaml:"type"`
	NavIndex    int    `json:"navIndex" yaml:"navIndex"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
	LockedUntil string `json:"lockedUntil,omitempty" yaml:"lockedUntil,omitempty"`
	Points      int    `json:"points,omitempty" yaml:"points,omitempty"`

	Text       string      `json:"text,omitempty" yaml:"text,omitempty"`
	Paragraphs []string    `json:"paragraphs,omitempty" yaml:"paragraphs,omitempty"`
	Cards      []VocabCard `json:"cards,omitempty" yaml:"cards,omitempty"`

	Prompt     string   `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Options    []Option `json:"options,omitempty" yaml:"options,omitempty"`
	Correct    string   `json:"correct,omitempty" yaml:"correct,omitempty"`
	CorrectIDs []string `json:"correctIds,omitempty" yaml:"correctIds,omitempty"`

	Items   []MatchItem `json:"items,omitempty" yaml:"items,omitempty"`
	Targets []Option    `json:"targets,omitempty" yaml:"targets,omitempty"`

	Interactions []Interaction `json:"interactions,omitempty" yaml:"interactions,omitempty"`

	MinLength int      `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	Keywords  []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	MediaURL string `json:"mediaUrl,omitempty" yaml:"mediaUrl,omitempty"`
	Caption  string `json:"caption,omitempty" yaml:"caption,omitempty"`
}

// Option is a selectable choice.
type Option struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// MatchItem is a draggable item and the target it belongs on.
type MatchItem struct {
	ID     string `json:"id" yaml:"id"`
	Label  string `json:"label" yaml:"label"`
	Target string `json:"target" yaml:"target"`
}

// VocabCard is a vocabulary flashcard.
type VocabCard struct {
	Term       string `json:"term" yaml:"term"`
	Definition string `json:"definition" yaml:"definition"`
	Example    string `json:"example,omitempty" yaml:"example,omitempty"`
}

// Interaction is a graded sub-activity inside a story section.
type Interaction struct {
	ID     string `json:"id" yaml:"id"`
	Type   string `json:"type" yaml:"type"`
	Prompt string `json:"prompt" yaml:"prompt"`
	Points int    `json:"points,omitempty" yaml:"points,omitempty"`

	// evidence_highlight
	Sentences []string `json:"sentences,omitempty" yaml:"sentences,omitempty"`
	Evidence  []int    `json:"evidence,omitempty" yaml:"evidence,omitempty"`

	// sequence_events
	Events []Option `json:"events,omitempty" yaml:"events,omitempty"`
	Order  []string `json:"order,omitempty" yaml:"order,omitempty"`

	// cloze_context
	Sentence string   `json:"sentence,omitempty" yaml:"sentence,omitempty"`
	Choices  []string `json:"choices,omitempty" yaml:"choices,omitempty"`
	Answer   int      `json:"answer" yaml:"answer"`

	// short_response
	MinLength int      `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	Keywords  []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// ProgressItems returns the IDs that make up episode completion: the
// interaction IDs of sections that have interactions, and the section ID of
// every other section, in navigation order.
func (e *Episode) ProgressItems() []string {
	var ids []string
	for _, s := range e.Sections {
		if len(s.Interactions) > 0 {
			for _, in := range s.Interactions {
				ids = append(ids, in.ID)
			}
			continue
		}
		ids = append(ids, s.ID)
	}
	return ids
}

// ItemsOfType returns the progress items belonging to sections of the given type.
func (e *Episode) ItemsOfType(sectionType string) []string {
	var ids []string
	for _, s := range e.Sections {
		if s.Type != sectionType {
			continue
		}
		if len(s.Interactions) > 0 {
			for _, in := range s.Interactions {
				ids = append(ids, in.ID)
			}
			continue
		}
		ids = append(ids, s.ID)
	}
	return ids
}

// Section returns the section with the given ID.
func (e *Episode) Section(id string) (*Section, bool) {
	for i := range e.Sections {
		if e.Sections[i].ID == id {
			return &e.Sections[i], true
		}
	}
	return nil, false
}

// SectionAt returns the section registered at a navigation index.
func (e *Episode) SectionAt(navIndex int) (*Section, bool) {
	for i := range e.Sections {
		if e.Sections[i].NavIndex == navIndex {
			return &e.Sections[i], true
		}
	}
	return nil, false
}

// Interaction returns the interaction with the given ID.
func (s *Section) Interaction(id string) (*Interaction, bool) {
	for i := range s.Interactions {
		if s.Interactions[i].ID == id {
			return &s.Interactions[i], true
		}
	}
	return nil, false
}

// PointsFor returns the points awarded for completing a progress item.
func (e *Episode) PointsFor(itemID string) int {
	base := e.Scoring.ActivityPoints
	if base <= 0 {
		base = DefaultActivityPoints
	}
	for _, s := range e.Sections {
		if s.ID == itemID {
			if s.Points > 0 {
				return s.Points
			}
			return base
		}
		for _, in := range s.Interactions {
			if in.ID == itemID {
				if in.Points > 0 {
					return in.Points
				}
				return base
			}
		}
	}
	return 0
}

// CompletionBonus returns the points awarded when every item is complete.
func (e *Episode) CompletionBonus() int {
	if e.Scoring.CompletionBonus > 0 {
		return e.Scoring.CompletionBonus
	}
	return DefaultCompletionBonus
}

// Hint returns the kid-friendly helper text for a glossary term.
func (e *Episode) Hint(term string) (string, bool) {
	h, ok := e.Helpers[term]
	return h, ok
}
