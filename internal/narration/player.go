package narration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"leetee/internal/logger"
)

// maxParallelClips bounds concurrent synthesis of one section's chunks.
const maxParallelClips = 3

// NoticeUnavailable is the translation key shown once when read-aloud is
// turned off after a failure.
const NoticeUnavailable = "narration.unavailable"

// ErrDisabled is returned by Start after a synthesis failure has turned
// narration off for the device.
var ErrDisabled = errors.New("narration disabled")

// Highlight marks the word being read. Both fields are -1 when nothing is
// highlighted.
type Highlight struct {
	Sentence int `json:"sentence"`
	Word     int `json:"word"`
}

var noHighlight = Highlight{Sentence: -1, Word: -1}

// ClipSpan is one clip of a narration and the script words it speaks.
type ClipSpan struct {
	URL       string `json:"url"`
	FirstWord int    `json:"firstWord"`
	LastWord  int    `json:"lastWord"`
}

// Status is a snapshot of a player. Clips play in order; AudioURL is the
// first of them.
type Status struct {
	SectionID string     `json:"sectionId,omitempty"`
	Playing   bool       `json:"playing"`
	Highlight Highlight  `json:"highlight"`
	Script    Script     `json:"script"`
	AudioURL  string     `json:"audioUrl,omitempty"`
	Clips     []ClipSpan `json:"clips,omitempty"`
	Disabled  bool       `json:"disabled"`
	Notice    string     `json:"notice,omitempty"`
}

// Player narrates one section at a time for one device.
type Player struct {
	engine   Engine
	log      *logger.Logger
	onFinish func(sectionID string)

	mu          sync.Mutex
	sectionID   string
	script      Script
	clips       []ClipSpan
	playing     bool
	highlight   Highlight
	disabled    bool
	noticeShown bool
}

func newPlayer(engine Engine, log *logger.Logger, onFinish func(string)) *Player {
	return &Player{engine: engine, log: log, onFinish: onFinish, highlight: noHighlight}
}

// Start synthesizes text and begins playback of sectionID, replacing
// anything already playing. Text longer than one clip is split into chunks
// with a clip each. On synthesis failure narration is disabled for the
// player and the returned status carries a notice the first time. A
// cancelled ctx returns its error and leaves narration enabled.
func (p *Player) Start(ctx context.Context, sectionID, text, lang string) (Status, error) {
	script := NewScript(text)
	if script.Empty() {
		return p.Status(), ErrEmptyText
	}

	p.mu.Lock()
	if p.disabled {
		st := p.statusLocked()
		p.mu.Unlock()
		return st, ErrDisabled
	}
	p.stopLocked()
	p.mu.Unlock()

	// Synthesis may block on the network; the lock is not held.
	clips, err := p.synthesize(ctx, script, lang)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil && ctx.Err() != nil {
		return p.statusLocked(), fmt.Errorf("narrate %s: %w", sectionID, ctx.Err())
	}
	if err != nil {
		p.disabled = true
		p.log.Warn("narration failed, read-aloud disabled", "section", sectionID, "error", err)
		st := p.statusLocked()
		if !p.noticeShown {
			p.noticeShown = true
			st.Notice = NoticeUnavailable
		}
		return st, fmt.Errorf("narrate %s: %w", sectionID, err)
	}

	p.sectionID = sectionID
	p.script = script
	p.clips = clips
	p.playing = true
	p.highlight = Highlight{Sentence: script.Words[0].Sentence, Word: 0}
	return p.statusLocked(), nil
}

func (p *Player) synthesize(ctx context.Context, script Script, lang string) ([]ClipSpan, error) {
	chunks := script.Chunks(MaxClipChars)
	clips := make([]ClipSpan, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelClips)
	for i, c := range chunks {
		g.Go(func() error {
			clip, err := p.engine.Synthesize(gctx, c.Text, lang)
			if err != nil {
				return err
			}
			clips[i] = ClipSpan{URL: clip.URL(), FirstWord: c.FirstWord, LastWord: c.LastWord}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

// Advance moves the highlight to word. Moving past the last word finishes
// playback. It does nothing when idle.
func (p *Player) Advance(word int) Status {
	p.mu.Lock()
	if !p.playing {
		st := p.statusLocked()
		p.mu.Unlock()
		return st
	}
	if word >= len(p.script.Words) {
		p.mu.Unlock()
		return p.Finish()
	}
	if word < 0 {
		word = 0
	}
	p.highlight = Highlight{Sentence: p.script.Words[word].Sentence, Word: word}
	st := p.statusLocked()
	p.mu.Unlock()
	return st
}

// Finish is the playback completion callback. Highlighting is cleared and
// the finish listener is told which section was read.
func (p *Player) Finish() Status {
	p.mu.Lock()
	if !p.playing {
		st := p.statusLocked()
		p.mu.Unlock()
		return st
	}
	section := p.sectionID
	p.stopLocked()
	st := p.statusLocked()
	p.mu.Unlock()

	if p.onFinish != nil {
		p.onFinish(section)
	}
	return st
}

// Stop cancels playback. It is safe to call at any time, any number of
// times, and always clears highlighting.
func (p *Player) Stop() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return p.statusLocked()
}

func (p *Player) stopLocked() {
	p.playing = false
	p.highlight = noHighlight
}

// Enable clears a previous failure, e.g. after the learner turns read-aloud
// back on.
func (p *Player) Enable() {
	p.mu.Lock()
	p.disabled = false
	p.mu.Unlock()
}

// Status returns a snapshot.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusLocked()
}

func (p *Player) statusLocked() Status {
	st := Status{
		SectionID: p.sectionID,
		Playing:   p.playing,
		Highlight: p.highlight,
		Disabled:  p.disabled,
	}
	if p.playing {
		st.Script = p.script
		st.Clips = slices.Clone(p.clips)
		st.AudioURL = p.clips[0].URL
	}
	return st
}

// Manager keeps one player per device.
type Manager struct {
	engine Engine
	log    *logger.Logger

	mu       sync.Mutex
	players  map[string]*Player
	onFinish func(device, sectionID string)
}

func NewManager(engine Engine, log *logger.Logger) *Manager {
	return &Manager{
		engine:  engine,
		log:     logger.OrNop(log).With("component", "narration"),
		players: map[string]*Player{},
	}
}

// OnFinish registers a listener for completed narrations. Call it before
// the first Player.
func (m *Manager) OnFinish(fn func(device, sectionID string)) {
	m.onFinish = fn
}

// Player returns the device's player, creating it on first use.
func (m *Manager) Player(device string) *Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[device]
	if !ok {
		var finish func(string)
		if m.onFinish != nil {
			finish = func(section string) { m.onFinish(device, section) }
		}
		p = newPlayer(m.engine, m.log.With("device", device), finish)
		m.players[device] = p
	}
	return p
}

// StopAll stops every player, e.g. on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	players := make([]*Player, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, p)
	}
	m.mu.Unlock()
	for _, p := range players {
		p.Stop()
	}
}
