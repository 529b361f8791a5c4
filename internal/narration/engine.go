// Package narration reads section text aloud and tracks which word is
// highlighted while it plays.
package narration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"leetee/internal/logger"
)

var (
	// ErrEmptyText is returned when there is nothing to read.
	ErrEmptyText = errors.New("nothing to narrate")
	// ErrTextTooLong is returned for text over MaxClipChars. Callers split
	// longer text with Script.Chunks.
	ErrTextTooLong = errors.New("text too long for one clip")
)

// MaxClipChars is the most runes one clip may carry. The free endpoint
// rejects longer requests.
const MaxClipChars = 200

// Clip is a synthesized audio file.
type Clip struct {
	File string `json:"file"`
	Lang string `json:"lang"`
}

// URL is where the clip is served from.
func (c Clip) URL() string {
	return "/static/audio/" + c.File
}

// Engine turns text into audio.
type Engine interface {
	Synthesize(ctx context.Context, text, lang string) (Clip, error)
}

const (
	ttsRequestTimeout = 10 * time.Second
	defaultTTSBaseURL = "https://translate.google.com/translate_tts"
)

// GoogleTTS synthesizes speech with Google Translate's text-to-speech
// endpoint and caches MP3 files in a directory.
type GoogleTTS struct {
	audioDir string
	baseURL  string
	client   *http.Client
	log      *logger.Logger
	group    singleflight.Group
}

// NewGoogleTTS creates an engine that writes into audioDir.
func NewGoogleTTS(audioDir string, log *logger.Logger) *GoogleTTS {
	return &GoogleTTS{
		audioDir: audioDir,
		baseURL:  defaultTTSBaseURL,
		client:   &http.Client{Timeout: ttsRequestTimeout},
		log:      logger.OrNop(log).With("component", "tts"),
	}
}

// WithEndpoint points the engine at another server, for tests.
func (g *GoogleTTS) WithEndpoint(baseURL string, client *http.Client) *GoogleTTS {
	g.baseURL = baseURL
	if client != nil {
		g.client = client
	}
	return g
}

// FileName returns the cache file name for text in lang.
func FileName(text, lang string) string {
	sum := sha256.Sum256([]byte(lang + "\x00" + normalize(text)))
	return "narration_" + lang + "_" + hex.EncodeToString(sum[:8]) + ".mp3"
}

func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Synthesize returns the cached clip for text, generating it on first use.
// Concurrent requests for the same text share one download, which outlives
// any single caller's context so a hung-up request cannot fail the others.
func (g *GoogleTTS) Synthesize(ctx context.Context, text, lang string) (Clip, error) {
	text = normalize(text)
	if text == "" {
		return Clip{}, ErrEmptyText
	}
	if lang == "" {
		lang = "en"
	}
	if utf8.RuneCountInString(text) > MaxClipChars {
		return Clip{}, ErrTextTooLong
	}

	name := FileName(text, lang)
	path := filepath.Join(g.audioDir, name)
	clip := Clip{File: name, Lang: lang}
	if _, err := os.Stat(path); err == nil {
		return clip, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(name, func() (any, error) {
		if _, err := os.Stat(path); err == nil {
			return nil, nil
		}
		return nil, g.download(shared, text, lang, path)
	})
	select {
	case <-ctx.Done():
		return Clip{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Clip{}, fmt.Errorf("failed to generate audio: %w", res.Err)
		}
	}
	g.log.Debug("narration audio generated", "file", name, "lang", lang)
	return clip, nil
}

func (g *GoogleTTS) download(ctx context.Context, text, lang, outputPath string) error {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("q", text)
	params.Set("tl", lang)
	params.Set("client", "tw-ob")
	params.Set("textlen", fmt.Sprintf("%d", utf8.RuneCountInString(text)))

	ctx, cancel := context.WithTimeout(ctx, ttsRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	// Required by Google.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(g.audioDir, 0o755); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}
	// Write to a temp file so a failed download never leaves a partial clip
	// behind under the cache name.
	tmp, err := os.CreateTemp(g.audioDir, ".narration-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	return os.Rename(tmp.Name(), outputPath)
}

// Files lists the cached narration clips.
func (g *GoogleTTS) Files() ([]string, error) {
	entries, err := os.ReadDir(g.audioDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audio directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "narration_") && filepath.Ext(e.Name()) == ".mp3" {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

// Path returns the on-disk path of a cached clip, or false when the name is
// not a clip this engine could have written.
func (g *GoogleTTS) Path(file string) (string, bool) {
	if file != filepath.Base(file) || !strings.HasPrefix(file, "narration_") || filepath.Ext(file) != ".mp3" {
		return "", false
	}
	return filepath.Join(g.audioDir, file), true
}
