package narration

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeEngine struct {
	err   error
	calls atomic.Int32
}

func (f *fakeEngine) Synthesize(ctx context.Context, text, lang string) (Clip, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return Clip{}, err
	}
	if utf8.RuneCountInString(text) > MaxClipChars {
		return Clip{}, ErrTextTooLong
	}
	if f.err != nil {
		return Clip{}, f.err
	}
	return Clip{File: FileName(text, lang), Lang: lang}, nil
}

func TestNewScript(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		sentences []string
		words     int
	}{
		{"empty", "   ", nil, 0},
		{"one sentence no stop", "Lee flies a kite", []string{"Lee flies a kite"}, 4},
		{"three sentences", "Lee ran. Where? Up the hill!", []string{"Lee ran.", "Where?", "Up the hill!"}, 6},
		{"decimal stays inside", "It cost 2.50 today. Wow.", []string{"It cost 2.50 today.", "Wow."}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := NewScript(tt.text)
			assert.Equal(t, tt.sentences, sc.Sentences)
			assert.Len(t, sc.Words, tt.words)
		})
	}

	sc := NewScript("Lee ran. Tee hid.")
	assert.Equal(t, 1, sc.Words[2].Sentence)
	assert.Equal(t, "Lee ran. Tee hid.", sc.Text())
}

const longStory = "Lee and Tee walk to the park on a sunny morning. " +
	"They see a red kite stuck high in the old oak tree near the pond. " +
	"Tee climbs onto Lee's shoulders and reaches up as far as she can. " +
	"The kite comes free and floats down gently onto the soft green grass. " +
	"A little girl runs over, smiles, and thanks them both for their help. " +
	"Then everyone shares a picnic of apples, cheese, and warm bread."

func TestScriptChunks(t *testing.T) {
	giant := strings.Repeat("a", 25)
	tests := []struct {
		name  string
		text  string
		limit int
		want  []Chunk
	}{
		{"fits in one", "Lee ran. Tee hid.", 200, []Chunk{{Text: "Lee ran. Tee hid.", FirstWord: 0, LastWord: 3}}},
		{"breaks between sentences", "Lee ran. Tee hid.", 10, []Chunk{
			{Text: "Lee ran.", FirstWord: 0, LastWord: 1},
			{Text: "Tee hid.", FirstWord: 2, LastWord: 3},
		}},
		{"long sentence breaks between words", "One two three four five.", 10, []Chunk{
			{Text: "One two", FirstWord: 0, LastWord: 1},
			{Text: "three four", FirstWord: 2, LastWord: 3},
			{Text: "five.", FirstWord: 4, LastWord: 4},
		}},
		{"whitespace collapses", "Lee\n\n   ran.", 200, []Chunk{{Text: "Lee ran.", FirstWord: 0, LastWord: 1}}},
		{"giant word splits", "Hi " + giant, 10, []Chunk{
			{Text: "Hi", FirstWord: 0, LastWord: 0},
			{Text: giant[:10], FirstWord: 1, LastWord: 1},
			{Text: giant[10:20], FirstWord: 1, LastWord: 1},
			{Text: giant[20:], FirstWord: 1, LastWord: 1},
		}},
		{"empty", "  ", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewScript(tt.text).Chunks(tt.limit)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Chunks() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLongSectionNarratesEveryWord(t *testing.T) {
	require.Greater(t, utf8.RuneCountInString(longStory), MaxClipChars)
	engine := &fakeEngine{}
	p := NewManager(engine, nil).Player("dev-1")

	st, err := p.Start(context.Background(), "story", longStory, "en")
	require.NoError(t, err)
	require.Greater(t, len(st.Clips), 1)
	assert.Equal(t, int32(len(st.Clips)), engine.calls.Load())
	assert.Equal(t, st.Clips[0].URL, st.AudioURL)

	chunks := st.Script.Chunks(MaxClipChars)
	next := 0
	var spoken []string
	for i, c := range st.Clips {
		assert.Equal(t, next, c.FirstWord, "clip %d starts where the previous ended", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(chunks[i].Text), MaxClipChars)
		assert.Equal(t, "/static/audio/"+FileName(chunks[i].Text, "en"), c.URL)
		spoken = append(spoken, chunks[i].Text)
		next = c.LastWord + 1
	}
	assert.Equal(t, len(st.Script.Words), next, "clips cover the whole script")
	assert.Equal(t, st.Script.Text(), strings.Join(spoken, " "))
}

func TestCancelledStartKeepsNarrationEnabled(t *testing.T) {
	engine := &fakeEngine{}
	p := NewManager(engine, nil).Player("dev-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	st, err := p.Start(ctx, "story", "Hello there.", "en")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, st.Disabled)
	assert.Empty(t, st.Notice)

	st, err = p.Start(context.Background(), "story", "Hello there.", "en")
	require.NoError(t, err)
	assert.True(t, st.Playing)
}

func TestPlayerLifecycle(t *testing.T) {
	var finished []string
	m := NewManager(&fakeEngine{}, nil)
	m.OnFinish(func(device, section string) { finished = append(finished, device+"/"+section) })
	p := m.Player("dev-1")

	st, err := p.Start(context.Background(), "story", "Lee ran. Tee hid.", "en")
	require.NoError(t, err)
	assert.True(t, st.Playing)
	assert.Equal(t, Highlight{Sentence: 0, Word: 0}, st.Highlight)
	assert.Contains(t, st.AudioURL, "/static/audio/narration_en_")

	st = p.Advance(3)
	assert.Equal(t, Highlight{Sentence: 1, Word: 3}, st.Highlight)

	st = p.Advance(4)
	assert.False(t, st.Playing)
	assert.Equal(t, noHighlight, st.Highlight)
	assert.Equal(t, []string{"dev-1/story"}, finished)

	// Finishing again is a no-op.
	p.Finish()
	assert.Len(t, finished, 1)
}

func TestStopIsIdempotent(t *testing.T) {
	p := NewManager(&fakeEngine{}, nil).Player("dev-1")

	st := p.Stop()
	assert.False(t, st.Playing)
	assert.Equal(t, noHighlight, st.Highlight)

	_, err := p.Start(context.Background(), "story", "One two three.", "en")
	require.NoError(t, err)
	p.Advance(2)

	for i := 0; i < 3; i++ {
		st = p.Stop()
		assert.False(t, st.Playing)
		assert.Equal(t, noHighlight, st.Highlight)
	}
	// Advancing after stop does not resume.
	assert.False(t, p.Advance(1).Playing)
}

func TestFailureDisablesWithOneNotice(t *testing.T) {
	engine := &fakeEngine{err: errors.New("speech unavailable")}
	p := NewManager(engine, nil).Player("dev-1")

	st, err := p.Start(context.Background(), "story", "Hello there.", "en")
	require.Error(t, err)
	assert.True(t, st.Disabled)
	assert.Equal(t, NoticeUnavailable, st.Notice)

	st, err = p.Start(context.Background(), "story", "Hello there.", "en")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Empty(t, st.Notice, "notice is shown once")
	assert.Equal(t, int32(1), engine.calls.Load(), "disabled player does not retry")

	engine.err = nil
	p.Enable()
	st, err = p.Start(context.Background(), "story", "Hello there.", "en")
	require.NoError(t, err)
	assert.True(t, st.Playing)
}

func TestStartEmptyText(t *testing.T) {
	p := NewManager(&fakeEngine{}, nil).Player("dev-1")
	_, err := p.Start(context.Background(), "story", "  ", "en")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestManagerConcurrentDevices(t *testing.T) {
	m := NewManager(&fakeEngine{}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			device := []string{"a", "b", "c"}[i%3]
			p := m.Player(device)
			p.Start(context.Background(), "s", "Read this now.", "en")
			p.Advance(1)
			p.Stop()
		}(i)
	}
	wg.Wait()
	m.StopAll()
	assert.Same(t, m.Player("a"), m.Player("a"))
}

func TestGoogleTTSCachesFiles(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "es", r.URL.Query().Get("tl"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	g := NewGoogleTTS(dir, nil).WithEndpoint(srv.URL, srv.Client())

	clip, err := g.Synthesize(context.Background(), "Hola   amigo", "es")
	require.NoError(t, err)
	assert.Equal(t, FileName("Hola amigo", "es"), clip.File)

	data, err := os.ReadFile(filepath.Join(dir, clip.File))
	require.NoError(t, err)
	assert.Equal(t, "ID3fake", string(data))

	_, err = g.Synthesize(context.Background(), "Hola amigo", "es")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second request served from cache")

	files, err := g.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{clip.File}, files)

	path, ok := g.Path(clip.File)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, clip.File), path)
	_, ok = g.Path("../secret.mp3")
	assert.False(t, ok)
}

func TestGoogleTTSErrorLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	dir := t.TempDir()
	g := NewGoogleTTS(dir, nil).WithEndpoint(srv.URL, srv.Client())
	_, err := g.Synthesize(context.Background(), "Hello", "en")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGoogleTTSRejectsLongText(t *testing.T) {
	g := NewGoogleTTS(t.TempDir(), nil).WithEndpoint("http://127.0.0.1:0", nil)
	_, err := g.Synthesize(context.Background(), longStory, "en")
	assert.ErrorIs(t, err, ErrTextTooLong)
}

func TestGoogleTTSDownloadOutlivesCaller(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		started <- struct{}{}
		<-release
		w.Write([]byte("ID3late"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	g := NewGoogleTTS(dir, nil).WithEndpoint(srv.URL, srv.Client())

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := g.Synthesize(ctx, "Hello there", "en")
		first <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		_, err := g.Synthesize(context.Background(), "Hello there", "en")
		second <- err
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	select {
	case err := <-second:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting caller never finished")
	}
	assert.Equal(t, int32(1), hits.Load(), "one shared download")
	_, err := os.Stat(filepath.Join(dir, FileName("Hello there", "en")))
	assert.NoError(t, err)
}

func TestFileNameDistinguishesLanguage(t *testing.T) {
	assert.NotEqual(t, FileName("no", "en"), FileName("no", "es"))
	assert.Equal(t, FileName("a  b", "en"), FileName("a b", "en"))
}
