package i18n

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/net/html"

	"leetee/internal/logger"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"en/common.json": {Data: []byte(`{"greeting":"Hello","nav":{"next":"Next","prev":"Back"},"only":"English only","count":"{0} of {1}"}`)},
		"es/common.json": {Data: []byte(`{"greeting":"Hola","nav":{"next":"Siguiente"}}`)},
		"fr/common.json": {Data: []byte(`{not json`)},
	}
}

func TestFallbackChain(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := NewBundleFS(testFS(), logger.FromZap(zap.New(core)))
	r := b.Resolver("es", "en", []string{"common"})

	assert.Equal(t, "Hola", r.Resolve("greeting"))
	assert.Equal(t, "Siguiente", r.Resolve("nav.next"))
	assert.Equal(t, "English only", r.Resolve("only"), "fallback language")
	assert.Equal(t, "no.such.key", r.Resolve("no.such.key"), "raw key")

	// Logged once per key regardless of how often it is resolved.
	r.Resolve("only")
	r.Resolve("only")
	assert.Equal(t, 2, logs.FilterMessage("missing translation").Len())
	assert.Equal(t, []string{"es:no.such.key", "es:only"}, b.Missing())
}

func TestSameActiveAndFallback(t *testing.T) {
	b := NewBundleFS(testFS(), nil)
	r := b.Resolver("en", "en", []string{"common"})
	assert.Equal(t, "Back", r.Resolve("nav.prev"))
	assert.Equal(t, "missing", r.Resolve("missing"))
}

func TestUnreadableLanguageFallsBack(t *testing.T) {
	b := NewBundleFS(testFS(), nil)
	r := b.Resolver("fr", "en", []string{"common", "absent"})
	assert.Equal(t, "Hello", r.Resolve("greeting"))
}

func TestFormat(t *testing.T) {
	r := NewBundleFS(testFS(), nil).Resolver("en", "en", []string{"common"})
	assert.Equal(t, "3 of 8", r.Format("count", 3, 8))
}

func TestApplyToFragment(t *testing.T) {
	r := NewBundleFS(testFS(), nil).Resolver("es", "en", []string{"common"})

	out, err := r.ApplyToFragment(`<nav><button data-i18n="nav.next">Next <b>now</b></button><input data-i18n-placeholder="greeting"><span>keep</span></nav>`)
	require.NoError(t, err)
	assert.Contains(t, out, `<button data-i18n="nav.next">Siguiente</button>`)
	assert.Contains(t, out, `placeholder="Hola"`)
	assert.Contains(t, out, `<span>keep</span>`)
}

func TestApplyToDocumentReapplies(t *testing.T) {
	b := NewBundleFS(testFS(), nil)
	doc := `<html><body><h1 data-i18n="greeting">Hello</h1></body></html>`

	var es strings.Builder
	require.NoError(t, b.Resolver("es", "en", []string{"common"}).ApplyToDocument(strings.NewReader(doc), &es))
	assert.Contains(t, es.String(), ">Hola</h1>")

	// Switching language re-applies to already translated output.
	var en strings.Builder
	require.NoError(t, b.Resolver("en", "en", []string{"common"}).ApplyToDocument(strings.NewReader(es.String()), &en))
	assert.Contains(t, en.String(), ">Hello</h1>")
}

func TestApplyToHTMLWalksWholeTree(t *testing.T) {
	r := NewBundleFS(testFS(), nil).Resolver("es", "en", []string{"common"})
	doc, err := html.Parse(strings.NewReader(`<div><p><em data-i18n="greeting">x</em></p><p data-i18n="only">y</p></div>`))
	require.NoError(t, err)
	r.ApplyToHTML(doc)

	var sb strings.Builder
	require.NoError(t, html.Render(&sb, doc))
	assert.Contains(t, sb.String(), ">Hola</em>")
	assert.Contains(t, sb.String(), ">English only</p>")
}

func TestNegotiate(t *testing.T) {
	supported := []string{"en", "es"}
	tests := []struct {
		header string
		want   string
	}{
		{"es-MX,es;q=0.9,en;q=0.8", "es"},
		{"en-GB", "en"},
		{"de-DE", "en"},
		{"", "en"},
		{"!!!", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, Negotiate(tt.header, supported, "en"))
		})
	}
}

func TestEmbeddedLocales(t *testing.T) {
	b := NewBundle("", nil)
	assert.Equal(t, []string{"en", "es"}, b.Languages())

	r := b.Resolver("es", "en", []string{"common", "episode"})
	assert.Equal(t, "Siguiente", r.Resolve("nav.next"))
	assert.Equal(t, "Watch", r.Resolve("section.video"))
	assert.NotEqual(t, "feedback.correct", r.Resolve("feedback.correct"))
}
