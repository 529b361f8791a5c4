// Package i18n loads translation dictionaries and resolves UI keys with a
// fallback language.
package i18n

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"

	"leetee/internal/logger"
)

//go:embed locales
var embeddedLocales embed.FS

// Bundle loads locales/<lang>/<namespace>.json files and caches them for
// the life of the process. Files in the overlay directory take precedence
// over the embedded ones.
type Bundle struct {
	embedded fs.FS
	overlay  fs.FS
	log      *logger.Logger

	mu    sync.RWMutex
	cache map[string]map[string]string // "lang/ns" -> flattened dictionary

	missingMu sync.Mutex
	missing   map[string]bool // "lang:key"
}

// NewBundle creates a bundle over the embedded locales. overlayDir may be
// empty.
func NewBundle(overlayDir string, log *logger.Logger) *Bundle {
	sub, _ := fs.Sub(embeddedLocales, "locales")
	b := &Bundle{
		embedded: sub,
		log:      logger.OrNop(log).With("component", "i18n"),
		cache:    make(map[string]map[string]string),
		missing:  make(map[string]bool),
	}
	if overlayDir != "" {
		b.overlay = os.DirFS(overlayDir)
	}
	return b
}

// NewBundleFS creates a bundle over an arbitrary filesystem laid out as
// <lang>/<namespace>.json. Used by tests.
func NewBundleFS(fsys fs.FS, log *logger.Logger) *Bundle {
	return &Bundle{
		embedded: fsys,
		log:      logger.OrNop(log).With("component", "i18n"),
		cache:    make(map[string]map[string]string),
		missing:  make(map[string]bool),
	}
}

// Load returns the flattened dictionary for a namespace and language. A
// missing file yields an empty dictionary and fs.ErrNotExist.
func (b *Bundle) Load(namespace, language string) (map[string]string, error) {
	cacheKey := language + "/" + namespace
	b.mu.RLock()
	dict, ok := b.cache[cacheKey]
	b.mu.RUnlock()
	if ok {
		return dict, nil
	}

	name := path.Join(language, namespace+".json")
	raw, err := b.read(name)
	if err != nil {
		return map[string]string{}, err
	}

	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return map[string]string{}, fmt.Errorf("parse %s: %w", name, err)
	}
	dict = make(map[string]string)
	flatten("", tree, dict)

	b.mu.Lock()
	b.cache[cacheKey] = dict
	b.mu.Unlock()
	return dict, nil
}

func (b *Bundle) read(name string) ([]byte, error) {
	if b.overlay != nil {
		raw, err := fs.ReadFile(b.overlay, name)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return fs.ReadFile(b.embedded, name)
}

func flatten(prefix string, tree map[string]any, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			flatten(key, val, out)
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Dictionary merges the given namespaces for a language. Later namespaces
// win on key collisions. Missing files are logged and skipped.
func (b *Bundle) Dictionary(language string, namespaces []string) map[string]string {
	merged := make(map[string]string)
	for _, ns := range namespaces {
		dict, err := b.Load(ns, language)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				b.log.Debug("translation file missing", "language", language, "namespace", ns)
			} else {
				b.log.Warn("translation file unreadable", "language", language, "namespace", ns, "error", err)
			}
			continue
		}
		for k, v := range dict {
			merged[k] = v
		}
	}
	return merged
}

// Languages lists the language directories available.
func (b *Bundle) Languages() []string {
	seen := map[string]bool{}
	for _, fsys := range []fs.FS{b.embedded, b.overlay} {
		if fsys == nil {
			continue
		}
		entries, err := fs.ReadDir(fsys, ".")
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				seen[e.Name()] = true
			}
		}
	}
	langs := make([]string, 0, len(seen))
	for l := range seen {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// noteMissing records a key absent from a language and reports whether this
// is the first time it was seen.
func (b *Bundle) noteMissing(language, key string) bool {
	b.missingMu.Lock()
	defer b.missingMu.Unlock()
	k := language + ":" + key
	if b.missing[k] {
		return false
	}
	b.missing[k] = true
	return true
}

// Missing returns every "lang:key" that failed to resolve in its active
// language since startup.
func (b *Bundle) Missing() []string {
	b.missingMu.Lock()
	defer b.missingMu.Unlock()
	out := make([]string, 0, len(b.missing))
	for k := range b.missing {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
