package content

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"leetee/internal/models"
)

//go:embed episodes
var embeddedEpisodes embed.FS

// Document is a raw episode file.
type Document struct {
	Name string
	Data []byte
}

// Source yields episode documents.
type Source interface {
	Name() string
	Documents(ctx context.Context) ([]Document, error)
}

// FSSource reads every .json, .yaml and .yml file at the root of a filesystem.
type FSSource struct {
	label string
	fsys  fs.FS
}

// Embedded returns the episodes compiled into the binary.
func Embedded() *FSSource {
	sub, _ := fs.Sub(embeddedEpisodes, "episodes")
	return &FSSource{label: "embedded", fsys: sub}
}

// NewFSSource wraps fsys; label is used in logs.
func NewFSSource(label string, fsys fs.FS) *FSSource {
	return &FSSource{label: label, fsys: fsys}
}

func (s *FSSource) Name() string { return s.label }

func (s *FSSource) Documents(_ context.Context) ([]Document, error) {
	entries, err := fs.ReadDir(s.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.label, err)
	}
	var docs []Document
	for _, e := range entries {
		if e.IsDir() || !isEpisodeFile(e.Name()) {
			continue
		}
		data, err := fs.ReadFile(s.fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", s.label, e.Name(), err)
		}
		docs = append(docs, Document{Name: e.Name(), Data: data})
	}
	return docs, nil
}

func isEpisodeFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return name != "index.json"
	}
	return false
}

const maxConcurrentFetches = 4

// HTTPSource fetches <base>/index.json, a JSON array of file names, and then
// each listed file. Any failed file fails the whole fetch.
type HTTPSource struct {
	base   string
	client *http.Client
}

func NewHTTPSource(base string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSource{base: strings.TrimRight(base, "/"), client: client}
}

func (s *HTTPSource) Name() string { return s.base }

func (s *HTTPSource) Documents(ctx context.Context) ([]Document, error) {
	raw, err := s.get(ctx, "index.json")
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("parse %s/index.json: %w", s.base, err)
	}
	names = slices.DeleteFunc(names, func(n string) bool { return !isEpisodeFile(n) })
	docs := make([]Document, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, name := range names {
		g.Go(func() error {
			data, err := s.get(gctx, name)
			if err != nil {
				return err
			}
			docs[i] = Document{Name: name, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *HTTPSource) get(ctx context.Context, name string) ([]byte, error) {
	u := s.base + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", u, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status code: %d", u, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	return data, nil
}

// Parse decodes an episode document by file extension.
func Parse(doc Document) (*models.Episode, error) {
	var ep models.Episode
	switch strings.ToLower(path.Ext(doc.Name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(doc.Data, &ep); err != nil {
			return nil, fmt.Errorf("parse %s: %w", doc.Name, err)
		}
	default:
		if err := json.Unmarshal(doc.Data, &ep); err != nil {
			return nil, fmt.Errorf("parse %s: %w", doc.Name, err)
		}
	}
	return &ep, nil
}
