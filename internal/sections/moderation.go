package sections

import (
	"context"
	"strings"

	"leetee/internal/database"
)

// WordFilter finds blocked words in free text. *database.DB implements it
// over the bad_words table.
type WordFilter interface {
	FindBadWords(ctx context.Context, text string) ([]string, error)
}

var _ WordFilter = (*database.DB)(nil)

// StaticFilter is an in-memory WordFilter, used when no database is configured.
type StaticFilter map[string]bool

// NewStaticFilter builds a filter from a word list.
func NewStaticFilter(words ...string) StaticFilter {
	f := make(StaticFilter, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			f[w] = true
		}
	}
	return f
}

func (f StaticFilter) FindBadWords(_ context.Context, text string) ([]string, error) {
	var found []string
	seen := map[string]bool{}
	for _, w := range database.Words(text) {
		if f[w] && !seen[w] {
			seen[w] = true
			found = append(found, w)
		}
	}
	return found, nil
}
