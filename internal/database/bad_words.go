package database

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// DefaultBadWordsURL is the community word list used when no override is configured.
const DefaultBadWordsURL = "https://raw.githubusercontent.com/LDNOOBW/List-of-Dirty-Naughty-Obscene-and-Otherwise-Bad-Words/refs/heads/master/en"

// SeedBadWords downloads a newline-separated word list and loads it into
// bad_words. It is a no-op when the table is already populated. Returns the
// number of words added.
func (db *DB) SeedBadWords(ctx context.Context, url string) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bad_words").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to check bad words count: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	if url == "" {
		url = DefaultBadWordsURL
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build bad words request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download bad words list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bad status code from bad words URL: %d", resp.StatusCode)
	}

	return db.LoadBadWords(ctx, resp.Body)
}

// LoadBadWords inserts one word per line from r, skipping blanks and duplicates.
func (db *DB) LoadBadWords(ctx context.Context, r io.Reader) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := db.Dialect.RewriteQuery(db.Dialect.InsertIgnoreQuery("bad_words", "word"))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	added := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if word == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, word)
		if err != nil {
			return added, fmt.Errorf("failed to insert bad word: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := scanner.Err(); err != nil {
		return added, fmt.Errorf("error reading bad words: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return added, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return added, nil
}

// IsBadWord checks if a word is in the bad words list
func (db *DB) IsBadWord(ctx context.Context, word string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bad_words WHERE word = ?", strings.TrimSpace(strings.ToLower(word))).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check bad word: %w", err)
	}
	return count > 0, nil
}

// FindBadWords returns the blocked words contained in free text, in order of
// first appearance.
func (db *DB) FindBadWords(ctx context.Context, text string) ([]string, error) {
	var found []string
	seen := make(map[string]bool)
	for _, word := range Words(text) {
		if seen[word] {
			continue
		}
		seen[word] = true
		bad, err := db.IsBadWord(ctx, word)
		if err != nil {
			return nil, err
		}
		if bad {
			found = append(found, word)
		}
	}
	return found, nil
}

// Words lowercases text and splits it on anything that is not a letter,
// digit or apostrophe.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
