package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultipleChoice(t *testing.T) {
	assert.Equal(t, Correct, MultipleChoice("b", "b"))
	assert.Equal(t, Incorrect, MultipleChoice("a", "b"))
	assert.Equal(t, Incorrect, MultipleChoice("", ""))
}

func TestMultiSelect(t *testing.T) {
	tests := []struct {
		name     string
		selected []string
		want     Verdict
	}{
		{"exact set", []string{"a", "b"}, Correct},
		{"exact set any order", []string{"b", "a"}, Correct},
		{"superset", []string{"a", "b", "c"}, Incorrect},
		{"subset", []string{"a"}, Incorrect},
		{"none", nil, Incorrect},
		{"duplicates of correct", []string{"a", "a", "b"}, Correct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MultiSelect(tt.selected, []string{"a", "b"}))
		})
	}
}

func TestMatch(t *testing.T) {
	answers := map[string]string{"cat": "animals", "rose": "plants", "oak": "plants"}
	tests := []struct {
		name       string
		placements map[string]string
		want       Verdict
	}{
		{"all correct", map[string]string{"cat": "animals", "rose": "plants", "oak": "plants"}, Correct},
		{"one unplaced", map[string]string{"cat": "animals", "rose": "plants"}, Pending},
		{"nothing placed", map[string]string{}, Pending},
		{"one wrong", map[string]string{"cat": "plants", "rose": "plants", "oak": "plants"}, Incorrect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.placements, answers))
		})
	}
}

func TestSequence(t *testing.T) {
	correct := []string{"x", "y", "z"}
	assert.Equal(t, Correct, Sequence([]string{"x", "y", "z"}, correct))
	assert.Equal(t, Incorrect, Sequence([]string{"x", "z", "y"}, correct))
	assert.Equal(t, Incorrect, Sequence([]string{"x", "y"}, correct))
}

func TestCloze(t *testing.T) {
	assert.Equal(t, Correct, Cloze(2, 2))
	assert.Equal(t, Correct, Cloze(0, 0))
	assert.Equal(t, Incorrect, Cloze(1, 2))
	assert.Equal(t, Incorrect, Cloze(-1, -1))
}

func TestShortResponse(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		minLength int
		keywords  []string
		want      Verdict
	}{
		{"no evidence keyword", "I have proof", 12, []string{"evidence"}, Incorrect},
		{"long enough with keyword", "I found evidence for this", 12, []string{"evidence"}, Correct},
		{"keyword case-insensitive", "The EVIDENCE is on page two", 12, []string{"evidence"}, Correct},
		{"long but missing keyword", "I think the kite flew away", 12, []string{"evidence"}, Incorrect},
		{"whitespace does not count", "   evidence     ", 12, []string{"evidence"}, Incorrect},
		{"default min length", "evidence here!", 0, []string{"evidence"}, Correct},
		{"all keywords required", "Lee found evidence", 5, []string{"evidence", "kite"}, Incorrect},
		{"no keywords", "Twelve chars", 12, nil, Correct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShortResponse(tt.response, tt.minLength, tt.keywords))
		})
	}
}

func TestEvidence(t *testing.T) {
	assert.Equal(t, Correct, Evidence(2, []int{1, 2}))
	assert.Equal(t, Incorrect, Evidence(0, []int{1, 2}))
	assert.Equal(t, Incorrect, Evidence(0, nil))
}

func TestMissingKeywords(t *testing.T) {
	assert.Equal(t, []string{"kite"}, MissingKeywords("Evidence!", []string{"evidence", "kite"}))
	assert.Empty(t, MissingKeywords("kite evidence", []string{"evidence", "kite"}))
}
