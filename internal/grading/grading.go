// Package grading holds the pure correctness rules for every activity kind.
package grading

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Verdict is the outcome of grading a response.
type Verdict string

const (
	Correct   Verdict = "correct"
	Incorrect Verdict = "incorrect"
	// Pending means the response is not ready to be evaluated, e.g. a
	// match activity with items still unplaced.
	Pending Verdict = "pending"
)

// MultipleChoice is correct when the selected option is the designated one.
func MultipleChoice(selected, correct string) Verdict {
	if selected != "" && selected == correct {
		return Correct
	}
	return Incorrect
}

// MultiSelect is correct only when the selected set equals the correct set.
func MultiSelect(selected, correct []string) Verdict {
	want := toSet(correct)
	got := toSet(selected)
	if len(want) == 0 || len(got) != len(want) {
		return Incorrect
	}
	for id := range got {
		if !want[id] {
			return Incorrect
		}
	}
	return Correct
}

// Match grades a drag/click match. placements maps item ID to target ID;
// answers maps item ID to its designated target. Evaluation waits until
// every item is placed.
func Match(placements, answers map[string]string) Verdict {
	if len(answers) == 0 {
		return Incorrect
	}
	for item := range answers {
		if placements[item] == "" {
			return Pending
		}
	}
	for item, target := range answers {
		if placements[item] != target {
			return Incorrect
		}
	}
	return Correct
}

// Sequence is correct only when order matches exactly, position by position.
func Sequence(order, correct []string) Verdict {
	if len(correct) == 0 || !slices.Equal(order, correct) {
		return Incorrect
	}
	return Correct
}

// Cloze is correct when the chosen index is the designated one.
func Cloze(selected, answer int) Verdict {
	if selected >= 0 && selected == answer {
		return Correct
	}
	return Incorrect
}

// DefaultMinLength is the short-response length floor when content sets none.
const DefaultMinLength = 12

// ShortResponse is correct when the trimmed response has at least minLength
// characters and contains every keyword, case-insensitively. A minLength of
// zero or less uses DefaultMinLength.
func ShortResponse(response string, minLength int, keywords []string) Verdict {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	text := strings.TrimSpace(response)
	if utf8.RuneCountInString(text) < minLength {
		return Incorrect
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return Incorrect
		}
	}
	return Correct
}

// Evidence is correct when the highlighted sentence is one of the designated
// evidence sentences.
func Evidence(selected int, evidence []int) Verdict {
	if slices.Contains(evidence, selected) {
		return Correct
	}
	return Incorrect
}

// MissingKeywords lists the keywords absent from response, for hints.
func MissingKeywords(response string, keywords []string) []string {
	lower := strings.ToLower(response)
	var missing []string
	for _, kw := range keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			missing = append(missing, kw)
		}
	}
	return missing
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
