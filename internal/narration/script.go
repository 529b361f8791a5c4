package narration

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Word is one highlightable word of a script.
type Word struct {
	Text     string `json:"text"`
	Sentence int    `json:"sentence"`
}

// Script is narration text split into sentences and words. Word indices run
// across the whole script.
type Script struct {
	Sentences []string `json:"sentences"`
	Words     []Word   `json:"words"`
}

// NewScript segments text. Sentences end at '.', '!' or '?' followed by
// whitespace or the end of the text.
func NewScript(text string) Script {
	var sc Script
	for _, sentence := range splitSentences(text) {
		idx := len(sc.Sentences)
		sc.Sentences = append(sc.Sentences, sentence)
		for _, w := range strings.Fields(sentence) {
			sc.Words = append(sc.Words, Word{Text: w, Sentence: idx})
		}
	}
	return sc
}

func splitSentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	var out []string
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Text is the whole script as one string.
func (s Script) Text() string {
	return strings.Join(s.Sentences, " ")
}

// Empty reports whether there is nothing to read.
func (s Script) Empty() bool {
	return len(s.Words) == 0
}

// Chunk is a run of consecutive words short enough for one clip. FirstWord
// and LastWord are inclusive script word indices.
type Chunk struct {
	Text      string `json:"text"`
	FirstWord int    `json:"firstWord"`
	LastWord  int    `json:"lastWord"`
}

// Chunks packs the script into pieces of at most limit runes. Whole sentences
// are kept together when they fit, otherwise a sentence breaks between
// words. A single word longer than limit is split mid-word, and each piece
// keeps that word's index.
func (s Script) Chunks(limit int) []Chunk {
	var (
		out   []Chunk
		cur   []string
		first = -1
		last  = -1
		size  int
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, Chunk{Text: strings.Join(cur, " "), FirstWord: first, LastWord: last})
		}
		cur, first, last, size = nil, -1, -1, 0
	}
	add := func(text string, from, to int) {
		n := utf8.RuneCountInString(text)
		if size > 0 && size+1+n > limit {
			flush()
		}
		if first < 0 {
			first = from
		} else {
			size++
		}
		cur = append(cur, text)
		last = to
		size += n
	}

	w := 0
	for i := range s.Sentences {
		n := 0
		for w+n < len(s.Words) && s.Words[w+n].Sentence == i {
			n++
		}
		words := make([]string, n)
		for j := range words {
			words[j] = s.Words[w+j].Text
		}
		if sentence := strings.Join(words, " "); utf8.RuneCountInString(sentence) <= limit {
			add(sentence, w, w+n-1)
			w += n
			continue
		}
		for ; n > 0; n, w = n-1, w+1 {
			word := []rune(s.Words[w].Text)
			for len(word) > limit {
				add(string(word[:limit]), w, w)
				word = word[limit:]
			}
			add(string(word), w, w)
		}
	}
	flush()
	return out
}
