// Package tokenizer provides text tokenisation for the research index.
// It lower-cases input, splits on non-alphanumeric boundaries, drops short
// tokens and stop-words, and optionally applies a stemmer. The same
// Tokenizer must be used at build time and at query time.
package tokenizer

import (
	"fmt"
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// Stemmer selects the stemming strategy applied to each surviving token.
type Stemmer string

const (
	StemNone   Stemmer = "none"
	StemSuffix Stemmer = "suffix"
	StemPorter Stemmer = "porter"
)

// ParseStemmer converts a config string into a Stemmer. The empty string
// maps to StemNone.
func ParseStemmer(s string) (Stemmer, error) {
	switch Stemmer(strings.ToLower(strings.TrimSpace(s))) {
	case "", StemNone:
		return StemNone, nil
	case StemSuffix:
		return StemSuffix, nil
	case StemPorter:
		return StemPorter, nil
	default:
		return "", fmt.Errorf("unknown stemmer %q (valid: none, suffix, porter)", s)
	}
}

var defaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
	"to", "was", "were", "will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where", "who", "which", "why", "how",
	"all", "each", "every", "both", "few", "more", "most", "other",
	"some", "such", "no", "nor", "not", "only", "own", "same", "so",
	"than", "too", "very", "can", "just", "should", "now",
}

// Options controls normalisation.
type Options struct {
	RemoveStopWords bool
	Stemmer         Stemmer
	// MinLength drops tokens shorter than this many bytes. Zero means 2.
	MinLength int
}

// DefaultOptions matches the navigator's historical behaviour: stop-words
// removed, no stemming, single-character tokens dropped.
func DefaultOptions() Options {
	return Options{
		RemoveStopWords: true,
		Stemmer:         StemNone,
		MinLength:       2,
	}
}

// Token represents a single normalised term and its position in the
// normalised token stream.
type Token struct {
	Term     string
	Position int
}

// Tokenizer is immutable after construction and safe for concurrent use.
type Tokenizer struct {
	opts      Options
	stopWords map[string]struct{}
}

// New builds a Tokenizer from opts.
func New(opts Options) *Tokenizer {
	if opts.MinLength <= 0 {
		opts.MinLength = 2
	}
	if opts.Stemmer == "" {
		opts.Stemmer = StemNone
	}
	t := &Tokenizer{opts: opts}
	if opts.RemoveStopWords {
		t.stopWords = make(map[string]struct{}, len(defaultStopWords))
		for _, w := range defaultStopWords {
			t.stopWords[w] = struct{}{}
		}
	}
	return t
}

// Default returns a Tokenizer built from DefaultOptions.
func Default() *Tokenizer {
	return New(DefaultOptions())
}

// Options returns the options the tokenizer was built with.
func (t *Tokenizer) Options() Options {
	return t.opts
}

// Fingerprint identifies the normalisation rules. Two tokenizers with the
// same fingerprint produce identical output for every input.
func (t *Tokenizer) Fingerprint() string {
	return fmt.Sprintf("stop=%t;stem=%s;min=%d", t.opts.RemoveStopWords, t.opts.Stemmer, t.opts.MinLength)
}

// Tokenize breaks text into a slice of normalised Tokens. Empty or
// whitespace-only input yields an empty slice.
func (t *Tokenizer) Tokenize(text string) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if len(word) < t.opts.MinLength {
			continue
		}
		if _, isStop := t.stopWords[word]; isStop {
			continue
		}
		term := t.stem(word)
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms is Tokenize without positions.
func (t *Tokenizer) Terms(text string) []string {
	tokens := t.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

func (t *Tokenizer) stem(word string) string {
	switch t.opts.Stemmer {
	case StemSuffix:
		return suffixStem(word)
	case StemPorter:
		return porterstemmer.StemString(word)
	default:
		return word
	}
}
