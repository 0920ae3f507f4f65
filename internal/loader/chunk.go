package loader

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

var paragraphBreak = regexp.MustCompile(`\n\n+`)

// Chunker splits long text into overlapping pieces, preferring paragraph
// boundaries. Sizes are counted in runes.
type Chunker struct {
	Size    int
	Overlap int
}

func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Split packs paragraphs into chunks of about Size runes. When a chunk is
// closed the last Overlap runes carry over into the next one. A paragraph
// longer than Size is broken on word boundaries.
func (c Chunker) Split(text string) []string {
	var (
		chunks  []string
		current string
	)
	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if runeLen(current)+runeLen(para)+2 > c.Size {
			if current != "" {
				chunks = append(chunks, strings.TrimSpace(current))
				if c.Overlap > 0 && runeLen(current) > c.Overlap {
					current = lastRunes(current, c.Overlap)
				} else {
					current = ""
				}
			}
			if runeLen(para) > c.Size {
				current, chunks = c.splitWords(current, para, chunks)
				continue
			}
		}
		if current != "" {
			current += "\n\n" + para
		} else {
			current = para
		}
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

func (c Chunker) splitWords(current, para string, chunks []string) (string, []string) {
	for _, word := range strings.Fields(para) {
		if runeLen(current)+runeLen(word)+1 > c.Size && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			if c.Overlap > 0 {
				current = lastRunes(current, c.Overlap)
			} else {
				current = ""
			}
		}
		if current != "" {
			current += " " + word
		} else {
			current = word
		}
	}
	return current, chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func lastRunes(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}
