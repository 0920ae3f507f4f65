package loader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestChunker_ShortTextIsOneChunk(t *testing.T) {
	c := NewChunker(500, 50)
	chunks := c.Split("# Neuralace\n\nA flexible lattice.\n\n\n\nSecond paragraph.")
	assert.Equal(t, []string{"# Neuralace\n\nA flexible lattice.\n\nSecond paragraph."}, chunks)
}

func TestChunker_EmptyText(t *testing.T) {
	assert.Empty(t, NewChunker(500, 50).Split(""))
	assert.Empty(t, NewChunker(500, 50).Split("\n\n  \n\n"))
}

func TestChunker_ParagraphBoundariesWithOverlap(t *testing.T) {
	c := NewChunker(30, 5)
	chunks := c.Split("aaaaaaaaaa bbbbbbbbbb\n\ncccccccccc dddddddddd")

	require.Len(t, chunks, 2)
	assert.Equal(t, "aaaaaaaaaa bbbbbbbbbb", chunks[0])
	assert.Equal(t, "bbbbb\n\ncccccccccc dddddddddd", chunks[1], "last 5 runes carry over")
}

func TestChunker_LongParagraphSplitsOnWords(t *testing.T) {
	c := NewChunker(20, 0)
	chunks := c.Split("alpha beta gamma delta epsilon zeta eta theta")

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch), 20, ch)
	}
	assert.Equal(t, "alpha beta gamma delta epsilon zeta eta theta", strings.Join(chunks, " "))
}

func TestNewChunker_Defaults(t *testing.T) {
	assert.Equal(t, Chunker{Size: DefaultChunkSize, Overlap: 0}, NewChunker(0, -1))
	assert.Equal(t, Chunker{Size: 10, Overlap: 0}, NewChunker(10, 10))
}

func TestChunker_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		size := rapid.IntRange(20, 200).Draw(t, "size")
		overlap := rapid.IntRange(0, size/4).Draw(t, "overlap")
		words := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 1, 120).Draw(t, "words")
		breaks := rapid.SliceOfN(rapid.SampledFrom([]string{" ", " ", " ", "\n\n", "\n\n\n"}), len(words), len(words)).Draw(t, "breaks")

		var b strings.Builder
		for i, w := range words {
			b.WriteString(w)
			b.WriteString(breaks[i])
		}
		chunks := NewChunker(size, overlap).Split(b.String())

		joined := strings.Join(chunks, " ")
		for _, w := range words {
			if !strings.Contains(joined, w) {
				t.Fatalf("word %q lost", w)
			}
		}
		for _, ch := range chunks {
			if n := len(ch); n > size+overlap+2 {
				t.Fatalf("chunk of %d runes exceeds bound %d", n, size+overlap+2)
			}
			if ch != strings.TrimSpace(ch) || ch == "" {
				t.Fatalf("chunk %q not trimmed", ch)
			}
		}
	})
}
