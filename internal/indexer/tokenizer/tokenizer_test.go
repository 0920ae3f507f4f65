package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_LowercasesAndStripsPunctuation(t *testing.T) {
	tok := Default()

	terms := tok.Terms("FDA Breakthrough-Device, pathway (510(k))!")

	assert.Equal(t, []string{"fda", "breakthrough", "device", "pathway", "510"}, terms)
}

func TestTokenize_EmptyInput(t *testing.T) {
	tok := Default()

	for _, input := range []string{"", "   ", "\t\n", "!!! --- ???", "a I"} {
		t.Run(input, func(t *testing.T) {
			tokens := tok.Tokenize(input)
			require.NotNil(t, tokens)
			assert.Empty(t, tokens)
		})
	}
}

func TestTokenize_StopWords(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		input  string
		expect []string
	}{
		{
			name:   "removed by default",
			opts:   DefaultOptions(),
			input:  "the design of a flexible substrate",
			expect: []string{"design", "flexible", "substrate"},
		},
		{
			name:   "kept when disabled",
			opts:   Options{RemoveStopWords: false},
			input:  "the design of a flexible substrate",
			expect: []string{"the", "design", "of", "flexible", "substrate"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, New(tt.opts).Terms(tt.input))
		})
	}
}

func TestTokenize_PositionsAreDense(t *testing.T) {
	tokens := Default().Tokenize("the polyimide and the parylene substrate")

	require.Len(t, tokens, 3)
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
}

func TestTokenize_Stemmers(t *testing.T) {
	tests := []struct {
		stemmer Stemmer
		input   string
		expect  []string
	}{
		{StemNone, "electrodes recording", []string{"electrodes", "recording"}},
		{StemSuffix, "electrodes recording implants", []string{"electrod", "record", "implant"}},
		{StemPorter, "electrodes recording", []string{"electrod", "record"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.stemmer), func(t *testing.T) {
			tok := New(Options{RemoveStopWords: true, Stemmer: tt.stemmer})
			assert.Equal(t, tt.expect, tok.Terms(tt.input))
		})
	}
}

func TestTokenize_Deterministic(t *testing.T) {
	tok := New(Options{RemoveStopWords: true, Stemmer: StemSuffix})
	text := "Chronic stability of Utah arrays versus thin-film electrodes in 2024"

	first := tok.Terms(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, tok.Terms(text))
	}
}

func TestParseStemmer(t *testing.T) {
	s, err := ParseStemmer("")
	require.NoError(t, err)
	assert.Equal(t, StemNone, s)

	s, err = ParseStemmer(" Porter ")
	require.NoError(t, err)
	assert.Equal(t, StemPorter, s)

	_, err = ParseStemmer("snowball")
	assert.Error(t, err)
}

func TestFingerprint_DiffersByOptions(t *testing.T) {
	a := New(DefaultOptions())
	b := New(Options{RemoveStopWords: true, Stemmer: StemPorter})

	assert.Equal(t, a.Fingerprint(), Default().Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
