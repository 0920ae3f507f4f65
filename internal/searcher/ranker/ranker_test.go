package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
)

type fakeStats struct {
	n   int
	avg float64
	df  map[string]int
}

func (f fakeStats) TotalDocs() int { return f.n }

func (f fakeStats) AvgDocLength() float64 { return f.avg }

func (f fakeStats) DocFreq(term string) int { return f.df[term] }

// corpusStats mirrors the three-document regulatory/electrode corpus:
// D1 has 4 tokens, D2 has 4, D3 has 5; "flexible" occurs in D1 and D3.
var corpusStats = fakeStats{n: 3, avg: 13.0 / 3.0, df: map[string]int{"flexible": 2, "electrode": 1, "fda": 1}}

func mustBM25(t *testing.T, k1, b float64) *BM25 {
	t.Helper()
	cfg, err := NewScoreConfig(k1, b)
	require.NoError(t, err)
	s, err := NewBM25(cfg)
	require.NoError(t, err)
	return s
}

func TestNewScoreConfig(t *testing.T) {
	tests := []struct {
		name    string
		k1, b   float64
		wantErr bool
	}{
		{"defaults", 1.5, 0.75, false},
		{"no length normalisation", 1.2, 0, false},
		{"full length normalisation", 2.0, 1, false},
		{"zero k1", 0, 0.75, true},
		{"negative k1", -1, 0.75, true},
		{"infinite k1", math.Inf(1), 0.75, true},
		{"nan k1", math.NaN(), 0.75, true},
		{"b below range", 1.5, -0.01, true},
		{"b above range", 1.5, 1.01, true},
		{"nan b", 1.5, math.NaN(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewScoreConfig(tt.k1, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.k1, cfg.K1())
			assert.Equal(t, tt.b, cfg.B())
		})
	}
}

func TestNewBM25_RejectsZeroConfig(t *testing.T) {
	_, err := NewBM25(ScoreConfig{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestDefaultScoreConfig(t *testing.T) {
	cfg := DefaultScoreConfig()
	assert.Equal(t, 1.5, cfg.K1())
	assert.Equal(t, 0.75, cfg.B())
}

func TestBM25_Fixture(t *testing.T) {
	s := mustBM25(t, 1.5, 0.75)
	query := []string{"flexible", "electrode"}

	d1 := s.Score(query, map[string]int{"flexible": 1, "polyimide": 1, "substrate": 1, "design": 1}, 4, corpusStats)
	d2 := s.Score(query, map[string]int{"fda": 1, "breakthrough": 1, "device": 1, "pathway": 1}, 4, corpusStats)
	d3 := s.Score(query, map[string]int{"flexible": 1, "thin": 1, "film": 1, "electrode": 1, "biocompatibility": 1}, 5, corpusStats)

	assert.InDelta(t, 0.4868563490194871, d1, 1e-9)
	assert.Equal(t, 0.0, d2)
	assert.InDelta(t, 1.3568940625429500, d3, 1e-9)
	assert.Greater(t, d3, d1)
}

func TestIDF(t *testing.T) {
	assert.InDelta(t, 0.9808292530117263, IDF(3, 1), 1e-12)
	assert.InDelta(t, 0.47000362924573563, IDF(3, 2), 1e-12)
	assert.Equal(t, 0.0, IDF(3, 0), "absent terms carry no weight")
	assert.Equal(t, 0.0, IDF(0, 0))
	assert.GreaterOrEqual(t, IDF(3, 3), 0.0)
	assert.Equal(t, 0.0, IDF(2, 10), "idf is floored at zero")
}

func TestBM25_ZeroAverageLength(t *testing.T) {
	s := mustBM25(t, 1.5, 0.75)
	stats := fakeStats{n: 1, avg: 0, df: map[string]int{"x": 1}}
	assert.Equal(t, 0.0, s.Score([]string{"x"}, map[string]int{"x": 1}, 0, stats))
}

func TestBM25_NoSharedTermsScoresZero(t *testing.T) {
	s := mustBM25(t, 1.5, 0.75)
	rapid.Check(t, func(t *rapid.T) {
		tf := rapid.IntRange(1, 50).Draw(t, "tf")
		docLen := rapid.IntRange(1, 200).Draw(t, "len")
		got := s.Score([]string{"neuralace", "fda"}, map[string]int{"cortex": tf}, docLen, corpusStats)
		assert.Equal(t, 0.0, got)
	})
}

func TestBM25_TermFrequencySaturates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k1 := rapid.Float64Range(0.1, 3).Draw(t, "k1")
		b := rapid.Float64Range(0, 1).Draw(t, "b")
		docLen := rapid.IntRange(1, 500).Draw(t, "len")
		s := &BM25{cfg: ScoreConfig{k1: k1, b: b}}

		prev := 0.0
		prevGain := math.Inf(1)
		for tf := 1; tf <= 30; tf++ {
			cur := s.Contribution(tf, docLen, 1, corpusStats)
			gain := cur - prev
			assert.GreaterOrEqual(t, gain, 0.0, "score must not decrease with tf")
			assert.LessOrEqual(t, gain, prevGain+1e-12, "gains must diminish")
			prev, prevGain = cur, gain
		}
	})
}

func TestBM25_ShorterDocumentRanksAtLeastAsHigh(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := rapid.Float64Range(0.01, 1).Draw(t, "b")
		tf := rapid.IntRange(1, 20).Draw(t, "tf")
		short := rapid.IntRange(tf, 100).Draw(t, "short")
		long := rapid.IntRange(short, 400).Draw(t, "long")
		s := &BM25{cfg: ScoreConfig{k1: DefaultK1, b: b}}

		tfs := map[string]int{"electrode": tf}
		assert.GreaterOrEqual(t,
			s.Score([]string{"electrode"}, tfs, short, corpusStats),
			s.Score([]string{"electrode"}, tfs, long, corpusStats))
	})
}

func TestBM25_ZeroBIgnoresLength(t *testing.T) {
	s := mustBM25(t, 1.5, 0)
	tfs := map[string]int{"electrode": 2}
	assert.Equal(t,
		s.Score([]string{"electrode"}, tfs, 3, corpusStats),
		s.Score([]string{"electrode"}, tfs, 300, corpusStats))
}

func TestTFIDF(t *testing.T) {
	s := NewTFIDF()
	assert.Equal(t, "tfidf", s.Name())
	assert.Equal(t, 0.0, s.Score([]string{"fda"}, map[string]int{"cortex": 1}, 4, corpusStats))

	once := s.Score([]string{"electrode"}, map[string]int{"electrode": 1}, 5, corpusStats)
	twice := s.Score([]string{"electrode"}, map[string]int{"electrode": 2}, 5, corpusStats)
	assert.InDelta(t, math.Log(4), once, 1e-12)
	assert.Greater(t, twice, once)
}

func TestNew(t *testing.T) {
	s, err := New("", DefaultScoreConfig())
	require.NoError(t, err)
	assert.Equal(t, "bm25", s.Name())

	s, err = New("tfidf", DefaultScoreConfig())
	require.NoError(t, err)
	assert.Equal(t, "tfidf", s.Name())

	_, err = New("dense", DefaultScoreConfig())
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestFingerprint(t *testing.T) {
	bm25, err := NewBM25(DefaultScoreConfig())
	require.NoError(t, err)
	assert.Equal(t, "bm25(k1=1.5,b=0.75)", Fingerprint(bm25))

	cfg, err := NewScoreConfig(1.2, 0.5)
	require.NoError(t, err)
	tuned, err := NewBM25(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, Fingerprint(bm25), Fingerprint(tuned))

	assert.Equal(t, "tfidf", Fingerprint(NewTFIDF()))
	assert.Empty(t, Fingerprint(nil))
}

func TestSort_TieBreaksOnDocID(t *testing.T) {
	docs := []ScoredDoc{
		{DocID: "doc_3", Score: 1},
		{DocID: "doc_1", Score: 2},
		{DocID: "doc_2", Score: 1},
		{DocID: "doc_0", Score: 0},
	}
	Sort(docs)
	assert.Equal(t, []ScoredDoc{
		{DocID: "doc_1", Score: 2},
		{DocID: "doc_2", Score: 1},
		{DocID: "doc_3", Score: 1},
		{DocID: "doc_0", Score: 0},
	}, docs)
}
