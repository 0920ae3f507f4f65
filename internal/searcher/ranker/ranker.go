package ranker

import (
	"fmt"
	"math"
	"net/http"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
)

const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// StatsView is the read-only slice of corpus statistics a Scorer needs.
// *index.Index and index.CorpusStats both satisfy it.
type StatsView interface {
	TotalDocs() int
	AvgDocLength() float64
	DocFreq(term string) int
}

// Scorer computes the relevance of one document for a query. Implementations
// must be pure and return a non-negative score.
type Scorer interface {
	Name() string
	Score(query []string, tf map[string]int, docLen int, stats StatsView) float64
}

// ScoreConfig holds validated BM25 parameters. The zero value is not usable;
// build one with NewScoreConfig or DefaultScoreConfig.
type ScoreConfig struct {
	k1 float64
	b  float64
}

// NewScoreConfig validates k1 > 0 and 0 <= b <= 1.
func NewScoreConfig(k1, b float64) (ScoreConfig, error) {
	if math.IsNaN(k1) || math.IsInf(k1, 0) || k1 <= 0 {
		return ScoreConfig{}, apperrors.Newf(apperrors.ErrInvalidConfig, http.StatusInternalServerError, "k1 must be a finite value > 0, got %v", k1)
	}
	if math.IsNaN(b) || b < 0 || b > 1 {
		return ScoreConfig{}, apperrors.Newf(apperrors.ErrInvalidConfig, http.StatusInternalServerError, "b must be within [0, 1], got %v", b)
	}
	return ScoreConfig{k1: k1, b: b}, nil
}

func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{k1: DefaultK1, b: DefaultB}
}

func (c ScoreConfig) K1() float64 { return c.k1 }

func (c ScoreConfig) B() float64 { return c.b }

func (c ScoreConfig) String() string {
	return fmt.Sprintf("k1=%g,b=%g", c.k1, c.b)
}

func (c ScoreConfig) valid() bool { return c.k1 > 0 }

// Fingerprint identifies a scorer together with its parameters, so results
// computed under different settings are never mixed up.
func Fingerprint(s Scorer) string {
	if s == nil {
		return ""
	}
	if c, ok := s.(interface{ Config() ScoreConfig }); ok {
		return s.Name() + "(" + c.Config().String() + ")"
	}
	return s.Name()
}

// BM25 is the Okapi BM25 scorer.
type BM25 struct {
	cfg ScoreConfig
}

func NewBM25(cfg ScoreConfig) (*BM25, error) {
	if !cfg.valid() {
		return nil, apperrors.New(apperrors.ErrInvalidConfig, http.StatusInternalServerError, "bm25 requires a validated score config")
	}
	return &BM25{cfg: cfg}, nil
}

func (s *BM25) Name() string { return "bm25" }

func (s *BM25) Config() ScoreConfig { return s.cfg }

// Score sums the per-term contributions of query terms found in tf. Repeated
// query terms count once per occurrence, so callers usually dedupe first.
func (s *BM25) Score(query []string, tf map[string]int, docLen int, stats StatsView) float64 {
	avg := stats.AvgDocLength()
	if avg == 0 {
		return 0
	}
	n := stats.TotalDocs()
	var score float64
	for _, term := range query {
		freq := tf[term]
		if freq <= 0 {
			continue
		}
		score += IDF(n, stats.DocFreq(term)) * s.termWeight(float64(freq), float64(docLen), avg)
	}
	return score
}

// Contribution returns one term's share of a document score.
func (s *BM25) Contribution(freq, docLen, docFreq int, stats StatsView) float64 {
	avg := stats.AvgDocLength()
	if freq <= 0 || avg == 0 {
		return 0
	}
	return IDF(stats.TotalDocs(), docFreq) * s.termWeight(float64(freq), float64(docLen), avg)
}

func (s *BM25) termWeight(tf, docLen, avgDocLen float64) float64 {
	norm := 1 - s.cfg.b + s.cfg.b*docLen/avgDocLen
	return tf * (s.cfg.k1 + 1) / (tf + s.cfg.k1*norm)
}

// IDF is the BM25 inverse document frequency, floored at zero. Terms that no
// document contains have no weight.
func IDF(totalDocs, docFreq int) float64 {
	if docFreq <= 0 || totalDocs <= 0 {
		return 0
	}
	n := float64(totalDocs)
	df := float64(docFreq)
	idf := math.Log((n-df+0.5)/(df+0.5) + 1)
	if idf < 0 {
		return 0
	}
	return idf
}

// TFIDF scores with log-scaled term frequency and smoothed idf and applies no
// length normalisation.
type TFIDF struct{}

func NewTFIDF() *TFIDF { return &TFIDF{} }

func (s *TFIDF) Name() string { return "tfidf" }

func (s *TFIDF) Score(query []string, tf map[string]int, _ int, stats StatsView) float64 {
	n := float64(stats.TotalDocs())
	if n == 0 {
		return 0
	}
	var score float64
	for _, term := range query {
		freq := tf[term]
		df := stats.DocFreq(term)
		if freq <= 0 || df <= 0 {
			continue
		}
		score += (1 + math.Log(float64(freq))) * math.Log(1+n/float64(df))
	}
	return score
}

// New returns the scorer registered under name. An empty name selects BM25.
func New(name string, cfg ScoreConfig) (Scorer, error) {
	switch name {
	case "", "bm25":
		s, err := NewBM25(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "tfidf":
		return NewTFIDF(), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidConfig, http.StatusInternalServerError, "unknown scorer %q (valid: bm25, tfidf)", name)
	}
}

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Less orders by descending score, then ascending DocID.
func Less(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.DocID < b.DocID
}

// Sort orders docs in place by Less.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool { return Less(docs[i], docs[j]) })
}
