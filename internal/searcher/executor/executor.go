package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/searcher/ranker"
)

const (
	DefaultTopK       = 10
	DefaultMaxResults = 100

	relatedPool  = 10
	relatedLimit = 5
)

// SnapshotSource hands out the index snapshot queries run against.
// *indexer.Engine implements it.
type SnapshotSource interface {
	Current() *index.Index
}

// Request is one search. A zero TopK selects the executor default. Boolean
// turns on the AND/NOT operators; otherwise the query terms are unioned.
type Request struct {
	Query   string      `json:"query"`
	Filter  filter.Spec `json:"filter"`
	TopK    int         `json:"top_k"`
	Boolean bool        `json:"boolean,omitempty"`
}

type Hit struct {
	DocID        string     `json:"doc_id"`
	Title        string     `json:"title"`
	Source       string     `json:"source,omitempty"`
	ChunkIndex   int        `json:"chunk_index"`
	Text         string     `json:"text"`
	Categories   []string   `json:"categories,omitempty"`
	Year         int        `json:"year,omitempty"`
	Tier         index.Tier `json:"tier,omitempty"`
	Score        float64    `json:"score"`
	MatchedTerms []string   `json:"matched_terms"`
}

type SearchResult struct {
	Query      string         `json:"query"`
	Generation string         `json:"generation"`
	Scorer     string         `json:"scorer"`
	TotalHits  int            `json:"total_hits"`
	Results    []Hit          `json:"results"`
	TermStats  map[string]int `json:"term_stats"`
}

type Option func(*Executor)

func WithDefaultTopK(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.defaultTopK = n
		}
	}
}

func WithMaxResults(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxResults = n
		}
	}
}

// Executor runs queries against whatever snapshot its source currently
// publishes. It holds no per-query state and is safe for concurrent use.
type Executor struct {
	source      SnapshotSource
	scorer      ranker.Scorer
	defaultTopK int
	maxResults  int
	logger      *slog.Logger
}

func New(source SnapshotSource, scorer ranker.Scorer, opts ...Option) *Executor {
	e := &Executor{
		source:      source,
		scorer:      scorer,
		defaultTopK: DefaultTopK,
		maxResults:  DefaultMaxResults,
		logger:      slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.defaultTopK > e.maxResults {
		e.defaultTopK = e.maxResults
	}
	return e
}

func (e *Executor) Scorer() ranker.Scorer { return e.scorer }

// Search returns the top-k documents for req. Only an invalid filter is an
// error: an empty corpus, a query that matches nothing, or a filter that
// excludes everything all produce an empty result.
func (e *Executor) Search(ctx context.Context, req Request) (*SearchResult, error) {
	if err := req.Filter.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	ix := e.source.Current()
	if ix == nil {
		ix = index.Empty(nil)
	}
	parse := parser.Parse
	if req.Boolean {
		parse = parser.ParseBoolean
	}
	plan := parse(req.Query, ix.Tokenizer())
	result := e.execute(ix, plan, req.Filter, e.clampTopK(req.TopK))

	e.logger.DebugContext(ctx, "query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"mode", plan.Type.String(),
		"generation", result.Generation,
		"candidates", result.TotalHits,
		"results", len(result.Results),
		"duration", time.Since(start),
	)
	return result, nil
}

func (e *Executor) clampTopK(k int) int {
	if k <= 0 {
		k = e.defaultTopK
	}
	if k > e.maxResults {
		k = e.maxResults
	}
	return k
}

func (e *Executor) execute(ix *index.Index, plan *parser.QueryPlan, spec filter.Spec, topK int) *SearchResult {
	result := &SearchResult{
		Query:      plan.RawQuery,
		Generation: ix.Generation(),
		Scorer:     e.scorer.Name(),
		Results:    []Hit{},
		TermStats:  make(map[string]int, len(plan.Terms)),
	}
	for _, term := range plan.Terms {
		result.TermStats[term] = ix.DocFreq(term)
	}

	if plan.IsEmpty() {
		if spec.IsZero() {
			return result
		}
		return e.browse(ix, spec, excluded(ix, plan.ExcludeTerms), topK, result)
	}

	// tfs[docID][term] for every candidate that survives the filter.
	tfs := make(map[string]map[string]int)
	matchedTerms := 0
	for _, term := range plan.Terms {
		found := false
		ix.EachPosting(term, func(p *index.Posting) {
			found = true
			doc, ok := ix.Lookup(p.DocID)
			if !ok || !spec.Match(doc) {
				return
			}
			m, ok := tfs[p.DocID]
			if !ok {
				m = make(map[string]int, len(plan.Terms))
				tfs[p.DocID] = m
			}
			m[term] = p.Frequency
		})
		if found {
			matchedTerms++
		}
	}

	if plan.Type == parser.QueryAND {
		if matchedTerms < len(plan.Terms) {
			return result
		}
		for docID, m := range tfs {
			if len(m) < len(plan.Terms) {
				delete(tfs, docID)
			}
		}
	}
	for docID := range excluded(ix, plan.ExcludeTerms) {
		delete(tfs, docID)
	}

	result.TotalHits = len(tfs)
	top := merger.NewTopK(topK)
	for docID, m := range tfs {
		doc, _ := ix.Lookup(docID)
		top.Push(ranker.ScoredDoc{
			DocID: docID,
			Score: e.scorer.Score(plan.Terms, m, doc.Length, ix),
		})
	}
	for _, sd := range top.Results() {
		doc, _ := ix.Lookup(sd.DocID)
		result.Results = append(result.Results, newHit(doc, sd.Score, matched(plan.Terms, tfs[sd.DocID])))
	}
	return result
}

// browse lists the filtered corpus in ID order when there is nothing to
// score.
func (e *Executor) browse(ix *index.Index, spec filter.Spec, skip map[string]struct{}, topK int, result *SearchResult) *SearchResult {
	ix.Each(func(d *index.Document) bool {
		if _, ok := skip[d.ID]; ok || !spec.Match(d) {
			return true
		}
		result.TotalHits++
		if len(result.Results) < topK {
			result.Results = append(result.Results, newHit(d, 0, []string{}))
		}
		return true
	})
	return result
}

// RelatedTopics returns up to five distinct titles among the best matches
// for query, in rank order.
func (e *Executor) RelatedTopics(ctx context.Context, query string) ([]string, error) {
	res, err := e.Search(ctx, Request{Query: query, TopK: relatedPool})
	if err != nil {
		return nil, err
	}
	topics := make([]string, 0, relatedLimit)
	seen := make(map[string]struct{})
	for _, hit := range res.Results {
		if hit.Title == "" {
			continue
		}
		if _, dup := seen[hit.Title]; dup {
			continue
		}
		seen[hit.Title] = struct{}{}
		topics = append(topics, hit.Title)
		if len(topics) == relatedLimit {
			break
		}
	}
	return topics, nil
}

func excluded(ix *index.Index, terms []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, term := range terms {
		ix.EachPosting(term, func(p *index.Posting) {
			out[p.DocID] = struct{}{}
		})
	}
	return out
}

func newHit(d *index.Document, score float64, terms []string) Hit {
	h := Hit{
		DocID:        d.ID,
		Title:        d.Title,
		Source:       d.Source,
		ChunkIndex:   d.ChunkIndex,
		Text:         d.Text,
		Year:         d.Year,
		Tier:         d.Tier,
		Score:        score,
		MatchedTerms: terms,
	}
	if len(d.Categories) > 0 {
		h.Categories = append([]string(nil), d.Categories...)
	}
	return h
}

func matched(terms []string, tf map[string]int) []string {
	out := make([]string, 0, len(tf))
	for _, t := range terms {
		if tf[t] > 0 {
			out = append(out, t)
		}
	}
	return out
}
