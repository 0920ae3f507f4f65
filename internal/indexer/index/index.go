package index

import (
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/tokenizer"
)

// CorpusStats are derived from a document set by Build. The Index only hands
// out copies, so they can never drift from the postings.
type CorpusStats struct {
	Docs      int            `json:"total_docs"`
	Tokens    int64          `json:"total_tokens"`
	AvgLength float64        `json:"avg_doc_length"`
	DocFreqs  map[string]int `json:"-"`
}

func (s CorpusStats) TotalDocs() int { return s.Docs }

func (s CorpusStats) AvgDocLength() float64 { return s.AvgLength }

func (s CorpusStats) DocFreq(term string) int { return s.DocFreqs[term] }

// Index is an immutable inverted index over a corpus snapshot. All methods
// are safe for concurrent use without locking because nothing is mutated
// after Build returns.
type Index struct {
	docs       []Document
	byID       map[string]int
	postings   map[string]PostingList
	stats      CorpusStats
	tokenizer  *tokenizer.Tokenizer
	generation string
	builtAt    time.Time
}

// Empty returns an index with no documents. Queries against it return no
// results.
func Empty(tok *tokenizer.Tokenizer) *Index {
	if tok == nil {
		tok = tokenizer.Default()
	}
	gen, _ := generation(nil, tok)
	return &Index{
		byID:       map[string]int{},
		postings:   map[string]PostingList{},
		stats:      CorpusStats{DocFreqs: map[string]int{}},
		tokenizer:  tok,
		generation: gen,
	}
}

func (ix *Index) Tokenizer() *tokenizer.Tokenizer { return ix.tokenizer }

// Generation is a content fingerprint of the document set and tokenizer.
// Two indexes with the same generation hold identical postings.
func (ix *Index) Generation() string { return ix.generation }

func (ix *Index) BuiltAt() time.Time { return ix.builtAt }

func (ix *Index) Len() int { return len(ix.docs) }

func (ix *Index) TotalDocs() int { return ix.stats.Docs }

func (ix *Index) AvgDocLength() float64 { return ix.stats.AvgLength }

func (ix *Index) DocFreq(term string) int { return ix.stats.DocFreqs[term] }

func (ix *Index) VocabularySize() int { return len(ix.postings) }

// Stats returns a copy of the corpus statistics.
func (ix *Index) Stats() CorpusStats {
	s := ix.stats
	s.DocFreqs = make(map[string]int, len(ix.stats.DocFreqs))
	for k, v := range ix.stats.DocFreqs {
		s.DocFreqs[k] = v
	}
	return s
}

// Document returns a copy of the document with the given ID.
func (ix *Index) Document(id string) (Document, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return Document{}, false
	}
	return ix.docs[i].clone(), true
}

// Documents returns copies of all documents ordered by ID.
func (ix *Index) Documents() []Document {
	out := make([]Document, len(ix.docs))
	for i := range ix.docs {
		out[i] = ix.docs[i].clone()
	}
	return out
}

// Each calls fn for every document in ID order until fn returns false. The
// pointer is only valid for the duration of the call and must not be
// modified.
func (ix *Index) Each(fn func(d *Document) bool) {
	for i := range ix.docs {
		if !fn(&ix.docs[i]) {
			return
		}
	}
}

// Lookup returns a read-only pointer to the document with the given ID.
func (ix *Index) Lookup(id string) (*Document, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return nil, false
	}
	return &ix.docs[i], true
}

// Postings returns a copy of the posting list for an already normalised
// term, ordered by DocID.
func (ix *Index) Postings(term string) PostingList {
	pl, ok := ix.postings[term]
	if !ok {
		return nil
	}
	out := make(PostingList, len(pl))
	for i, p := range pl {
		out[i] = Posting{DocID: p.DocID, Frequency: p.Frequency}
		if p.Positions != nil {
			out[i].Positions = append([]int(nil), p.Positions...)
		}
	}
	return out
}

// EachPosting calls fn for every posting of term without copying.
func (ix *Index) EachPosting(term string, fn func(p *Posting)) {
	pl := ix.postings[term]
	for i := range pl {
		fn(&pl[i])
	}
}

// Entries returns every term with its postings, ordered by term.
func (ix *Index) Entries() []TermEntry {
	terms := make([]string, 0, len(ix.postings))
	for term := range ix.postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	entries := make([]TermEntry, 0, len(terms))
	for _, term := range terms {
		entries = append(entries, TermEntry{Term: term, Postings: ix.Postings(term)})
	}
	return entries
}
