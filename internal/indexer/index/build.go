package index

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/zeebo/blake3"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
)

// Build validates docs, tokenizes each document's text with tok, and
// returns a new immutable Index. The input slice is not modified. Documents
// are ordered by ID internally, so the result does not depend on input order.
// A malformed document rejects the whole build.
func Build(docs []Document, tok *tokenizer.Tokenizer) (*Index, error) {
	if tok == nil {
		tok = tokenizer.Default()
	}
	if err := Validate(docs); err != nil {
		return nil, err
	}

	sorted := make([]Document, len(docs))
	for i := range docs {
		sorted[i] = docs[i].clone()
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	ix := &Index{
		docs:      sorted,
		byID:      make(map[string]int, len(sorted)),
		postings:  make(map[string]PostingList),
		tokenizer: tok,
		builtAt:   time.Now().UTC(),
	}

	var totalTokens int64
	for i := range sorted {
		d := &sorted[i]
		ix.byID[d.ID] = i

		tokens := tok.Tokenize(d.Text)
		d.Length = len(tokens)
		totalTokens += int64(len(tokens))

		termData := make(map[string]*Posting)
		order := make([]string, 0)
		for _, token := range tokens {
			p, exists := termData[token.Term]
			if !exists {
				p = &Posting{
					DocID:     d.ID,
					Positions: make([]int, 0, 4),
				}
				termData[token.Term] = p
				order = append(order, token.Term)
			}
			p.Frequency++
			p.Positions = append(p.Positions, token.Position)
		}
		// Documents are visited in ID order, so appending keeps every
		// posting list sorted by DocID.
		for _, term := range order {
			ix.postings[term] = append(ix.postings[term], *termData[term])
		}
	}

	ix.stats = deriveStats(len(sorted), totalTokens, ix.postings)
	gen, err := generation(sorted, tok)
	if err != nil {
		return nil, err
	}
	ix.generation = gen
	return ix, nil
}

// Restore rebuilds an Index from previously persisted documents and
// postings, checking that the postings are consistent with the documents.
// Statistics are re-derived, never trusted from storage. A zero builtAt is
// replaced by the current time.
func Restore(docs []Document, entries []TermEntry, tok *tokenizer.Tokenizer, builtAt time.Time) (*Index, error) {
	if tok == nil {
		tok = tokenizer.Default()
	}
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	if err := Validate(docs); err != nil {
		return nil, err
	}
	sorted := make([]Document, len(docs))
	for i := range docs {
		sorted[i] = docs[i].clone()
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	ix := &Index{
		docs:      sorted,
		byID:      make(map[string]int, len(sorted)),
		postings:  make(map[string]PostingList, len(entries)),
		tokenizer: tok,
		builtAt:   builtAt,
	}
	for i := range sorted {
		ix.byID[sorted[i].ID] = i
	}

	lengths := make(map[string]int, len(sorted))
	var totalTokens int64
	for _, entry := range entries {
		if entry.Term == "" || len(entry.Postings) == 0 {
			return nil, fmt.Errorf("%w: empty term entry %q", apperrors.ErrSnapshotCorrupt, entry.Term)
		}
		if _, dup := ix.postings[entry.Term]; dup {
			return nil, fmt.Errorf("%w: term %q stored twice", apperrors.ErrSnapshotCorrupt, entry.Term)
		}
		pl := make(PostingList, len(entry.Postings))
		copy(pl, entry.Postings)
		for i, p := range pl {
			if _, ok := ix.byID[p.DocID]; !ok {
				return nil, fmt.Errorf("%w: term %q references unknown document %q", apperrors.ErrSnapshotCorrupt, entry.Term, p.DocID)
			}
			if p.Frequency <= 0 {
				return nil, fmt.Errorf("%w: term %q has non-positive frequency for %q", apperrors.ErrSnapshotCorrupt, entry.Term, p.DocID)
			}
			if i > 0 && pl[i-1].DocID >= p.DocID {
				return nil, fmt.Errorf("%w: postings for %q not strictly ordered", apperrors.ErrSnapshotCorrupt, entry.Term)
			}
			lengths[p.DocID] += p.Frequency
			totalTokens += int64(p.Frequency)
		}
		ix.postings[entry.Term] = pl
	}
	for i := range sorted {
		d := &sorted[i]
		if lengths[d.ID] != d.Length {
			return nil, fmt.Errorf("%w: document %q length %d disagrees with postings (%d)", apperrors.ErrSnapshotCorrupt, d.ID, d.Length, lengths[d.ID])
		}
	}

	ix.stats = deriveStats(len(sorted), totalTokens, ix.postings)
	gen, err := generation(sorted, tok)
	if err != nil {
		return nil, err
	}
	ix.generation = gen
	return ix, nil
}

func deriveStats(numDocs int, totalTokens int64, postings map[string]PostingList) CorpusStats {
	stats := CorpusStats{
		Docs:     numDocs,
		Tokens:   totalTokens,
		DocFreqs: make(map[string]int, len(postings)),
	}
	for term, pl := range postings {
		stats.DocFreqs[term] = len(pl)
	}
	if numDocs > 0 {
		stats.AvgLength = float64(totalTokens) / float64(numDocs)
	}
	return stats
}

// generation hashes the tokenizer fingerprint and the canonical JSON of
// every document in ID order.
func generation(sorted []Document, tok *tokenizer.Tokenizer) (string, error) {
	h := blake3.New()
	if _, err := h.WriteString(tok.Fingerprint()); err != nil {
		return "", fmt.Errorf("hashing tokenizer fingerprint: %w", err)
	}
	enc := json.NewEncoder(h)
	for i := range sorted {
		d := sorted[i]
		d.Length = 0
		if err := enc.Encode(d); err != nil {
			return "", fmt.Errorf("hashing document %q: %w", d.ID, err)
		}
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:12]), nil
}
