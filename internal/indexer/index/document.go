// Package index holds the immutable inverted index built from a corpus of
// research documents, together with its derived corpus statistics.
package index

import (
	"fmt"
	"strings"
)

// Tier is the curator-assigned relevance label of a document.
type Tier string

const (
	TierNone     Tier = ""
	TierMedium   Tier = "MEDIUM"
	TierHigh     Tier = "HIGH"
	TierCritical Tier = "CRITICAL"
)

// ParseTier accepts tier names case-insensitively. "" and "none" map to
// TierNone.
func ParseTier(s string) (Tier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return TierNone, nil
	case string(TierMedium):
		return TierMedium, nil
	case string(TierHigh):
		return TierHigh, nil
	case string(TierCritical):
		return TierCritical, nil
	default:
		return TierNone, fmt.Errorf("unknown relevance tier %q (valid: CRITICAL, HIGH, MEDIUM, none)", s)
	}
}

func (t Tier) Valid() bool {
	switch t {
	case TierNone, TierMedium, TierHigh, TierCritical:
		return true
	}
	return false
}

func (t Tier) String() string {
	if t == TierNone {
		return "none"
	}
	return string(t)
}

// Document is one searchable record, usually a chunk of a longer report.
// Text is the already-concatenated searchable text. Length is derived by
// Build and ignored on input.
type Document struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Source     string   `json:"source,omitempty"`
	ChunkIndex int      `json:"chunk_index"`
	Categories []string `json:"categories,omitempty"`
	Year       int      `json:"year,omitempty"`
	Tier       Tier     `json:"tier,omitempty"`
	Length     int      `json:"length"`
}

// HasCategory reports whether the document is tagged with category,
// ignoring case.
func (d *Document) HasCategory(category string) bool {
	for _, c := range d.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

func (d Document) clone() Document {
	if d.Categories != nil {
		cats := make([]string, len(d.Categories))
		copy(cats, d.Categories)
		d.Categories = cats
	}
	return d
}
