package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/tokenizer"
)

type QueryType int

const (
	QueryOR QueryType = iota
	QueryAND
)

func (t QueryType) String() string {
	if t == QueryAND {
		return "AND"
	}
	return "OR"
}

type QueryPlan struct {
	Terms        []string
	Type         QueryType
	ExcludeTerms []string
	RawQuery     string
}

// IsEmpty reports whether the plan has no positive terms.
func (p *QueryPlan) IsEmpty() bool {
	return len(p.Terms) == 0
}

// Parse turns free text into a QueryPlan using tok, which must be the
// tokenizer the index was built with. Every word goes through the tokenizer
// and the resulting terms are unioned, so "and", "or" and "not" are plain
// words here. Repeated terms are kept once, in first-seen order.
func Parse(query string, tok *tokenizer.Tokenizer) *QueryPlan {
	return parse(query, tok, false)
}

// ParseBoolean is Parse with operators: the upper-case keyword AND makes the
// plan an intersection, NOT excludes the word that follows it and OR is
// ignored. Lower-case "and"/"not" still fall through to the tokenizer.
func ParseBoolean(query string, tok *tokenizer.Tokenizer) *QueryPlan {
	return parse(query, tok, true)
}

func parse(query string, tok *tokenizer.Tokenizer, operators bool) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         QueryOR,
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	if tok == nil {
		tok = tokenizer.Default()
	}
	seen := make(map[string]struct{})
	excluded := make(map[string]struct{})
	excludeNext := false
	for _, word := range strings.Fields(query) {
		if operators {
			switch word {
			case "AND":
				plan.Type = QueryAND
				continue
			case "OR":
				continue
			case "NOT":
				excludeNext = true
				continue
			}
		}
		terms := tok.Terms(word)
		if len(terms) == 0 {
			continue
		}
		if excludeNext {
			for _, term := range terms {
				if _, dup := excluded[term]; !dup {
					excluded[term] = struct{}{}
					plan.ExcludeTerms = append(plan.ExcludeTerms, term)
				}
			}
			excludeNext = false
			continue
		}
		for _, term := range terms {
			if _, dup := seen[term]; !dup {
				seen[term] = struct{}{}
				plan.Terms = append(plan.Terms, term)
			}
		}
	}
	return plan
}
