// Package filter implements metadata facets over research documents.
package filter

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
)

// Spec restricts a search by document metadata. Each set dimension must
// match (AND); within a dimension any listed value matches (OR). The zero
// Spec matches everything.
type Spec struct {
	Categories []string     `json:"categories,omitempty"`
	YearMin    int          `json:"year_min,omitempty"`
	YearMax    int          `json:"year_max,omitempty"`
	Tiers      []index.Tier `json:"tiers,omitempty"`
}

func (s Spec) IsZero() bool {
	return len(s.Categories) == 0 && s.YearMin == 0 && s.YearMax == 0 && len(s.Tiers) == 0
}

// Validate rejects negative years, an inverted year range, unknown tiers and
// blank categories.
func (s Spec) Validate() error {
	if s.YearMin < 0 || s.YearMax < 0 {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "year bounds must not be negative")
	}
	if s.YearMin != 0 && s.YearMax != 0 && s.YearMin > s.YearMax {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"year_min %d is after year_max %d", s.YearMin, s.YearMax)
	}
	for _, t := range s.Tiers {
		if !t.Valid() {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown relevance tier %q", string(t))
		}
	}
	for _, c := range s.Categories {
		if strings.TrimSpace(c) == "" {
			return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "category must not be empty")
		}
	}
	return nil
}

// Match reports whether d satisfies every dimension of s. A document without
// a year passes any year bound; only a known year outside the range fails.
func (s Spec) Match(d *index.Document) bool {
	if len(s.Categories) > 0 {
		found := false
		for _, c := range s.Categories {
			if d.HasCategory(c) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if d.Year != 0 {
		if s.YearMin != 0 && d.Year < s.YearMin {
			return false
		}
		if s.YearMax != 0 && d.Year > s.YearMax {
			return false
		}
	}
	if len(s.Tiers) > 0 {
		found := false
		for _, t := range s.Tiers {
			if d.Tier == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Key returns a canonical string for s, suitable as part of a cache key.
// Specs that match the same documents through reordered or differently cased
// values share a key.
func (s Spec) Key() string {
	if s.IsZero() {
		return ""
	}
	cats := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		cats[i] = strings.ToLower(strings.TrimSpace(c))
	}
	sort.Strings(cats)
	tiers := make([]string, len(s.Tiers))
	for i, t := range s.Tiers {
		tiers[i] = t.String()
	}
	sort.Strings(tiers)
	return fmt.Sprintf("c=%s;y=%d-%d;t=%s",
		strings.Join(cats, ","), s.YearMin, s.YearMax, strings.Join(tiers, ","))
}

// Parse builds a Spec from request-style values. Categories and tiers may be
// repeated or comma separated; empty values are ignored.
func Parse(categories []string, yearMin, yearMax string, tiers []string) (Spec, error) {
	s := Spec{Categories: splitValues(categories)}
	var err error
	if s.YearMin, err = parseYear("year_min", yearMin); err != nil {
		return Spec{}, err
	}
	if s.YearMax, err = parseYear("year_max", yearMax); err != nil {
		return Spec{}, err
	}
	for _, raw := range splitValues(tiers) {
		t, err := index.ParseTier(raw)
		if err != nil {
			return Spec{}, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, err.Error())
		}
		s.Tiers = append(s.Tiers, t)
	}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

func parseYear(name, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%s must be an integer, got %q", name, raw)
	}
	return y, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
