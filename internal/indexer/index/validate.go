package index

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/pkg/errors"
)

const (
	maxIDLength    = 256
	maxTitleLength = 1024
	maxTextLength  = 1048576
	maxYear        = 9999
)

// ValidationError holds per-field validation failure messages for a
// rejected document set. Keys are "<doc>.<field>", where <doc> is the
// document ID or "#<position>" when the ID itself is missing.
type ValidationError struct {
	Fields     map[string]string
	duplicates bool
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid documents: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() []error {
	if e.duplicates {
		return []error{apperrors.ErrInvalidDocument, apperrors.ErrDuplicateDocument}
	}
	return []error{apperrors.ErrInvalidDocument}
}

// Validate checks every document and the uniqueness of IDs. It returns a
// *ValidationError describing all problems, or nil.
func Validate(docs []Document) error {
	errs := make(map[string]string)
	seen := make(map[string]int, len(docs))
	duplicates := false

	for i := range docs {
		d := &docs[i]
		key := d.ID
		id := strings.TrimSpace(d.ID)
		switch {
		case id == "":
			key = fmt.Sprintf("#%d", i)
			errs[key+".id"] = "id is required"
		case id != d.ID:
			errs[key+".id"] = "id must not have leading or trailing whitespace"
		case len(d.ID) > maxIDLength:
			errs[key+".id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
		}
		if d.ID != "" {
			if first, dup := seen[d.ID]; dup {
				errs[key+".id"] = fmt.Sprintf("duplicate id (first seen at position %d)", first)
				duplicates = true
			} else {
				seen[d.ID] = i
			}
		}
		if len(d.Title) > maxTitleLength {
			errs[key+".title"] = fmt.Sprintf("title must be at most %d characters", maxTitleLength)
		}
		if len(d.Text) > maxTextLength {
			errs[key+".text"] = fmt.Sprintf("text must be at most %d characters", maxTextLength)
		}
		if d.Year < 0 || d.Year > maxYear {
			errs[key+".year"] = fmt.Sprintf("year must be between 0 and %d", maxYear)
		}
		if !d.Tier.Valid() {
			errs[key+".tier"] = fmt.Sprintf("unknown relevance tier %q", string(d.Tier))
		}
		for _, c := range d.Categories {
			if strings.TrimSpace(c) == "" {
				errs[key+".categories"] = "categories must not contain empty tags"
				break
			}
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs, duplicates: duplicates}
	}
	return nil
}
