package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// FlattenJSON renders a JSON document as indented "Key Name: value" lines in
// source key order. Lists of scalars become "- item" lines; consecutive
// objects in a list are separated by a blank line so the chunker treats each
// one as a paragraph.
func FlattenJSON(r io.Reader) (string, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("decoding json: %w", err)
	}
	lines, err := flattenValue(dec, tok, "")
	if err != nil {
		return "", fmt.Errorf("decoding json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("decoding json: trailing data after top-level value")
	}
	return strings.Join(lines, "\n"), nil
}

func flattenValue(dec *json.Decoder, tok json.Token, prefix string) ([]string, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return flattenObject(dec, prefix)
		case '[':
			return flattenArray(dec, prefix)
		}
		return nil, fmt.Errorf("unexpected %q", v)
	default:
		return []string{prefix + scalarText(v)}, nil
	}
}

func flattenObject(dec *json.Decoder, prefix string) ([]string, error) {
	var lines []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T", keyTok)
		}
		label := prefix + humanizeKey(key)

		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if _, nested := tok.(json.Delim); !nested {
			lines = append(lines, label+": "+scalarText(tok))
			continue
		}
		inner, err := flattenValue(dec, tok, prefix+"  ")
		if err != nil {
			return nil, err
		}
		lines = append(lines, label+":")
		if len(inner) == 0 {
			inner = []string{""}
		}
		lines = append(lines, inner...)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return lines, nil
}

func flattenArray(dec *json.Decoder, prefix string) ([]string, error) {
	var (
		lines       []string
		prevComplex bool
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if _, nested := tok.(json.Delim); !nested {
			lines = append(lines, prefix+"- "+scalarText(tok))
			prevComplex = false
			continue
		}
		inner, err := flattenValue(dec, tok, prefix)
		if err != nil {
			return nil, err
		}
		if prevComplex {
			lines = append(lines, "")
		}
		lines = append(lines, inner...)
		prevComplex = true
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return lines, nil
}

func scalarText(tok json.Token) string {
	switch v := tok.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(v)
	}
}

// humanizeKey turns "fda_pathway" into "Fda Pathway".
func humanizeKey(key string) string {
	return titleWords(strings.ReplaceAll(key, "_", " "))
}

func titleWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	atStart := true
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			b.WriteRune(r)
			atStart = !unicode.IsDigit(r)
		case atStart:
			b.WriteRune(unicode.ToUpper(r))
			atStart = false
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
