package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
)

func TestParseMarkdown_FrontMatterAndHeading(t *testing.T) {
	src := []byte(`---
categories: [flexible-electrodes, regulatory]
year: 2024
tier: critical
---

Preamble text.

## Background

# Neuralace *Regulatory* Strategy

Body.
`)
	report, err := ParseMarkdown(src)
	require.NoError(t, err)

	assert.Equal(t, "Neuralace Regulatory Strategy", report.Title)
	assert.Equal(t, []string{"flexible-electrodes", "regulatory"}, report.Categories)
	assert.Equal(t, 2024, report.Year)
	assert.Equal(t, index.TierCritical, report.Tier)
	assert.NotContains(t, report.Body, "categories:")
	assert.Contains(t, report.Body, "Preamble text.")
}

func TestParseMarkdown_TitleFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		expect string
	}{
		{"no heading", "just text\n", UntitledDocument},
		{"only h2", "## Section\n\ntext\n", UntitledDocument},
		{"front matter title", "---\ntitle: FDA Pathways\n---\ntext\n", "FDA Pathways"},
		{"heading wins", "---\ntitle: Ignored\n---\n# Heading\n", "Heading"},
		{"code span", "# The `510(k)` route\n", "The 510(k) route"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := ParseMarkdown([]byte(tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.expect, report.Title)
		})
	}
}

func TestParseMarkdown_BadFrontMatter(t *testing.T) {
	_, err := ParseMarkdown([]byte("---\ntier: legendary\n---\n# T\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown relevance tier")

	_, err = ParseMarkdown([]byte("---\nyear: [not, a, year]\n---\n# T\n"))
	require.Error(t, err)
}
