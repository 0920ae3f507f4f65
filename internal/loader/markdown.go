package loader

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/BCI-Research-Navigator/internal/indexer/index"
)

// UntitledDocument is the title of a report without an H1 heading.
const UntitledDocument = "Untitled"

var frontMatterPattern = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---[ \t]*(?:\r?\n)*`)

var markdownParser = goldmark.New()

// FrontMatter is the optional YAML block at the top of a research report.
type FrontMatter struct {
	Title      string   `yaml:"title"`
	Categories []string `yaml:"categories"`
	Year       int      `yaml:"year"`
	Tier       string   `yaml:"tier"`
}

// MarkdownReport is a parsed report before chunking.
type MarkdownReport struct {
	Title      string
	Body       string
	Categories []string
	Year       int
	Tier       index.Tier
}

// ParseMarkdown strips the front matter, if any, and finds the title: the
// first level-one heading, then the front matter title, then
// UntitledDocument.
func ParseMarkdown(content []byte) (MarkdownReport, error) {
	var (
		meta FrontMatter
		body = content
	)
	if m := frontMatterPattern.FindSubmatchIndex(content); m != nil {
		if err := yaml.Unmarshal(content[m[2]:m[3]], &meta); err != nil {
			return MarkdownReport{}, fmt.Errorf("parsing front matter: %w", err)
		}
		body = content[m[1]:]
	}
	tier, err := index.ParseTier(meta.Tier)
	if err != nil {
		return MarkdownReport{}, fmt.Errorf("parsing front matter: %w", err)
	}

	title := firstHeading(body)
	if title == "" {
		title = strings.TrimSpace(meta.Title)
	}
	if title == "" {
		title = UntitledDocument
	}
	return MarkdownReport{
		Title:      title,
		Body:       string(body),
		Categories: meta.Categories,
		Year:       meta.Year,
		Tier:       tier,
	}, nil
}

func firstHeading(source []byte) string {
	doc := markdownParser.Parser().Parse(text.NewReader(source))
	var title string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		if n.(*ast.Heading).Level != 1 {
			return ast.WalkSkipChildren, nil
		}
		var buf bytes.Buffer
		inlineText(&buf, n, source)
		title = strings.TrimSpace(buf.String())
		return ast.WalkStop, nil
	})
	return title
}

func inlineText(buf *bytes.Buffer, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(v.Value)
		default:
			inlineText(buf, c, source)
		}
	}
}
