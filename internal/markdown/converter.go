// Package markdown converts markdown-formatted reports into the plain text the
// pipeline extracts from, keeping the heading structure as labelled sections.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// Section is the body under one heading.
type Section struct {
	Index       int    // Position in document (0, 1, 2...)
	HeadingPath string // Hierarchy: "Report > Findings"
	Title       string
	Body        string
}

// Document is a converted markdown report.
type Document struct {
	// Text is the report as plain text. Headings become "Title:" lines so
	// labelled-section extraction works the same as for plain reports.
	Text     string
	Sections []Section
}

// Converter renders markdown reports to plain text.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter creates a converter configured with the goldmark parser.
func NewConverter() *Converter {
	return &Converter{
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

var inlineMarkup = strings.NewReplacer("**", "", "__", "", "`", "")

// Convert parses source and returns its plain text and heading sections.
func (c *Converter) Convert(source []byte) (*Document, error) {
	root := c.md.Parser().Parse(text.NewReader(source))

	var buf strings.Builder
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			buf.WriteString(strings.TrimSuffix(lineText(n, source), ":"))
			buf.WriteString(":\n")
			return ast.WalkSkipChildren, nil
		case ast.KindParagraph, ast.KindTextBlock, ast.KindCodeBlock, ast.KindFencedCodeBlock:
			buf.WriteString(lineText(n, source))
			buf.WriteString("\n")
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk markdown: %w", err)
	}

	sections, err := c.sections(root, source)
	if err != nil {
		return nil, err
	}
	return &Document{Text: strings.TrimSpace(buf.String()), Sections: sections}, nil
}

// lineText joins the raw source lines of a block node.
func lineText(n ast.Node, source []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimRight(string(seg.Value(source)), "\r\n"))
	}
	return inlineMarkup.Replace(strings.Join(parts, "\n"))
}

// sections splits the report at H1-H3 boundaries.
func (c *Converter) sections(root ast.Node, source []byte) ([]Section, error) {
	tree, err := toc.Inspect(root, source,
		toc.MinDepth(1),
		toc.MaxDepth(3),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	headings := headingsByID(root)
	var sections []Section
	var walk func(items toc.Items, ancestors []string)
	walk = func(items toc.Items, ancestors []string) {
		for _, item := range items {
			title := string(item.Title)
			path := append(append([]string(nil), ancestors...), title)
			if h, ok := headings[string(item.ID)]; ok {
				sections = append(sections, Section{
					Index:       len(sections),
					HeadingPath: strings.Join(path, " > "),
					Title:       title,
					Body:        sectionBody(root, h, source),
				})
			}
			walk(item.Items, path)
		}
	}
	walk(tree.Items, nil)
	return sections, nil
}

func headingsByID(root ast.Node) map[string]*ast.Heading {
	found := make(map[string]*ast.Heading)
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		h := n.(*ast.Heading)
		if id, ok := h.AttributeString("id"); ok {
			if b, ok := id.([]byte); ok {
				found[string(b)] = h
			}
		}
		return ast.WalkSkipChildren, nil
	})
	return found
}

// sectionBody returns the source between heading h and the next heading of
// any level.
func sectionBody(root ast.Node, h *ast.Heading, source []byte) string {
	if h.Lines().Len() == 0 {
		return ""
	}
	start := h.Lines().At(0).Stop
	end := len(source)

	var seen bool
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		if !seen {
			seen = n == h
			return ast.WalkSkipChildren, nil
		}
		if next := n.(*ast.Heading); next.Lines().Len() > 0 {
			end = lineStart(source, next.Lines().At(0).Start)
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})
	if start > end {
		return ""
	}
	return strings.TrimSpace(inlineMarkup.Replace(string(source[start:end])))
}

// lineStart moves pos back to the beginning of its line so ATX markers are
// not carried into the previous section.
func lineStart(source []byte, pos int) int {
	if i := bytes.LastIndexByte(source[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}
