package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/studydeck/internal/fragment"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. GFM tables become
// table fragments and every fragment carries its heading breadcrumb.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Result, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	res := &Result{Title: baseTitle(filename), Pages: 1}
	var headings headingStack

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			headings.push(node.Level, nodeText(node, src))
		case *east.Table:
			if t := tableText(node, src); t != "" {
				res.Fragments = append(res.Fragments, fragment.Table(t, headings.section()))
			}
		default:
			if t := nodeText(n, src); t != "" {
				res.Fragments = append(res.Fragments, fragment.Text(t, headings.section()))
			}
		}
	}

	return res, nil
}

// tableText renders a table as one line per row with cells joined by " | ".
func tableText(table *east.Table, src []byte) string {
	var rows []string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, nodeText(cell, src))
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	}
	return strings.Join(rows, "\n")
}

// nodeText gets the text content of a goldmark AST node.
func nodeText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	writeNodeText(&buf, n, src)
	return strings.TrimSpace(buf.String())
}

func writeNodeText(buf *bytes.Buffer, n ast.Node, src []byte) {
	switch t := n.(type) {
	case *ast.Text:
		buf.Write(t.Segment.Value(src))
		if t.HardLineBreak() || t.SoftLineBreak() {
			buf.WriteByte('\n')
		}
		return
	case *ast.String:
		buf.Write(t.Value)
		return
	}

	// Code blocks keep their content in lines, not inline children.
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return
	}

	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		writeNodeText(buf, c, src)
		if c.Type() == ast.TypeBlock && c.NextSibling() != nil {
			buf.WriteByte('\n')
		}
	}
}
