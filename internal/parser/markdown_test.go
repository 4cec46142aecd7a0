package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dgallion1/studydeck/internal/fragment"
)

func breadcrumb(t *testing.T, f fragment.Fragment) []string {
	t.Helper()
	si, ok := f.Meta.(fragment.SectionInfo)
	if !ok {
		t.Fatalf("expected SectionInfo metadata, got %#v", f.Meta)
	}
	return si.Breadcrumb
}

func TestMarkdownParser_HeadingBreadcrumbs(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

## Section B

Section B content.
`
	p := &MarkdownParser{}
	res, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Title != "doc" {
		t.Errorf("expected title %q, got %q", "doc", res.Title)
	}

	want := []struct {
		content string
		path    []string
	}{
		{"Intro text.", []string{"Title"}},
		{"Section A content.", []string{"Title", "Section A"}},
		{"Subsection A1 content.", []string{"Title", "Section A", "Subsection A1"}},
		{"Section B content.", []string{"Title", "Section B"}},
	}
	if len(res.Fragments) != len(want) {
		t.Fatalf("expected %d fragments, got %d", len(want), len(res.Fragments))
	}
	for i, w := range want {
		f := res.Fragments[i]
		if f.Content != w.content {
			t.Errorf("fragment[%d]: expected %q, got %q", i, w.content, f.Content)
		}
		if got := breadcrumb(t, f); !reflect.DeepEqual(got, w.path) {
			t.Errorf("fragment[%d]: expected breadcrumb %v, got %v", i, w.path, got)
		}
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.`

	p := &MarkdownParser{}
	res, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Fragments) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(res.Fragments))
	}
	if got := breadcrumb(t, res.Fragments[0]); len(got) != 0 {
		t.Errorf("expected empty breadcrumb, got %v", got)
	}
}

func TestMarkdownParser_TableBecomesTableFragment(t *testing.T) {
	input := `## Glossary

| Term | Meaning |
|------|---------|
| GC | garbage collection |
| JIT | just in time |
`
	p := &MarkdownParser{}
	res, err := p.Parse(strings.NewReader(input), "glossary.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Fragments) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(res.Fragments))
	}
	f := res.Fragments[0]
	if f.Type != fragment.TypeTable {
		t.Errorf("expected table type, got %q", f.Type)
	}
	want := "Term | Meaning\nGC | garbage collection\nJIT | just in time"
	if f.Content != want {
		t.Errorf("expected %q, got %q", want, f.Content)
	}
}

func TestMarkdownParser_CodeBlocksAndLists(t *testing.T) {
	input := "# API Reference\n\nList of endpoints:\n\n```\nGET /api/users\nPOST /api/users\n```\n\n- first item\n- second item\n"

	p := &MarkdownParser{}
	res, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Fragments) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(res.Fragments))
	}
	if !strings.Contains(res.Fragments[1].Content, "GET /api/users") {
		t.Errorf("expected code block content, got %q", res.Fragments[1].Content)
	}
	list := res.Fragments[2].Content
	if !strings.Contains(list, "first item") || !strings.Contains(list, "second item") {
		t.Errorf("expected both list items, got %q", list)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	res, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Fragments) != 0 {
		t.Errorf("expected 0 fragments for empty input, got %d", len(res.Fragments))
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"plain.md", "plain"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		res, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if res.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, res.Title)
		}
	}
}
