package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/studydeck/internal/fragment"
)

// TextParser handles plain text files.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	res := &Result{Title: baseTitle(filename), Pages: 1}
	for i, para := range paragraphs {
		res.Fragments = append(res.Fragments, fragment.Text(para, fragment.PageInfo{Page: 1, Index: i}))
	}
	return res, nil
}
