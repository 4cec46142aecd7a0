package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/studydeck/internal/fragment"
)

// Result is the ordered fragment stream extracted from one source.
type Result struct {
	Title     string
	Pages     int
	Fragments []fragment.Fragment
}

// Parser converts raw document bytes into fragments in reading order.
type Parser interface {
	Parse(r io.Reader, filename string) (*Result, error)
}

// Options tunes parser construction.
type Options struct {
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func baseTitle(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// headingStack tracks the heading path while walking structured documents.
type headingStack struct {
	titles []string
	levels []int
}

func (s *headingStack) push(level int, title string) {
	for len(s.levels) > 0 && s.levels[len(s.levels)-1] >= level {
		s.levels = s.levels[:len(s.levels)-1]
		s.titles = s.titles[:len(s.titles)-1]
	}
	s.levels = append(s.levels, level)
	s.titles = append(s.titles, title)
}

func (s *headingStack) section() fragment.SectionInfo {
	if len(s.titles) == 0 {
		return fragment.SectionInfo{}
	}
	bc := make([]string, len(s.titles))
	copy(bc, s.titles)
	return fragment.SectionInfo{Breadcrumb: bc}
}
