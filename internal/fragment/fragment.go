package fragment

import "time"

// Type tags the kind of content a fragment carries.
type Type string

const (
	TypeText  Type = "text"
	TypeTable Type = "table"
)

// IsText reports whether t is the default text type. An empty type counts as text.
func (t Type) IsText() bool {
	return t == "" || t == TypeText
}

// Kind identifies which metadata shape a fragment carries.
type Kind string

const (
	KindPage    Kind = "page"
	KindVideo   Kind = "video"
	KindOCR     Kind = "ocr"
	KindSection Kind = "section"
)

// Metadata is a closed set of per-source records. Only types in this package
// implement it.
type Metadata interface {
	Kind() Kind
	sealed()
}

// PageInfo locates a fragment in a paged document.
type PageInfo struct {
	Page  int // 1-based page number, 0 if unknown
	Index int // Position of the fragment within the document
}

// VideoSpan is the time range a transcript fragment covers.
type VideoSpan struct {
	URL   string
	Start time.Duration
	End   time.Duration
}

// OCRBlock describes a fragment recognized from a page image.
type OCRBlock struct {
	Page       int
	BBox       [4]float64 // left, top, width, height as page ratios
	Confidence float64
}

// SectionInfo carries the heading path of structured text.
type SectionInfo struct {
	Breadcrumb []string
}

func (PageInfo) Kind() Kind    { return KindPage }
func (VideoSpan) Kind() Kind   { return KindVideo }
func (OCRBlock) Kind() Kind    { return KindOCR }
func (SectionInfo) Kind() Kind { return KindSection }

func (PageInfo) sealed()    {}
func (VideoSpan) sealed()   {}
func (OCRBlock) sealed()    {}
func (SectionInfo) sealed() {}

// Fragment is one atomic unit of extracted text, in reading order.
type Fragment struct {
	Content string
	Type    Type
	Meta    Metadata // May be nil
}

// Text builds a plain text fragment.
func Text(content string, meta Metadata) Fragment {
	return Fragment{Content: content, Type: TypeText, Meta: meta}
}

// Table builds a table fragment.
func Table(content string, meta Metadata) Fragment {
	return Fragment{Content: content, Type: TypeTable, Meta: meta}
}
