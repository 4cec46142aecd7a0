package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/studydeck/internal/fragment"
)

// csvBatchSize is the number of data rows per table fragment.
const csvBatchSize = 20

// CSVParser handles CSV files. Rows are grouped into table fragments, each
// repeating the header row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Result, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	res := &Result{Title: baseTitle(filename), Pages: 1}
	if len(records) == 0 {
		return res, nil
	}

	header := strings.Join(records[0], " | ")
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))

		var text strings.Builder
		text.WriteString(header)
		for _, row := range dataRows[i:end] {
			text.WriteString("\n")
			text.WriteString(strings.Join(row, " | "))
		}

		res.Fragments = append(res.Fragments, fragment.Table(text.String(), fragment.PageInfo{Page: 1, Index: i / csvBatchSize}))
	}

	return res, nil
}
