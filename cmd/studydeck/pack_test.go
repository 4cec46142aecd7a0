package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dgallion1/studydeck/internal/chunker"
	"github.com/dgallion1/studydeck/internal/fragment"
)

func testBlocks() []chunker.Block {
	return []chunker.Block{
		{Text: "first block", Sources: []fragment.Metadata{fragment.PageInfo{Page: 1}}},
		{Text: "[TABLE]\na,b", Sources: []fragment.Metadata{fragment.PageInfo{Page: 1}, fragment.PageInfo{Page: 2}}},
	}
}

func TestPrintBlocks_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := printBlocks(&buf, "Notes", testBlocks(), false); err != nil {
		t.Fatalf("printBlocks: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "--- block 0 (11 chars") {
		t.Errorf("missing first header in %q", out)
	}
	if !strings.Contains(out, "2 fragments)\n[TABLE]\na,b") {
		t.Errorf("missing second block in %q", out)
	}
}

func TestPrintBlocks_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printBlocks(&buf, "Notes", testBlocks(), true); err != nil {
		t.Fatalf("printBlocks: %v", err)
	}
	var got struct {
		Title  string        `json:"title"`
		Blocks []packedBlock `json:"blocks"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Title != "Notes" || len(got.Blocks) != 2 {
		t.Fatalf("got title %q with %d blocks", got.Title, len(got.Blocks))
	}
	if got.Blocks[1].Sources != 2 || got.Blocks[1].Text != "[TABLE]\na,b" {
		t.Errorf("block 1 = %+v", got.Blocks[1])
	}
}

func TestPrintBlocks_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := printBlocks(&buf, "", nil, false); err != nil {
		t.Fatalf("printBlocks: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestPackFlagDefaults(t *testing.T) {
	tests := []struct {
		flag string
		want int
	}{
		{"min-fragment-size", chunker.DefaultMinFragmentSize},
		{"target-block-size", chunker.DefaultTargetBlockSize},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			got, err := packCmd.Flags().GetInt(tt.flag)
			if err != nil {
				t.Fatalf("flag %s: %v", tt.flag, err)
			}
			if got != tt.want {
				t.Errorf("default %s = %d, want %d", tt.flag, got, tt.want)
			}
		})
	}
}
