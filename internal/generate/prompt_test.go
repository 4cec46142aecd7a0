package generate

import (
	"strings"
	"testing"
)

func TestBuildFlashcardPrompt(t *testing.T) {
	p := BuildFlashcardPrompt("Biology 101", []string{"Cells are small.", "[TABLE]\nA | B"}, 10)
	for _, want := range []string{"into 10 flashcards", `Book: "Biology 101"`, "Cells are small.\n\n[TABLE]\nA | B"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestBuildEditPrompt(t *testing.T) {
	p := BuildEditPrompt([]Card{{Question: "Q1", Answer: "A1"}}, "  make answers shorter ", []string{"ctx"})
	for _, want := range []string{"Keep the same number of flashcards", "Q1\nA1", "Request: make answers shorter\n", "Material:\nctx"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestBuildChatPrompt(t *testing.T) {
	p := BuildChatPrompt("What is ATP?", []string{"ATP stores energy.", "ADP is ATP minus a phosphate."})
	want := `respond with "I don't know."` + "\n\nExcerpt 1:\nATP stores energy.\n\nExcerpt 2:\nADP is ATP minus a phosphate.\n\nQuestion: What is ATP?\nAnswer:"
	if !strings.HasSuffix(p, want) {
		t.Errorf("unexpected prompt:\n%s", p)
	}
}

func TestBuildChatPrompt_NoExcerpts(t *testing.T) {
	p := BuildChatPrompt("Anything?", nil)
	if !strings.HasSuffix(p, "\"I don't know.\"\n\nQuestion: Anything?\nAnswer:") {
		t.Errorf("unexpected prompt:\n%s", p)
	}
}
