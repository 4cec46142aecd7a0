package generate

import (
	"fmt"
	"strings"
)

const cardFormat = `Output the flashcards as plain text: the question on one line, the answer on the next line, then a blank line before the next question. Do not number the cards or add any other text.`

const flashcardInstructions = `Turn the following study material into %d flashcards. Make the questions clear and concise and the answers detailed. Cover the most important content of the material.

` + cardFormat

const editInstructions = `Update the following flashcards according to the request, using the study material for reference. Keep the same number of flashcards. Make the questions clear and concise and the answers detailed.

` + cardFormat

const chatInstructions = `You are an AI assistant. Use the following document excerpts to answer the question at the end. If the excerpts do not contain the answer, respond with "I don't know."`

// BuildFlashcardPrompt asks for count cards drawn from the book's blocks.
func BuildFlashcardPrompt(bookTitle string, blocks []string, count int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, flashcardInstructions, count)
	sb.WriteString("\n\n---\n")
	if bookTitle != "" {
		fmt.Fprintf(&sb, "Book: %q\n", bookTitle)
	}
	sb.WriteString("Material:\n")
	writeBlocks(&sb, blocks)
	return sb.String()
}

// BuildEditPrompt asks for a revision of existing cards following instruction.
func BuildEditPrompt(existing []Card, instruction string, blocks []string) string {
	var sb strings.Builder
	sb.WriteString(editInstructions)
	sb.WriteString("\n\n---\nCurrent flashcards:\n\n")
	sb.WriteString(FormatCards(existing))
	sb.WriteString("\n\n---\nRequest: ")
	sb.WriteString(strings.TrimSpace(instruction))
	sb.WriteString("\n\n---\nMaterial:\n")
	writeBlocks(&sb, blocks)
	return sb.String()
}

// BuildChatPrompt answers question from numbered excerpts.
func BuildChatPrompt(question string, excerpts []string) string {
	var sb strings.Builder
	sb.WriteString(chatInstructions)
	sb.WriteString("\n\n")
	for i, e := range excerpts {
		fmt.Fprintf(&sb, "Excerpt %d:\n%s\n\n", i+1, e)
	}
	fmt.Fprintf(&sb, "Question: %s\nAnswer:", strings.TrimSpace(question))
	return sb.String()
}

func writeBlocks(sb *strings.Builder, blocks []string) {
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(b)
	}
}
