package generate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxQuestionLen = 500
	maxAnswerLen   = 2000
)

// Card is a generated question and answer pair.
type Card struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

var (
	cardSplitRe     = regexp.MustCompile(`\n[ \t]*\n`)
	numberingRe     = regexp.MustCompile(`^(\d+[.)]|[-*•])\s+`)
	questionLabelRe = regexp.MustCompile(`(?i)^(q|question)\s*\d*\s*[:.]\s*`)
	answerLabelRe   = regexp.MustCompile(`(?i)^(a|answer)\s*\d*\s*[:.]\s*`)
)

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`forget\s+(everything|all)|new\s+instructions)`,
)

// ParseCards reads cards written as a question line, then the answer, with
// blank lines between cards. Numbering, Q:/A: labels and bold markers are
// stripped. Entries that do not validate are skipped.
func ParseCards(text string) []Card {
	text = strings.ReplaceAll(stripCodeBlock(text), "\r\n", "\n")

	var cards []Card
	for _, entry := range cardSplitRe.Split(text, -1) {
		var lines []string
		for _, l := range strings.Split(entry, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
		if len(lines) < 2 {
			continue
		}

		c := Card{
			Question: cleanLine(lines[0], questionLabelRe),
			Answer:   cleanLine(strings.Join(lines[1:], "\n"), answerLabelRe),
		}
		if ValidateCard(&c) {
			cards = append(cards, c)
		}
	}
	return cards
}

func cleanLine(s string, label *regexp.Regexp) string {
	s = strings.ReplaceAll(s, "**", "")
	s = numberingRe.ReplaceAllString(s, "")
	s = label.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ValidateCard checks a card for validity, trimming its fields. Returns true
// if valid.
func ValidateCard(c *Card) bool {
	if c == nil {
		return false
	}
	c.Question = strings.TrimSpace(c.Question)
	c.Answer = strings.TrimSpace(c.Answer)
	if c.Question == "" || c.Answer == "" {
		return false
	}
	if utf8.RuneCountInString(c.Question) > maxQuestionLen || utf8.RuneCountInString(c.Answer) > maxAnswerLen {
		return false
	}
	if injectionPattern.MatchString(c.Question) || injectionPattern.MatchString(c.Answer) {
		return false
	}
	return true
}

// FormatCards renders cards in the same layout ParseCards reads.
func FormatCards(cards []Card) string {
	var sb strings.Builder
	for i, c := range cards {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(c.Question)
		sb.WriteString("\n")
		sb.WriteString(c.Answer)
	}
	return sb.String()
}
