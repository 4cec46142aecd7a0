package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/studydeck/internal/fragment"
)

const (
	DefaultMinFragmentSize = 50
	DefaultTargetBlockSize = 800

	separator = "\n\n"
)

// Options controls packing behavior. Sizes are measured in runes.
type Options struct {
	MinFragmentSize int // Fragments shorter than this after trimming are dropped. Negative means default.
	TargetBlockSize int // Soft limit on block length. Zero or negative means default.
}

// DefaultOptions returns the standard packing options.
func DefaultOptions() Options {
	return Options{
		MinFragmentSize: DefaultMinFragmentSize,
		TargetBlockSize: DefaultTargetBlockSize,
	}
}

func (o Options) withDefaults() Options {
	if o.MinFragmentSize < 0 {
		o.MinFragmentSize = DefaultMinFragmentSize
	}
	if o.TargetBlockSize <= 0 {
		o.TargetBlockSize = DefaultTargetBlockSize
	}
	return o
}

// Block is a packed run of fragments ready for embedding or prompt context.
type Block struct {
	Text    string
	Sources []fragment.Metadata // Metadata of each packed fragment, in order
}

// Pack combines fragments into size-bounded blocks and returns their text.
func Pack(frags []fragment.Fragment, opts Options) []string {
	blocks := PackBlocks(frags, opts)
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Text
	}
	return out
}

// PackText packs plain strings. Every input is treated as text, so no type
// annotation is added.
func PackText(contents []string, opts Options) []string {
	frags := make([]fragment.Fragment, len(contents))
	for i, c := range contents {
		frags[i] = fragment.Fragment{Content: c, Type: fragment.TypeText}
	}
	return Pack(frags, opts)
}

// PackBlocks greedily combines adjacent fragments, in order, until adding the
// next one would reach TargetBlockSize. Fragments shorter than MinFragmentSize
// are dropped. A fragment that alone exceeds the target becomes its own block
// and is never split. The separator between fragments counts toward the target.
func PackBlocks(frags []fragment.Fragment, opts Options) []Block {
	opts = opts.withDefaults()

	var blocks []Block
	var current strings.Builder
	var sources []fragment.Metadata
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		blocks = append(blocks, Block{Text: current.String(), Sources: sources})
		current.Reset()
		sources = nil
		currentLen = 0
	}

	for _, f := range frags {
		content := strings.TrimSpace(f.Content)
		if utf8.RuneCountInString(content) < opts.MinFragmentSize {
			continue
		}
		// A zero minimum still never packs empty content.
		if content == "" {
			continue
		}

		enriched := annotate(content, f.Type)
		enrichedLen := utf8.RuneCountInString(enriched)

		candidate := currentLen + enrichedLen
		if currentLen > 0 {
			candidate += len(separator)
		}

		if candidate < opts.TargetBlockSize {
			if currentLen > 0 {
				current.WriteString(separator)
				currentLen += len(separator)
			}
		} else {
			flush()
		}
		current.WriteString(enriched)
		currentLen += enrichedLen
		sources = append(sources, f.Meta)
	}
	flush()

	return blocks
}

// annotate prefixes non-text content with its uppercase type tag.
func annotate(content string, t fragment.Type) string {
	if t.IsText() {
		return content
	}
	return "[" + strings.ToUpper(string(t)) + "]\n" + content
}

// SelectContext keeps blocks, in order, while their estimated token total
// stays within maxTokens. The first block is always kept. maxTokens <= 0
// keeps everything.
func SelectContext(blocks []string, maxTokens int) []string {
	if maxTokens <= 0 || len(blocks) == 0 {
		return blocks
	}
	selected := []string{blocks[0]}
	total := EstimateTokens(blocks[0])
	for _, b := range blocks[1:] {
		t := EstimateTokens(b)
		if total+t > maxTokens {
			break
		}
		selected = append(selected, b)
		total += t
	}
	return selected
}
