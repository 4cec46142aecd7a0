package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/studydeck/internal/chunker"
	"github.com/dgallion1/studydeck/internal/config"
	"github.com/dgallion1/studydeck/internal/parser"
)

var packCmd = &cobra.Command{
	Use:   "pack FILE|YOUTUBE_URL",
	Short: "Extract a source and print its packed blocks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minSize, _ := cmd.Flags().GetInt("min-fragment-size")
		target, _ := cmd.Flags().GetInt("target-block-size")
		pdftotext, _ := cmd.Flags().GetBool("pdftotext")
		asJSON, _ := cmd.Flags().GetBool("json")

		log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		res, err := extractSource(cmd.Context(), args[0], parser.Options{PDFFallbackPdftotext: pdftotext})
		if err != nil {
			return err
		}

		blocks := chunker.PackBlocks(res.Fragments, chunker.Options{
			MinFragmentSize: minSize,
			TargetBlockSize: target,
		})
		if len(blocks) == 0 {
			log.Warn("no blocks produced", "source", args[0], "fragments", len(res.Fragments))
		}
		return printBlocks(cmd.OutOrStdout(), res.Title, blocks, asJSON)
	},
}

// extractSource parses a local file, or fetches captions when arg is a
// YouTube link.
func extractSource(ctx context.Context, arg string, opts parser.Options) (*parser.Result, error) {
	if _, err := parser.VideoID(arg); err == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		return parser.NewTranscriptFetcher(cfg.TranscriptLang).Fetch(ctx, arg)
	}

	p, err := parser.ForFile(arg, opts)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(arg)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Parse(f, arg)
}

type packedBlock struct {
	Index   int    `json:"index"`
	Runes   int    `json:"runes"`
	Tokens  int    `json:"tokens"`
	Sources int    `json:"sources"`
	Text    string `json:"text"`
}

func printBlocks(w io.Writer, title string, blocks []chunker.Block, asJSON bool) error {
	out := make([]packedBlock, len(blocks))
	for i, b := range blocks {
		out[i] = packedBlock{
			Index:   i,
			Runes:   len([]rune(b.Text)),
			Tokens:  chunker.EstimateTokens(b.Text),
			Sources: len(b.Sources),
			Text:    b.Text,
		}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"title": title, "blocks": out})
	}
	for _, b := range out {
		if _, err := fmt.Fprintf(w, "--- block %d (%d chars, ~%d tokens, %d fragments)\n%s\n\n", b.Index, b.Runes, b.Tokens, b.Sources, b.Text); err != nil {
			return err
		}
	}
	return nil
}
