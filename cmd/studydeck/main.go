package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/studydeck/internal/chunker"
)

var rootCmd = &cobra.Command{
	Use:   "studydeck",
	Short: "Turn study material into flashcards and answers",
	Long:  `studydeck ingests PDFs, documents and YouTube transcripts into books, generates flashcards from them and answers questions about them.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(packCmd)

	packCmd.Flags().Int("min-fragment-size", chunker.DefaultMinFragmentSize, "drop fragments shorter than this many characters")
	packCmd.Flags().Int("target-block-size", chunker.DefaultTargetBlockSize, "soft block size limit in characters")
	packCmd.Flags().Bool("pdftotext", true, "fall back to pdftotext when a PDF has no text layer")
	packCmd.Flags().Bool("json", false, "print blocks as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
