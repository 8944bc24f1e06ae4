// Package main provides the entry point for the AudioScribe transcription server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "audioscribe",
	Short: "AudioScribe transcription pipeline",
	Long:  "AudioScribe turns long pre-chunked audio recordings into polished transcripts through a resumable, self-correcting pipeline backed by PostgreSQL.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
