package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/audioscribe/internal/checkpoint"
	"github.com/jonathan/audioscribe/internal/polish"
	"github.com/jonathan/audioscribe/internal/types"
)

var (
	ingestConfigPath string
	ingestMode       string
	ingestStylePath  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <filename> <manifest.json>",
	Short: "Register a pre-chunked recording as a new project",
	Long: `Registers a project from a chunk manifest produced by the audio splitter.
The manifest is a JSON array of {"index", "file_path", "duration_ms", "is_silence"} entries ordered by index.`,
	Args: cobra.ExactArgs(2),
	RunE: runIngestCmd,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestConfigPath, "config", "", "Path to config.json file")
	ingestCmd.Flags().StringVar(&ingestMode, "mode", "SOLO", "Processing mode: SOLO or MANUAL")
	ingestCmd.Flags().StringVar(&ingestStylePath, "style", "", "Path to style config JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngestCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	filename, manifestPath := args[0], args[1]

	mode := types.ProcessingMode(ingestMode)
	if mode != types.ModeSolo && mode != types.ModeManual {
		return fmt.Errorf("mode must be SOLO or MANUAL, got %q", ingestMode)
	}

	manifestData, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	var chunks []types.ChunkInput
	if err := json.Unmarshal(manifestData, &chunks); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("manifest is empty")
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			return fmt.Errorf("manifest out of order at index %d", i)
		}
		if chunk.FilePath == "" {
			return fmt.Errorf("chunk %d is missing file_path", i)
		}
	}

	var styleConfig []byte
	if ingestStylePath != "" {
		styleConfig, err = os.ReadFile(ingestStylePath)
		if err != nil {
			return fmt.Errorf("failed to read style config: %w", err)
		}
		if _, err := polish.ParseStyleConfig(styleConfig); err != nil {
			return err
		}
	}

	cfg, err := loadConfig(ingestConfigPath)
	if err != nil {
		return err
	}
	d, err := buildDeps(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer d.close()

	project, err := d.db.CreateProject(ctx, filename, mode, styleConfig)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	if err := d.db.CreateChunks(ctx, project.ID, chunks); err != nil {
		return fmt.Errorf("failed to register chunks: %w", err)
	}
	for _, cp := range []checkpoint.Checkpoint{checkpoint.Compressed, checkpoint.Chunked} {
		if err := d.db.SetCheckpoint(ctx, project.ID, cp); err != nil {
			return fmt.Errorf("failed to advance checkpoint: %w", err)
		}
	}

	fmt.Fprintf(os.Stdout, "Registered project %s with %d chunks\n", project.ID, len(chunks))
	return nil
}
