package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/audioscribe/internal/checkpoint"
	"github.com/jonathan/audioscribe/internal/pipeline"
)

var (
	runConfigPath string
	runVerbose    bool
)

var runCmd = &cobra.Command{
	Use:   "run <project-id>",
	Short: "Run the transcription pipeline for one project and wait",
	Long:  `Resumes the project from its stored checkpoint and blocks until the run finishes, pauses or fails.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPipelineCmd,
}

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print per-chunk progress")
	rootCmd.AddCommand(runCmd)
}

func runPipelineCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	projectID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid project ID %q", args[0])
	}

	cfg, err := loadConfig(runConfigPath)
	if err != nil {
		return err
	}

	var onProgress pipeline.ProgressCallback
	if runVerbose {
		onProgress = func(event pipeline.ProgressEvent) {
			if event.ChunkIndex < 0 {
				fmt.Fprintf(os.Stdout, "[%s] %s\n", event.Stage, event.Message)
				return
			}
			fmt.Fprintf(os.Stdout, "[%s] chunk %d: %s\n", event.Stage, event.ChunkIndex, event.Message)
		}
	}

	d, err := buildDeps(ctx, cfg, onProgress)
	if err != nil {
		return err
	}
	defer d.close()

	if err := d.manager.Start(ctx, projectID); err != nil {
		return err
	}
	d.manager.Wait(projectID)

	cp, err := d.db.GetCheckpoint(ctx, projectID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Run finished at checkpoint %s\n", cp)
	if cp == checkpoint.Failed {
		return fmt.Errorf("pipeline run failed; inspect status for skipped chunks")
	}
	return nil
}
