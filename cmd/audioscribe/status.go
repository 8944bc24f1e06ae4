package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var statusConfigPath string

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Print a project's progress snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatusCmd,
}

func init() {
	statusCmd.Flags().StringVar(&statusConfigPath, "config", "", "Path to config.json file")
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	projectID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid project ID %q", args[0])
	}

	cfg, err := loadConfig(statusConfigPath)
	if err != nil {
		return err
	}
	d, err := buildDeps(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer d.close()

	status, err := d.manager.Status(ctx, projectID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(status)
}
