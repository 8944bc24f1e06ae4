package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/audioscribe/internal/server"
)

var (
	serveConfigPath string
	serveAddr       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for registering projects and controlling transcription runs.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config.json file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(serveConfigPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.ListenAddr = serveAddr
	}

	broker := server.NewEventBroker()
	d, err := buildDeps(ctx, cfg, broker.Publish)
	if err != nil {
		return err
	}
	defer d.close()
	defer d.manager.StopAll()

	// Pick up projects a previous process left mid-stage.
	recovered, err := d.manager.RecoverStuck(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover stuck projects: %w", err)
	}
	if recovered > 0 {
		d.log.WithField("count", recovered).Info("recovered stuck projects")
	}

	srv := server.New(server.Config{Addr: cfg.ListenAddr}, d.db, d.manager, broker,
		d.log.WithModule("server").Entry)
	return srv.Start()
}
