package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/speaker-splitter/internal/config"
	"github.com/codebuildervaibhav/speaker-splitter/internal/pipeline"
)

func newRunCmd() *cobra.Command {
	var inputDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one batch of clips and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}
			if inputDir != "" {
				cfg.Paths.InputDir = inputDir
			}
			logger := newLogger(cfg, nil)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := buildComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			runID := uuid.NewString()
			if _, err := c.ledger.CreateRun(runID, cfg.Paths.InputDir); err != nil {
				return err
			}

			report, err := c.pipeline.Process(ctx, pipeline.Request{RunID: runID, InputDir: cfg.Paths.InputDir})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run:        %s\n", runID)
			fmt.Fprintf(out, "final:      %s\n", report.FinalPath)
			fmt.Fprintf(out, "public url: %s\n", report.PublicURL)
			fmt.Fprintf(out, "speakers:   %d\n", report.Segments.Speakers)
			fmt.Fprintf(out, "snippets:   %d\n", len(report.Segments.Snippets))
			for _, path := range report.Segments.Paths() {
				fmt.Fprintf(out, "  %s\n", path)
			}
			fmt.Fprintf(out, "workspace:  %s\n", report.WorkspaceDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "directory of clips (overrides paths.input_dir)")
	return cmd
}
