// Copyright (c) 2026 The PiTrainer Authors
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lolzio5/PiTrainer/internal/app"
	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/logger"
)

func main() {
	var (
		configPath string
		opts       app.AnalyzeOptions
	)

	cmd := &cobra.Command{
		Use:   "analyze SET.csv...",
		Short: "Segment and score recorded sets",
		Long: `analyze replays sets saved by the trainer through segmentation, feature
extraction and scoring. Live boundaries are read from the .reps file next
to each recording when present.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = *loaded
			}
			return app.RunAnalyze(&cfg, args, opts, os.Stdout)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file for custom exercises")
	cmd.Flags().StringVarP(&opts.Exercise, "exercise", "e", "Rows", "exercise the sets were recorded for")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the full report as JSON")
	cmd.Flags().StringVar(&opts.FeaturesPath, "features", "", "append labelled features to this JSON lines file")

	// Reports go to stdout; keep info logs out of them.
	logger.SetQuiet(true)
	if err := cmd.Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
