// Copyright (c) 2026 The PiTrainer Authors
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lolzio5/PiTrainer/internal/app"
	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/logger"
)

func main() {
	var (
		configPath string
		opts       app.TrainerOptions
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "trainer",
		Short: "Count and score repetitions from the attached IMU",
		Long: `trainer samples the accelerometer and magnetometer, counts repetitions
live while the backend reports an exercise, and publishes a scored report
after every set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetQuiet(quiet)
			if err := config.InitGlobal(configPath); err != nil {
				return err
			}
			return app.RunTrainer(cmd.Context(), config.Get(), opts)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "pitrainer.yaml", "configuration file")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "run without the MQTT backend")
	cmd.Flags().StringVarP(&opts.Exercise, "exercise", "e", "", "exercise to count when offline")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "log warnings and errors only")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("starting pitrainer")
	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
