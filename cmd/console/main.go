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
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "console",
		Short: "Print every device's reps, sets and workouts as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitGlobal(configPath); err != nil {
				return err
			}
			return app.RunConsole(cmd.Context(), config.Get(), os.Stdout)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "pitrainer.yaml", "configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "state DEVICE STATE",
		Short: `Publish a workout state: an exercise name, "Pseudo Idle" or "Idle"`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitGlobal(configPath); err != nil {
				return err
			}
			return app.SetState(cmd.Context(), config.Get(), args[0], args[1])
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
