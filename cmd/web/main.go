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
		listen     string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the live workout dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.SetQuiet(quiet)
			if err := config.InitGlobal(configPath); err != nil {
				return err
			}
			cfg := config.Get()
			if listen != "" {
				cfg.Web.Listen = listen
			}
			return app.RunWeb(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "pitrainer.yaml", "configuration file")
	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "log warnings and errors only")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("starting pitrainer web server (MQTT subscriber)")
	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
