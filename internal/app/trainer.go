// Copyright (c) 2026 The PiTrainer Authors
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"

	"github.com/lolzio5/PiTrainer/internal/backend"
	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/display"
	"github.com/lolzio5/PiTrainer/internal/exercise"
	"github.com/lolzio5/PiTrainer/internal/logger"
	"github.com/lolzio5/PiTrainer/internal/recording"
	"github.com/lolzio5/PiTrainer/internal/sensors"
	"github.com/lolzio5/PiTrainer/internal/session"
)

// TrainerOptions are the command-line overrides of the trainer.
type TrainerOptions struct {
	// Offline replaces the broker with an in-process backend that holds
	// Exercise as the requested state.
	Offline  bool
	Exercise string
}

// RunTrainer samples the rig and runs workouts until ctx is cancelled.
func RunTrainer(ctx context.Context, cfg *config.Config, opts TrainerOptions) error {
	log := logger.New("trainer")
	log.Infof("starting PiTrainer on device %s (sensor driver %s)", cfg.Device.ID, cfg.Sensors.Driver)

	catalog, err := exercise.NewCatalog(cfg.Exercises)
	if err != nil {
		return err
	}
	log.Infof("exercises: %v", catalog.Names())

	sensor, err := sensors.Open(cfg.Sensors)
	if err != nil {
		return err
	}
	defer sensor.Close()

	var be backend.Backend
	if opts.Offline {
		mem := backend.NewMemory()
		if opts.Exercise != "" {
			mem.SetState(backend.ParseState(opts.Exercise))
		}
		be = mem
		log.Infof("offline mode, requested state %q", opts.Exercise)
	} else {
		client, err := backend.Dial(cfg.MQTT, cfg.MQTT.ClientIDTrainer, cfg.Device.ID)
		if err != nil {
			return err
		}
		defer client.Close()
		be = client
	}

	runner, err := session.NewRunner(session.OptionsFromConfig(cfg), sensor, be, catalog, session.NewRegistry())
	if err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		rec, err := recording.NewRecorder(cfg.Recording.Dir)
		if err != nil {
			return fmt.Errorf("recording: %w", err)
		}
		runner.Recorder = rec
		log.Infof("recording sets to %s", cfg.Recording.Dir)
	}

	if cfg.Display.Enabled {
		d, err := display.Open(cfg.Display)
		if err != nil {
			log.Warnf("display unavailable: %v", err)
		} else {
			dctx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				d.Run(dctx)
			}()
			defer func() {
				cancel()
				<-done
				d.Close()
			}()
			runner.Display = d
		}
	}

	return runner.Run(ctx)
}
