// Package sensors drives the accelerometer and magnetometer of the rig.
package sensors

import (
	"fmt"
	"time"

	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/imu"
	"github.com/lolzio5/PiTrainer/internal/logger"
)

var log = logger.New("sensors")

// Open returns the sensor selected by cfg.Driver.
func Open(cfg config.SensorsConfig) (imu.Sensor, error) {
	switch cfg.Driver {
	case "i2c":
		return NewI2CSensor(cfg)
	case "serial":
		return OpenSerial(cfg)
	case "mock":
		return NewMockSensor(3 * time.Second), nil
	default:
		return nil, fmt.Errorf("sensors: unknown driver %q", cfg.Driver)
	}
}
