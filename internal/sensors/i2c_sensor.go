package sensors

import (
	"fmt"

	"github.com/golang/geo/r3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/lolzio5/PiTrainer/internal/config"
)

// I2CSensor reads the LIS3DH and the MLX90393 sharing one I2C bus.
type I2CSensor struct {
	bus   i2c.BusCloser
	accel *LIS3DH
	mag   *MLX90393
}

// NewI2CSensor opens the bus and brings up both devices. The
// accelerometer is probed at its primary address, then at the fallback.
func NewI2CSensor(cfg config.SensorsConfig) (*I2CSensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("sensors: periph host init: %w", err)
	}

	b, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("sensors: open I2C bus %q: %w", cfg.I2CBus, err)
	}

	accel, err := NewLIS3DH(&i2c.Dev{Bus: b, Addr: cfg.AccelAddress})
	if err != nil && cfg.AccelFallbackAddress != 0 {
		log.Warnf("LIS3DH not found at 0x%02X (%v), trying 0x%02X", cfg.AccelAddress, err, cfg.AccelFallbackAddress)
		accel, err = NewLIS3DH(&i2c.Dev{Bus: b, Addr: cfg.AccelFallbackAddress})
	}
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("sensors: accelerometer: %w", err)
	}
	log.Infof("LIS3DH ready on bus %s (100 Hz, ±2 g, high-pass)", cfg.I2CBus)

	mag, err := NewMLX90393(&i2c.Dev{Bus: b, Addr: cfg.MagAddress})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("sensors: magnetometer: %w", err)
	}
	log.Infof("MLX90393 ready at 0x%02X (burst XYZ)", cfg.MagAddress)

	return &I2CSensor{bus: b, accel: accel, mag: mag}, nil
}

func (s *I2CSensor) ReadAcceleration() (r3.Vector, error) { return s.accel.ReadAcceleration() }

func (s *I2CSensor) ReadMagneticField() (r3.Vector, error) { return s.mag.ReadMagneticField() }

func (s *I2CSensor) Close() error { return s.bus.Close() }
