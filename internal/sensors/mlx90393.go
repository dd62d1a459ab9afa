// Copyright (c) 2026 The PiTrainer Authors
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/golang/geo/r3"

	"github.com/lolzio5/PiTrainer/internal/imu"
)

// MLX90393 command set (subset). Every command answers with a status byte.
const (
	mlxCmdExit          = 0x80
	mlxCmdReset         = 0xF0
	mlxCmdWriteRegister = 0x60
	mlxCmdBurstXYZ      = 0x1E
	mlxCmdReadXYZ       = 0x4E

	mlxStatusError = 0x10
)

// Register writes applied at start-up: HALLCONF 0xC with gain 0, then
// resolution, oversampling and digital filter.
var mlxInitRegisters = []struct {
	reg  byte
	data uint16
}{
	{reg: 0x00, data: 0x000C},
	{reg: 0x02, data: 0x02B4},
}

// MLX90393 is the magnetometer that watches the weight stack. Readings are
// raw signed counts; thresholds are tuned in the same unit.
type MLX90393 struct {
	dev bus
}

// NewMLX90393 resets the device, programs gain and resolution and starts
// burst measurements on X, Y and Z.
func NewMLX90393(dev bus) (*MLX90393, error) {
	if dev == nil {
		return nil, fmt.Errorf("mlx90393: dev is nil")
	}
	d := &MLX90393{dev: dev}

	// Leave any running burst mode before resetting.
	if _, err := d.command([]byte{mlxCmdExit}); err != nil {
		return nil, fmt.Errorf("mlx90393: exit failed: %w", err)
	}
	if _, err := d.command([]byte{mlxCmdReset}); err != nil {
		return nil, fmt.Errorf("mlx90393: reset failed: %w", err)
	}
	sleep(2 * time.Millisecond)

	for _, r := range mlxInitRegisters {
		cmd := []byte{mlxCmdWriteRegister, byte(r.data >> 8), byte(r.data), r.reg << 2}
		if _, err := d.command(cmd); err != nil {
			return nil, fmt.Errorf("mlx90393: write register 0x%02X failed: %w", r.reg, err)
		}
	}
	if _, err := d.command([]byte{mlxCmdBurstXYZ}); err != nil {
		return nil, fmt.Errorf("mlx90393: start burst failed: %w", err)
	}
	return d, nil
}

// ReadMagneticField returns the latest burst measurement.
func (d *MLX90393) ReadMagneticField() (r3.Vector, error) {
	var buf [7]byte
	if err := d.dev.Tx([]byte{mlxCmdReadXYZ}, buf[:]); err != nil {
		return r3.Vector{}, fmt.Errorf("mlx90393: %w: %v", imu.ErrSensorIO, err)
	}
	if buf[0]&mlxStatusError != 0 {
		return r3.Vector{}, fmt.Errorf("mlx90393: %w: status 0x%02X", imu.ErrSensorIO, buf[0])
	}
	return r3.Vector{
		X: float64(int16(binary.BigEndian.Uint16(buf[1:3]))),
		Y: float64(int16(binary.BigEndian.Uint16(buf[3:5]))),
		Z: float64(int16(binary.BigEndian.Uint16(buf[5:7]))),
	}, nil
}

func (d *MLX90393) command(w []byte) (byte, error) {
	var status [1]byte
	if err := d.dev.Tx(w, status[:]); err != nil {
		return 0, err
	}
	if status[0]&mlxStatusError != 0 {
		return status[0], fmt.Errorf("status 0x%02X", status[0])
	}
	return status[0], nil
}
