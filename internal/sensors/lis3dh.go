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

var sleep = time.Sleep

// bus is the part of a periph I2C device the drivers use.
type bus interface {
	Tx(w, r []byte) error
}

// LIS3DH register map (subset).
const (
	lis3dhRegWhoAmI = 0x0F
	lis3dhWhoAmI    = 0x33
	lis3dhRegCtrl1  = 0x20
	lis3dhRegCtrl2  = 0x21
	lis3dhRegOutXL  = 0x28

	// Sub-address MSB set: the address auto-increments across a burst read.
	lis3dhAutoIncrement = 0x80

	// 100 Hz, normal mode, X/Y/Z enabled.
	lis3dhCtrl1Value = 0x57
	// High-pass filter on the output registers, removing gravity.
	lis3dhCtrl2Value = 0x02

	// ±2 g full scale.
	lis3dhScale = 2.0 / 32768.0
)

// LIS3DH is the accelerometer on the rig.
type LIS3DH struct {
	dev bus
}

// NewLIS3DH checks the device identity and configures 100 Hz, ±2 g with
// the high-pass filter enabled.
func NewLIS3DH(dev bus) (*LIS3DH, error) {
	if dev == nil {
		return nil, fmt.Errorf("lis3dh: dev is nil")
	}
	d := &LIS3DH{dev: dev}

	who, err := d.readReg(lis3dhRegWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("lis3dh: whoami read failed: %w", err)
	}
	if who != lis3dhWhoAmI {
		return nil, fmt.Errorf("lis3dh: whoami=0x%02X want 0x%02X", who, lis3dhWhoAmI)
	}
	if err := d.writeReg(lis3dhRegCtrl1, lis3dhCtrl1Value); err != nil {
		return nil, fmt.Errorf("lis3dh: ctrl1 write failed: %w", err)
	}
	if err := d.writeReg(lis3dhRegCtrl2, lis3dhCtrl2Value); err != nil {
		return nil, fmt.Errorf("lis3dh: ctrl2 write failed: %w", err)
	}
	sleep(100 * time.Millisecond)
	return d, nil
}

// ReadAcceleration returns the acceleration in g.
func (d *LIS3DH) ReadAcceleration() (r3.Vector, error) {
	var buf [6]byte
	if err := d.dev.Tx([]byte{lis3dhRegOutXL | lis3dhAutoIncrement}, buf[:]); err != nil {
		return r3.Vector{}, fmt.Errorf("lis3dh: %w: %v", imu.ErrSensorIO, err)
	}
	return r3.Vector{
		X: float64(int16(binary.LittleEndian.Uint16(buf[0:2]))) * lis3dhScale,
		Y: float64(int16(binary.LittleEndian.Uint16(buf[2:4]))) * lis3dhScale,
		Z: float64(int16(binary.LittleEndian.Uint16(buf[4:6]))) * lis3dhScale,
	}, nil
}

func (d *LIS3DH) readReg(reg byte) (byte, error) {
	var b [1]byte
	if err := d.dev.Tx([]byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *LIS3DH) writeReg(reg, value byte) error {
	return d.dev.Tx([]byte{reg, value}, nil)
}
