// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/proximity_gesture/internal/config"
	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

// ErrSensorUnavailable is wrapped by every sensor bring-up failure.
var ErrSensorUnavailable = errors.New("proximity sensor unavailable")

// VCNL4040 registers. Every register is 16 bits, low byte first.
const (
	regALSConf  = 0x00 // ALS_CONF (L), reserved (H)
	regPSConf12 = 0x03 // PS_CONF1 (L), PS_CONF2 (H)
	regPSConf3  = 0x04 // PS_CONF3 (L), PS_MS (H)
	regPSData   = 0x08
	regALSData  = 0x09
	regID       = 0x0C

	deviceID = 0x0186

	alsSD    = 0x01 // ALS shutdown
	psSD     = 0x01 // PS shutdown
	psHD     = 0x08 // PS_CONF2: 16-bit proximity output
	whiteDis = 0x80 // PS_MS: white channel disable
	ledIMask = 0x07 // PS_MS: LED current
)

// Opts is the VCNL4040 tuning, as register codes.
type Opts struct {
	ProxIntegration byte // PS_IT, 0-7 (7 = 8T)
	ALSIntegration  byte // ALS_IT, 0-3 (0 = 80ms)
	LEDCurrent      byte // LED_I, 0-7 (3 = 120mA)
	LEDDuty         byte // PS_Duty, 0-3 (0 = 1/40)
}

// DefaultOpts is the tuning the gesture model was trained with.
var DefaultOpts = Opts{
	ProxIntegration: 7,
	ALSIntegration:  0,
	LEDCurrent:      3,
	LEDDuty:         0,
}

// VCNL4040 is a proximity + ambient light sensor on I2C.
type VCNL4040 struct {
	dev *i2c.Dev
}

// NewVCNL4040 checks the chip ID, powers on both channels and applies opts.
func NewVCNL4040(bus i2c.Bus, addr uint16, opts *Opts) (*VCNL4040, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	v := &VCNL4040{dev: &i2c.Dev{Bus: bus, Addr: addr}}

	id, err := v.readReg(regID)
	if err != nil {
		return v, fmt.Errorf("%w: read ID at 0x%02X: %v", ErrSensorUnavailable, addr, err)
	}
	if id != deviceID {
		return v, fmt.Errorf("%w: unexpected ID 0x%04X at 0x%02X", ErrSensorUnavailable, id, addr)
	}

	// Ambient light: integration time, powered on.
	if err := v.update(regALSConf, func(lo, hi byte) (byte, byte) {
		lo = lo&^0xC0 | (opts.ALSIntegration&0x03)<<6
		return lo &^ alsSD, hi
	}); err != nil {
		return v, fmt.Errorf("%w: ALS_CONF: %v", ErrSensorUnavailable, err)
	}

	// Proximity: duty, integration time, powered on, 16-bit output.
	if err := v.update(regPSConf12, func(lo, hi byte) (byte, byte) {
		lo = lo&^0xC0 | (opts.LEDDuty&0x03)<<6
		lo = lo&^0x0E | (opts.ProxIntegration&0x07)<<1
		return lo &^ psSD, hi | psHD
	}); err != nil {
		return v, fmt.Errorf("%w: PS_CONF1/2: %v", ErrSensorUnavailable, err)
	}

	// LED current, white channel on.
	if err := v.update(regPSConf3, func(lo, hi byte) (byte, byte) {
		hi = hi&^(ledIMask|whiteDis) | opts.LEDCurrent&ledIMask
		return lo, hi
	}); err != nil {
		return v, fmt.Errorf("%w: PS_MS: %v", ErrSensorUnavailable, err)
	}

	return v, nil
}

// ReadProximity returns PS_DATA.
func (v *VCNL4040) ReadProximity() (uint16, error) {
	val, err := v.readReg(regPSData)
	if err != nil {
		return 0, fmt.Errorf("vcnl4040 proximity: %w", err)
	}
	return val, nil
}

// ReadAmbientLight returns ALS_DATA.
func (v *VCNL4040) ReadAmbientLight() (uint16, error) {
	val, err := v.readReg(regALSData)
	if err != nil {
		return 0, fmt.Errorf("vcnl4040 ambient light: %w", err)
	}
	return val, nil
}

func (v *VCNL4040) readReg(reg byte) (uint16, error) {
	var r [2]byte
	if err := v.dev.Tx([]byte{reg}, r[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r[:]), nil
}

func (v *VCNL4040) update(reg byte, f func(lo, hi byte) (byte, byte)) error {
	var r [2]byte
	if err := v.dev.Tx([]byte{reg}, r[:]); err != nil {
		return err
	}
	lo, hi := f(r[0], r[1])
	return v.dev.Tx([]byte{reg, lo, hi}, nil)
}

// Unavailable stands in for a sensor that never came up. It reads 0 on both
// channels so the pipeline keeps running on meaningless data.
type Unavailable struct{}

func (Unavailable) ReadProximity() (uint16, error)    { return 0, nil }
func (Unavailable) ReadAmbientLight() (uint16, error) { return 0, nil }

// OpenProximity brings up the VCNL4040 described by cfg. It always returns a
// usable source: on failure the error wraps ErrSensorUnavailable and the
// source is either the half-initialized chip or Unavailable. The returned
// close function is never nil.
func OpenProximity(cfg *config.Config) (proximity.Source, func() error, error) {
	nop := func() error { return nil }

	if _, err := host.Init(); err != nil {
		return Unavailable{}, nop, fmt.Errorf("%w: periph host init: %v", ErrSensorUnavailable, err)
	}

	bus, err := i2creg.Open(cfg.SensorI2CBus)
	if err != nil {
		return Unavailable{}, nop, fmt.Errorf("%w: I2C open %q: %v", ErrSensorUnavailable, cfg.SensorI2CBus, err)
	}

	opts := Opts{
		ProxIntegration: cfg.SensorProxIntegration,
		ALSIntegration:  cfg.SensorALSIntegration,
		LEDCurrent:      cfg.SensorLEDCurrent,
		LEDDuty:         cfg.SensorLEDDuty,
	}
	dev, err := NewVCNL4040(bus, cfg.SensorI2CAddr, &opts)
	if err != nil {
		return dev, bus.Close, err
	}

	log.Printf("sensors: VCNL4040 at 0x%02X on %s (PS_IT=%d ALS_IT=%d LED_I=%d duty=%d)",
		cfg.SensorI2CAddr, bus, opts.ProxIntegration, opts.ALSIntegration, opts.LEDCurrent, opts.LEDDuty)
	return dev, bus.Close, nil
}
