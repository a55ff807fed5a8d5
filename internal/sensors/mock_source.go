// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

type mockSource struct {
	start time.Time
	now   func() time.Time
}

// NewMockSource creates a proximity source that generates a hand
// approaching and leaving every two seconds under slowly drifting light.
func NewMockSource() proximity.Source {
	return &mockSource{start: time.Now(), now: time.Now}
}

func (m *mockSource) elapsed() float64 {
	return m.now().Sub(m.start).Seconds()
}

func (m *mockSource) ReadProximity() (uint16, error) {
	v := 450 + 400*math.Sin(math.Pi*m.elapsed())
	return uint16(v), nil
}

func (m *mockSource) ReadAmbientLight() (uint16, error) {
	v := 120 + 80*math.Cos(m.elapsed()*0.1)
	return uint16(v), nil
}

// MockButton presses itself for pulse at the start of every period.
type MockButton struct {
	start  time.Time
	now    func() time.Time
	period time.Duration
	pulse  time.Duration
}

// NewMockButton creates a button that is first pressed one period from now.
func NewMockButton(period, pulse time.Duration) *MockButton {
	return &MockButton{start: time.Now(), now: time.Now, period: period, pulse: pulse}
}

// WithClock makes the button read time from now, restarting its schedule.
func (b *MockButton) WithClock(now func() time.Time) *MockButton {
	b.now = now
	b.start = now()
	return b
}

func (b *MockButton) Read() gpio.Level {
	e := b.now().Sub(b.start)
	if e < b.period {
		return gpio.High
	}
	if e%b.period < b.pulse {
		return gpio.Low
	}
	return gpio.High
}
