// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/relabs-tech/proximity_gesture/internal/classifier"
	"github.com/relabs-tech/proximity_gesture/internal/gesture"
	"github.com/relabs-tech/proximity_gesture/internal/sensors"
)

// MockPressEvery is how often the synthetic button is pressed.
const MockPressEvery = 5 * time.Second

// newMockMachine wires the machine to the synthetic sensor and button. The
// button is held for two monitor intervals so every press is seen by a
// monitor poll.
func newMockMachine(out io.Writer, clock gesture.Clock, button *sensors.MockButton) *gesture.Machine {
	text := NewTextLog(out)
	text.Readings = true

	return gesture.NewMachine(
		gesture.DefaultSettings(),
		sensors.NewMockSource(),
		button,
		clock,
		classifier.NewFixed(gesture.WindowLen, "idle"),
		text,
	)
}

// MockButton returns the synthetic button the mock console presses.
func MockButton() *sensors.MockButton {
	return sensors.NewMockButton(MockPressEvery, 2*gesture.DefaultSettings().MonitorInterval)
}

// RunMockConsole runs the full state machine against the synthetic sensor
// and button, printing to out.
func RunMockConsole(ctx context.Context, out io.Writer) error {
	m := newMockMachine(out, nil, MockButton())
	if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
