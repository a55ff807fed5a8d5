// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gesture samples the proximity sensor into fixed-length feature
// windows, hands them to a gesture classifier and drives the
// monitor/capture mode state machine.
package gesture

import "time"

// Build-time sampling and calibration constants.
const (
	SamplingFreqHz = 50                           // Hz
	SamplingPeriod = time.Second / SamplingFreqHz // 20ms
	NumSamples     = 100                          // 100 samples at 50 Hz is a 2 sec window
	Channels       = 2                            // proximity, ambient light
	WindowLen      = NumSamples * Channels        // interleaved floats per window

	ProximityMin = 0.0
	ProximityMax = 1000.0 // experimentally determined

	AmbientLightMin = 0.0
	AmbientLightMax = 0.0 // widened at runtime while monitoring
)
