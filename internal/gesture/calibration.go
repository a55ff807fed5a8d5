package gesture

import "github.com/relabs-tech/proximity_gesture/internal/proximity"

// Bounds is the [Min, Max] range a raw channel is normalized against.
type Bounds struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

// Degenerate reports whether the range cannot be interpolated over.
func (b Bounds) Degenerate() bool {
	return b.Max <= b.Min
}

// Normalize maps raw into [0,1] against b.
//
//	raw < Min  -> 0
//	raw > Max  -> 1
//	otherwise  -> (raw - Min) / (Max - Min)
//
// A degenerate range (Max <= Min) always yields 0.
func Normalize(raw uint16, b Bounds) float32 {
	if b.Degenerate() {
		return 0
	}
	r := float32(raw)
	switch {
	case r < b.Min:
		return 0
	case r > b.Max:
		return 1
	}
	return (r - b.Min) / (b.Max - b.Min)
}

// Calibration holds the bounds for both channels. Proximity bounds are fixed;
// the ambient light maximum only ever grows, and only while monitoring.
type Calibration struct {
	Proximity    Bounds `json:"proximity"`
	AmbientLight Bounds `json:"ambient_light"`
}

// DefaultCalibration returns the build-time starting bounds.
func DefaultCalibration() Calibration {
	return Calibration{
		Proximity:    Bounds{Min: ProximityMin, Max: ProximityMax},
		AmbientLight: Bounds{Min: AmbientLightMin, Max: AmbientLightMax},
	}
}

// Track widens the ambient light maximum when ambient exceeds it.
// AmbientLight.Min is never touched.
func (c *Calibration) Track(ambient uint16) {
	if v := float32(ambient); v > c.AmbientLight.Max {
		c.AmbientLight.Max = v
	}
}

// Normalize maps both channels of r against the current bounds.
func (c *Calibration) Normalize(r proximity.Reading) proximity.Sample {
	return proximity.Sample{
		Proximity:    Normalize(r.Proximity, c.Proximity),
		AmbientLight: Normalize(r.AmbientLight, c.AmbientLight),
	}
}
