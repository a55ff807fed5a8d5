package proximity

// Reading represents one raw VCNL4040 sample: both channels read in the same tick.
type Reading struct {
	Proximity    uint16 `json:"proximity"`     // PS_DATA counts
	AmbientLight uint16 `json:"ambient_light"` // ALS_DATA counts
}

// Sample is a Reading mapped into [0,1] against the current calibration bounds.
type Sample struct {
	Proximity    float32 `json:"prox"`
	AmbientLight float32 `json:"light"`
}

// Source is anything that can produce raw readings.
type Source interface {
	ReadProximity() (uint16, error)
	ReadAmbientLight() (uint16, error)
}
