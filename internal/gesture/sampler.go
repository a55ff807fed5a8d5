package gesture

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

// Sampler pulls readings from the sensor at a fixed rate into a Window.
type Sampler struct {
	src   proximity.Source
	clock Clock
}

// NewSampler creates a sampler reading src and pacing itself with clock.
func NewSampler(src proximity.Source, clock Clock) *Sampler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Sampler{src: src, clock: clock}
}

// Read takes one reading of both channels. A failed read is logged and
// yields 0 for that channel.
func (s *Sampler) Read() proximity.Reading {
	var r proximity.Reading
	var err error
	if r.Proximity, err = s.src.ReadProximity(); err != nil {
		log.Warnf("sampler: proximity read error: %v", err)
		r.Proximity = 0
	}
	if r.AmbientLight, err = s.src.ReadAmbientLight(); err != nil {
		log.Warnf("sampler: ambient light read error: %v", err)
		r.AmbientLight = 0
	}
	return r
}

// Capture resets w and fills it with samples ticks, period apart, normalized
// against cal. cal is only read; capturing never widens calibration.
//
// Each tick waits until period has elapsed since that tick's own start. A tick
// whose work overruns the period is followed immediately by the next one, so
// overruns accumulate as drift rather than skipped samples.
func (s *Sampler) Capture(w *Window, samples int, period time.Duration, cal *Calibration) error {
	w.Reset()
	for i := 0; i < samples; i++ {
		start := s.clock.Now()

		if err := w.Append(cal.Normalize(s.Read())); err != nil {
			return err
		}

		s.clock.SleepUntil(start.Add(period))
	}
	return nil
}
