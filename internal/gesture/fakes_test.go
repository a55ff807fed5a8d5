package gesture

import (
	"errors"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

// fakeClock only moves when something sleeps or advances it.
type fakeClock struct {
	t      time.Time
	sleeps int
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) SleepUntil(deadline time.Time) {
	c.sleeps++
	if deadline.After(c.t) {
		c.t = deadline
	}
}

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// constSource returns the same reading forever. If clock is set, every
// proximity read costs work of simulated time.
type constSource struct {
	r     proximity.Reading
	clock *fakeClock
	work  time.Duration
	reads int
}

func (s *constSource) ReadProximity() (uint16, error) {
	s.reads++
	if s.clock != nil {
		s.clock.advance(s.work)
	}
	return s.r.Proximity, nil
}

func (s *constSource) ReadAmbientLight() (uint16, error) {
	return s.r.AmbientLight, nil
}

// seqSource returns ambient light values from a list, then repeats the last.
type seqSource struct {
	prox    uint16
	ambient []uint16
	i       int
}

func (s *seqSource) ReadProximity() (uint16, error) { return s.prox, nil }

func (s *seqSource) ReadAmbientLight() (uint16, error) {
	v := s.ambient[len(s.ambient)-1]
	if s.i < len(s.ambient) {
		v = s.ambient[s.i]
	}
	s.i++
	return v, nil
}

type brokenSource struct{}

func (brokenSource) ReadProximity() (uint16, error)    { return 0, errors.New("i2c: nack") }
func (brokenSource) ReadAmbientLight() (uint16, error) { return 0, errors.New("i2c: nack") }

// scriptedButton plays back levels, then keeps returning the last one.
type scriptedButton struct {
	levels []gpio.Level
	reads  int
}

func (b *scriptedButton) Read() gpio.Level {
	var l gpio.Level
	if b.reads < len(b.levels) {
		l = b.levels[b.reads]
	} else {
		l = b.levels[len(b.levels)-1]
	}
	b.reads++
	return l
}

type stubClassifier struct {
	inputLen int
	result   Result
	err      error
	calls    int
	seen     []float32
	chunk    int
}

func (c *stubClassifier) InputLen() int { return c.inputLen }

func (c *stubClassifier) Classify(sig Signal) (*Result, error) {
	c.calls++
	c.seen = c.seen[:0]
	chunk := c.chunk
	if chunk <= 0 {
		chunk = sig.Len()
	}
	for off := 0; off < sig.Len(); off += chunk {
		n := chunk
		if off+n > sig.Len() {
			n = sig.Len() - off
		}
		vals, err := sig.Read(off, n)
		if err != nil {
			return nil, err
		}
		c.seen = append(c.seen, vals...)
	}
	if c.err != nil {
		return nil, c.err
	}
	r := c.result
	r.Scores = append([]Score(nil), c.result.Scores...)
	return &r, nil
}

type recordingPresenter struct {
	readings []proximity.Sample
	lastSeen []*Result
	results  []Result
	failures []error
}

func (p *recordingPresenter) ShowReading(s proximity.Sample, last *Result) error {
	p.readings = append(p.readings, s)
	p.lastSeen = append(p.lastSeen, last)
	return nil
}

func (p *recordingPresenter) ShowResult(r Result) error {
	p.results = append(p.results, r)
	return nil
}

func (p *recordingPresenter) ShowFailure(err error) error {
	p.failures = append(p.failures, err)
	return nil
}
