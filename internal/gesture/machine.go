package gesture

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

// Mode is the state of the Machine.
type Mode int

const (
	Monitor Mode = iota
	Capturing
)

func (m Mode) String() string {
	switch m {
	case Monitor:
		return "monitor"
	case Capturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// ControlInput is the capture button. It is active-low: the line idles High
// through the pull-up and reads Low while pressed. Any gpio.PinIn fits.
type ControlInput interface {
	Read() gpio.Level
}

// Presenter receives everything the machine reports.
type Presenter interface {
	// ShowReading is called on every monitor iteration with the most recent
	// (possibly stale, possibly nil) classification result.
	ShowReading(s proximity.Sample, last *Result) error
	ShowResult(r Result) error
	ShowFailure(err error) error
}

// Settings tune the machine's timing. Zero values fall back to defaults.
type Settings struct {
	Samples         int
	Period          time.Duration
	MonitorInterval time.Duration
	DebouncePoll    time.Duration
	DebounceSettle  time.Duration
}

// DefaultSettings returns the build-time window and the default pacing.
func DefaultSettings() Settings {
	return Settings{
		Samples:         NumSamples,
		Period:          SamplingPeriod,
		MonitorInterval: 100 * time.Millisecond,
		DebouncePoll:    5 * time.Millisecond,
		DebounceSettle:  20 * time.Millisecond,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Samples <= 0 {
		s.Samples = d.Samples
	}
	if s.Period <= 0 {
		s.Period = d.Period
	}
	if s.MonitorInterval < 0 {
		s.MonitorInterval = 0
	}
	if s.DebouncePoll <= 0 {
		s.DebouncePoll = d.DebouncePoll
	}
	if s.DebounceSettle < 0 {
		s.DebounceSettle = 0
	}
	return s
}

// Stats counts what the machine has done since it was created.
type Stats struct {
	MonitorTicks int `json:"monitor_ticks"`
	Captures     int `json:"captures"`
	Classified   int `json:"classified"`
	Failed       int `json:"failed"`
}

// Machine alternates between live monitoring and capture-and-classify.
// It owns the calibration, the feature window and the last result; nothing
// else writes them, and it runs on a single goroutine.
type Machine struct {
	settings   Settings
	sampler    *Sampler
	button     ControlInput
	clock      Clock
	classifier Classifier
	presenter  Presenter

	mode   Mode
	cal    Calibration
	window *Window
	last   *Result
	stats  Stats
}

// NewMachine wires a machine in Monitor mode with the default calibration.
func NewMachine(settings Settings, src proximity.Source, button ControlInput, clock Clock, c Classifier, p Presenter) *Machine {
	settings = settings.withDefaults()
	if clock == nil {
		clock = SystemClock{}
	}
	return &Machine{
		settings:   settings,
		sampler:    NewSampler(src, clock),
		button:     button,
		clock:      clock,
		classifier: c,
		presenter:  p,
		mode:       Monitor,
		cal:        DefaultCalibration(),
		window:     NewWindow(settings.Samples),
	}
}

func (m *Machine) Mode() Mode { return m.mode }

func (m *Machine) Calibration() Calibration { return m.cal }

func (m *Machine) Stats() Stats { return m.stats }

// Last returns the most recent successful result, or nil.
func (m *Machine) Last() *Result { return m.last }

// Run steps the machine until ctx is done. ctx is only looked at between
// monitor iterations and while waiting for the button to be released; a
// capture cycle always runs to completion.
func (m *Machine) Run(ctx context.Context) error {
	log.Infof("gesture: state machine started (%d samples @ %v)", m.settings.Samples, m.settings.Period)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.Step(ctx); err != nil {
			return err
		}
	}
}

// Step performs one monitor iteration, or one full capture cycle followed by
// the debounce wait.
func (m *Machine) Step(ctx context.Context) error {
	switch m.mode {
	case Monitor:
		if m.button.Read() == gpio.Low {
			m.setMode(Capturing)
			return nil
		}
		start := m.clock.Now()
		m.monitorTick()
		m.clock.SleepUntil(start.Add(m.settings.MonitorInterval))
		return nil

	case Capturing:
		// Failures are reported inside; either way we go on to the debounce wait.
		_, _ = m.captureCycle()
		if err := m.waitRelease(ctx); err != nil {
			return err
		}
		m.setMode(Monitor)
		return nil
	}
	return nil
}

func (m *Machine) setMode(next Mode) {
	if next == m.mode {
		return
	}
	log.Debugf("gesture: %s -> %s", m.mode, next)
	m.mode = next
}

// monitorTick reads, widens calibration, normalizes and shows one sample.
func (m *Machine) monitorTick() {
	r := m.sampler.Read()
	m.cal.Track(r.AmbientLight)
	s := m.cal.Normalize(r)
	m.stats.MonitorTicks++

	if err := m.presenter.ShowReading(s, m.last); err != nil {
		log.Warnf("gesture: present reading: %v", err)
	}
}

// captureCycle fills the window and classifies it. The stored result only
// changes on success.
func (m *Machine) captureCycle() (*Result, error) {
	m.stats.Captures++
	started := m.clock.Now()

	if err := m.sampler.Capture(m.window, m.settings.Samples, m.settings.Period, &m.cal); err != nil {
		return nil, m.fail(&InvocationError{Status: StatusShapeMismatch, Err: err})
	}
	log.Debugf("gesture: captured %d values in %v", m.window.Len(), m.clock.Now().Sub(started))

	res, err := Invoke(m.classifier, m.window)
	if err != nil {
		return nil, m.fail(err)
	}

	if res.CycleID == uuid.Nil {
		res.CycleID = uuid.New()
	}
	if res.CapturedAt.IsZero() {
		res.CapturedAt = started
	}
	m.last = res
	m.stats.Classified++

	if top, ok := res.Top(); ok {
		log.Infof("gesture: classified %s (%.5f)", top.Label, top.Value)
	}
	if err := m.presenter.ShowResult(*res); err != nil {
		log.Warnf("gesture: present result: %v", err)
	}
	return res, nil
}

func (m *Machine) fail(err error) error {
	m.stats.Failed++
	log.Errorf("gesture: ERR: failed to run classifier: %v", err)
	if perr := m.presenter.ShowFailure(err); perr != nil {
		log.Warnf("gesture: present failure: %v", perr)
	}
	return err
}

// waitRelease blocks until the button has read High continuously for
// DebounceSettle, polling every DebouncePoll.
func (m *Machine) waitRelease(ctx context.Context) error {
	var releasedAt time.Time
	released := false
	for {
		now := m.clock.Now()
		if m.button.Read() == gpio.High {
			if !released {
				released = true
				releasedAt = now
			}
			if now.Sub(releasedAt) >= m.settings.DebounceSettle {
				return nil
			}
		} else {
			released = false
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		m.clock.SleepUntil(now.Add(m.settings.DebouncePoll))
	}
}
