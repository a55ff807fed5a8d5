package gesture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

func testSettings() Settings {
	return Settings{
		Samples:         NumSamples,
		Period:          SamplingPeriod,
		MonitorInterval: 10 * time.Millisecond,
		DebouncePoll:    5 * time.Millisecond,
		DebounceSettle:  20 * time.Millisecond,
	}
}

func steps(t *testing.T, m *Machine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, m.Step(context.Background()))
	}
}

func TestMachine_MonitorNeverClassifies(t *testing.T) {
	button := &scriptedButton{levels: []gpio.Level{gpio.High}}
	c := &stubClassifier{inputLen: WindowLen}
	p := &recordingPresenter{}
	src := &seqSource{prox: 500, ambient: []uint16{10, 5, 30, 20}}
	m := NewMachine(testSettings(), src, button, newFakeClock(), c, p)

	steps(t, m, 4)

	assert.Equal(t, Monitor, m.Mode())
	assert.Equal(t, 0, c.calls)
	assert.Equal(t, 4, m.Stats().MonitorTicks)
	require.Len(t, p.readings, 4)
	for _, last := range p.lastSeen {
		assert.Nil(t, last)
	}
	assert.Equal(t, float32(0.5), p.readings[0].Proximity)
	// 30 is the widest so far when it is read, so it maps to the top of the range.
	assert.Equal(t, float32(1), p.readings[2].AmbientLight)
	assert.Equal(t, float32(30), m.Calibration().AmbientLight.Max)
	assert.Equal(t, float32(0), m.Calibration().AmbientLight.Min)
}

func TestMachine_PressRunsExactlyOneCapture(t *testing.T) {
	// Idle high for three monitor iterations, pressed (active-low) across the
	// capture, then released for good.
	button := &scriptedButton{levels: []gpio.Level{
		gpio.High, gpio.High, gpio.High,
		gpio.Low,
		gpio.Low, gpio.Low,
		gpio.High,
	}}
	c := &stubClassifier{
		inputLen: WindowLen,
		result:   Result{Scores: []Score{{"idle", 0.2}, {"wave", 0.8}}},
	}
	p := &recordingPresenter{}
	clock := newFakeClock()
	m := NewMachine(testSettings(), &constSource{r: proximity.Reading{Proximity: 500, AmbientLight: 50}}, button, clock, c, p)

	steps(t, m, 3)
	assert.Equal(t, 0, c.calls)

	steps(t, m, 1)
	assert.Equal(t, Capturing, m.Mode())
	assert.Equal(t, 0, c.calls)

	before := clock.Now()
	steps(t, m, 1)
	assert.Equal(t, Monitor, m.Mode())
	assert.Equal(t, 1, c.calls)
	// 2s of sampling, plus the wait for a settled release.
	assert.GreaterOrEqual(t, clock.Now().Sub(before), 2*time.Second+20*time.Millisecond)

	require.Len(t, p.results, 1)
	assert.Equal(t, "wave", p.results[0].Scores[1].Label)
	assert.NotEqual(t, uuid.Nil, p.results[0].CycleID)
	require.NotNil(t, m.Last())

	steps(t, m, 5)
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, Stats{MonitorTicks: 8, Captures: 1, Classified: 1}, m.Stats())

	// Monitor iterations after the capture carry the stale result.
	last := p.lastSeen[len(p.lastSeen)-1]
	require.NotNil(t, last)
	assert.Equal(t, p.results[0].CycleID, last.CycleID)
}

func TestMachine_DebounceWaitsForSettledRelease(t *testing.T) {
	// Bounces high once during release before settling.
	button := &scriptedButton{levels: []gpio.Level{
		gpio.Low,
		gpio.Low, gpio.High, gpio.Low, gpio.High,
	}}
	c := &stubClassifier{inputLen: WindowLen, result: Result{Scores: []Score{{"idle", 1}}}}
	m := NewMachine(testSettings(), &constSource{}, button, newFakeClock(), c, &recordingPresenter{})

	steps(t, m, 2)

	assert.Equal(t, Monitor, m.Mode())
	// 1 monitor read, 4 scripted release reads, then high polls at +5 ... +20.
	assert.Equal(t, 1+4+4, button.reads)
}

func TestMachine_ClassifierFailureKeepsLastResult(t *testing.T) {
	button := &scriptedButton{levels: []gpio.Level{gpio.Low, gpio.Low, gpio.High}}
	c := &stubClassifier{inputLen: WindowLen, result: Result{Scores: []Score{{"tap", 0.9}}}}
	p := &recordingPresenter{}
	m := NewMachine(testSettings(), &constSource{}, button, newFakeClock(), c, p)

	// First capture succeeds.
	steps(t, m, 2)
	prev := m.Last()
	require.NotNil(t, prev)
	snapshot := *prev

	// Second capture fails.
	c.err = &InvocationError{Status: StatusInferenceFailed}
	button.levels = []gpio.Level{gpio.Low, gpio.Low, gpio.High}
	button.reads = 0
	steps(t, m, 2)

	assert.Equal(t, 2, c.calls)
	assert.Same(t, prev, m.Last())
	assert.Empty(t, cmp.Diff(snapshot, *m.Last()))
	require.Len(t, p.failures, 1)
	assert.True(t, errors.Is(p.failures[0], ErrClassifierInvocationFailed))
	assert.Len(t, p.results, 1)

	// It went through the debounce wait without retrying.
	assert.Equal(t, Monitor, m.Mode())
	assert.Greater(t, button.reads, 2)
	assert.Equal(t, Stats{Captures: 2, Classified: 1, Failed: 1}, m.Stats())
}

func TestMachine_EndToEndIdle(t *testing.T) {
	// An all-zero sensor with nothing tracked gives an all-zero window.
	button := &scriptedButton{levels: []gpio.Level{gpio.Low, gpio.High}}
	c := &stubClassifier{inputLen: WindowLen, chunk: 50, result: Result{Scores: []Score{{"idle", 1.0}}}}
	p := &recordingPresenter{}
	m := NewMachine(testSettings(), &constSource{}, button, newFakeClock(), c, p)

	steps(t, m, 2)

	assert.Equal(t, make([]float32, WindowLen), c.seen)
	require.Len(t, p.results, 1)
	want := []Score{{Label: "idle", Value: 1.0}}
	assert.Empty(t, cmp.Diff(want, p.results[0].Scores, cmpopts.EquateEmpty()))
}

func TestMachine_CaptureDoesNotWidenAmbientBounds(t *testing.T) {
	// Documented asymmetry: only monitor iterations calibrate.
	button := &scriptedButton{levels: []gpio.Level{gpio.High, gpio.Low, gpio.High}}
	src := &seqSource{prox: 0, ambient: []uint16{40, 400}}
	c := &stubClassifier{inputLen: WindowLen, result: Result{Scores: []Score{{"idle", 1}}}}
	m := NewMachine(testSettings(), src, button, newFakeClock(), c, &recordingPresenter{})

	steps(t, m, 3)

	assert.Equal(t, float32(40), m.Calibration().AmbientLight.Max)
	// Every captured light value is above the bound and clamps to 1.
	for i := 1; i < len(c.seen); i += 2 {
		require.Equal(t, float32(1), c.seen[i])
	}
}

func TestMachine_RunStopsOnContext(t *testing.T) {
	button := &scriptedButton{levels: []gpio.Level{gpio.High}}
	m := NewMachine(testSettings(), &constSource{}, button, newFakeClock(), &stubClassifier{inputLen: WindowLen}, &recordingPresenter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Run(ctx), context.Canceled)
}

func TestSettings_Defaults(t *testing.T) {
	s := Settings{}.withDefaults()
	assert.Equal(t, NumSamples, s.Samples)
	assert.Equal(t, 20*time.Millisecond, s.Period)
	assert.Equal(t, time.Duration(0), s.MonitorInterval)
}
