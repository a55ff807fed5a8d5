package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

func TestSampler_CaptureFixedReading(t *testing.T) {
	clock := newFakeClock()
	src := &constSource{r: proximity.Reading{Proximity: 500, AmbientLight: 50}}
	cal := DefaultCalibration()
	cal.Track(100)

	s := NewSampler(src, clock)
	w := NewWindow(100)
	start := clock.Now()

	require.NoError(t, s.Capture(w, 100, 20*time.Millisecond, &cal))

	require.Equal(t, 200, w.Len())
	vals, err := w.Read(0, w.Len())
	require.NoError(t, err)

	wantProx := Normalize(500, cal.Proximity)
	wantLight := Normalize(50, cal.AmbientLight)
	for i := 0; i < len(vals); i += 2 {
		assert.Equal(t, wantProx, vals[i], "proximity at %d", i)
		assert.Equal(t, wantLight, vals[i+1], "ambient light at %d", i+1)
	}
	assert.Equal(t, 2*time.Second, clock.Now().Sub(start))
	assert.Equal(t, 100, src.reads)
}

func TestSampler_CaptureDoesNotWidenCalibration(t *testing.T) {
	clock := newFakeClock()
	src := &constSource{r: proximity.Reading{Proximity: 10, AmbientLight: 900}}
	cal := DefaultCalibration()
	cal.Track(100)

	w := NewWindow(5)
	require.NoError(t, NewSampler(src, clock).Capture(w, 5, SamplingPeriod, &cal))

	assert.Equal(t, float32(100), cal.AmbientLight.Max)
	vals, _ := w.Read(1, 1)
	assert.Equal(t, []float32{1}, vals)
}

func TestSampler_OverrunDriftsWithoutSkipping(t *testing.T) {
	clock := newFakeClock()
	src := &constSource{r: proximity.Reading{Proximity: 1}, clock: clock, work: 30 * time.Millisecond}
	cal := DefaultCalibration()
	w := NewWindow(10)
	start := clock.Now()

	require.NoError(t, NewSampler(src, clock).Capture(w, 10, 20*time.Millisecond, &cal))

	assert.Equal(t, 20, w.Len())
	assert.Equal(t, 10, src.reads)
	assert.Equal(t, 300*time.Millisecond, clock.Now().Sub(start))
}

func TestSampler_ReadErrorsDegradeToZero(t *testing.T) {
	s := NewSampler(brokenSource{}, newFakeClock())
	assert.Equal(t, proximity.Reading{}, s.Read())
}

func TestSampler_WindowTooSmall(t *testing.T) {
	cal := DefaultCalibration()
	w := NewWindow(2)
	err := NewSampler(&constSource{}, newFakeClock()).Capture(w, 3, SamplingPeriod, &cal)
	assert.Error(t, err)
}
