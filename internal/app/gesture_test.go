package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/proximity_gesture/internal/classifier"
	"github.com/relabs-tech/proximity_gesture/internal/config"
	"github.com/relabs-tech/proximity_gesture/internal/gesture"
)

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MonitorInterval = 50 * time.Millisecond
	cfg.DebounceSettle = 40 * time.Millisecond

	s := Settings(cfg)
	assert.Equal(t, gesture.NumSamples, s.Samples)
	assert.Equal(t, gesture.SamplingPeriod, s.Period)
	assert.Equal(t, 50*time.Millisecond, s.MonitorInterval)
	assert.Equal(t, 5*time.Millisecond, s.DebouncePoll)
	assert.Equal(t, 40*time.Millisecond, s.DebounceSettle)
}

func TestNewClassifier(t *testing.T) {
	cfg := config.Default()
	c, err := NewClassifier(cfg)
	require.NoError(t, err)
	assert.IsType(t, &classifier.Fixed{}, c)
	assert.Equal(t, gesture.WindowLen, c.InputLen())

	cfg.Classifier = "remote"
	cfg.ClassifierURL = "http://localhost:1337/api/features"
	c, err = NewClassifier(cfg)
	require.NoError(t, err)
	assert.IsType(t, &classifier.Remote{}, c)

	cfg.Classifier = "magic"
	_, err = NewClassifier(cfg)
	assert.Error(t, err)
}

func TestNewClassifier_CentroidMustMatchWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"labels":["idle"],"centroids":[[0,0,0]]}`), 0o644))

	cfg := config.Default()
	cfg.Classifier = "centroid"
	cfg.ClassifierModel = path
	_, err := NewClassifier(cfg)
	assert.ErrorContains(t, err, "takes 3 features")
}

func TestRunMockConsole_PrintsReadingsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 350*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	require.NoError(t, RunMockConsole(ctx, &out))
	assert.Contains(t, out.String(), "Norm Prox: ")
	assert.NotContains(t, out.String(), "Predictions:")
}

func TestSetLogLevel(t *testing.T) {
	defer log.SetLevel(log.GetLevel())

	SetLogLevel("debug")
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	SetLogLevel("chatty")
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}

// stepClock only moves when the machine sleeps.
type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

func (c *stepClock) SleepUntil(deadline time.Time) {
	if deadline.After(c.t) {
		c.t = deadline
	}
}

func TestMockConsole_EveryPressCaptures(t *testing.T) {
	clock := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	button := MockButton().WithClock(clock.Now)
	var out bytes.Buffer
	m := newMockMachine(&out, clock, button)

	// Presses at 5, 10, 15, 20, 25 and 30 s.
	end := clock.Now().Add(31 * time.Second)
	for clock.Now().Before(end) {
		require.NoError(t, m.Step(context.Background()))
	}

	assert.Equal(t, 6, m.Stats().Captures)
	assert.Equal(t, 6, m.Stats().Classified)
	assert.Equal(t, 6, strings.Count(out.String(), "run_classifier returned"))
}
