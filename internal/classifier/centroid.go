package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/relabs-tech/proximity_gesture/internal/gesture"
)

// CentroidModel is the JSON model file: one mean feature window per label.
type CentroidModel struct {
	Labels    []string    `json:"labels"`
	Centroids [][]float64 `json:"centroids"`
}

// Centroid scores a window by its distance to each label's centroid,
// softmaxed over negative Euclidean distance.
type Centroid struct {
	model CentroidModel
	chunk int
}

// LoadCentroid reads a model file written by the training notebook.
func LoadCentroid(path string, chunk int) (*Centroid, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("centroid model: %w", err)
	}
	var m CentroidModel
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("centroid model %s: %w", path, err)
	}
	return NewCentroid(m, chunk)
}

// NewCentroid validates m.
func NewCentroid(m CentroidModel, chunk int) (*Centroid, error) {
	if len(m.Labels) == 0 {
		return nil, fmt.Errorf("centroid model: no labels")
	}
	if len(m.Labels) != len(m.Centroids) {
		return nil, fmt.Errorf("centroid model: %d labels but %d centroids", len(m.Labels), len(m.Centroids))
	}
	n := len(m.Centroids[0])
	if n == 0 {
		return nil, fmt.Errorf("centroid model: empty centroid")
	}
	for i, c := range m.Centroids {
		if len(c) != n {
			return nil, fmt.Errorf("centroid model: centroid %q has %d values, want %d", m.Labels[i], len(c), n)
		}
	}
	return &Centroid{model: m, chunk: chunk}, nil
}

func (c *Centroid) InputLen() int { return len(c.model.Centroids[0]) }

func (c *Centroid) Classify(sig gesture.Signal) (*gesture.Result, error) {
	if sig.Len() != c.InputLen() {
		return nil, &gesture.InvocationError{
			Status: gesture.StatusShapeMismatch,
			Err:    fmt.Errorf("got %d features, model expects %d", sig.Len(), c.InputLen()),
		}
	}

	dspStart := time.Now()
	raw, err := pull(sig, c.chunk)
	if err != nil {
		return nil, err
	}
	x := make([]float64, len(raw))
	for i, v := range raw {
		x[i] = float64(v)
	}
	dsp := time.Since(dspStart)

	start := time.Now()
	logits := make([]float64, len(c.model.Centroids))
	for i, centroid := range c.model.Centroids {
		logits[i] = -floats.Distance(x, centroid, 2)
	}
	// Subtract the max before exponentiating to stay finite.
	maxLogit := floats.Max(logits)
	for i := range logits {
		logits[i] = math.Exp(logits[i] - maxLogit)
	}
	floats.Scale(1/floats.Sum(logits), logits)

	res := &gesture.Result{Scores: make([]gesture.Score, len(logits))}
	for i, p := range logits {
		res.Scores[i] = gesture.Score{Label: c.model.Labels[i], Value: float32(p)}
	}
	res.Timing = gesture.Timing{DSP: dsp, Classification: time.Since(start)}
	return res, nil
}
