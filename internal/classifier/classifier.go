// Package classifier provides implementations of gesture.Classifier: a
// remote inference endpoint, a local nearest-centroid model and a fixed
// result used for bench runs.
package classifier

import (
	"fmt"

	"github.com/relabs-tech/proximity_gesture/internal/gesture"
)

// pull reads the whole signal through fixed-size slices.
func pull(sig gesture.Signal, chunk int) ([]float32, error) {
	if chunk <= 0 {
		chunk = sig.Len()
	}
	out := make([]float32, 0, sig.Len())
	for off := 0; off < sig.Len(); off += chunk {
		n := min(chunk, sig.Len()-off)
		vals, err := sig.Read(off, n)
		if err != nil {
			return nil, &gesture.InvocationError{Status: gesture.StatusDSPFailed, Err: fmt.Errorf("read features [%d:%d]: %w", off, off+n, err)}
		}
		out = append(out, vals...)
	}
	return out, nil
}

// Fixed always returns the same scores. It is what the bench and mock
// console run with when no model is deployed.
type Fixed struct {
	Len    int
	Scores []gesture.Score
}

// NewFixed reports label with full confidence for windows of length n.
func NewFixed(n int, label string) *Fixed {
	return &Fixed{Len: n, Scores: []gesture.Score{{Label: label, Value: 1}}}
}

func (f *Fixed) InputLen() int { return f.Len }

func (f *Fixed) Classify(sig gesture.Signal) (*gesture.Result, error) {
	if sig.Len() != f.Len {
		return nil, &gesture.InvocationError{Status: gesture.StatusShapeMismatch}
	}
	return &gesture.Result{Scores: append([]gesture.Score(nil), f.Scores...)}, nil
}
