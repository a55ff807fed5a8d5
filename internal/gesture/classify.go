package gesture

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// Status is the failure code returned by a classifier invocation.
type Status int

const (
	StatusOK Status = iota
	StatusShapeMismatch
	StatusDSPFailed
	StatusInferenceFailed
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusShapeMismatch:
		return "shape mismatch"
	case StatusDSPFailed:
		return "dsp failed"
	case StatusInferenceFailed:
		return "inference failed"
	case StatusUnavailable:
		return "classifier unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrClassifierInvocationFailed matches every *InvocationError via errors.Is.
var ErrClassifierInvocationFailed = errors.New("classifier invocation failed")

// InvocationError carries the status of a failed classifier run.
type InvocationError struct {
	Status Status
	Err    error
}

func (e *InvocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier: %s (%d): %v", e.Status, int(e.Status), e.Err)
	}
	return fmt.Sprintf("classifier: %s (%d)", e.Status, int(e.Status))
}

func (e *InvocationError) Unwrap() error { return e.Err }

func (e *InvocationError) Is(target error) bool {
	return target == ErrClassifierInvocationFailed
}

// Timing is how long each stage of one classification took.
type Timing struct {
	DSP            time.Duration `json:"dsp"`
	Classification time.Duration `json:"classification"`
	Anomaly        time.Duration `json:"anomaly"`
}

// Score is one class and its confidence.
type Score struct {
	Label string  `json:"label"`
	Value float32 `json:"value"`
}

// Result is the output of one capture cycle, one score per known class in
// the classifier's label order.
type Result struct {
	CycleID    uuid.UUID `json:"cycle_id"`
	CapturedAt time.Time `json:"captured_at"`
	Timing     Timing    `json:"timing"`
	Scores     []Score   `json:"scores"`
}

// Top returns the highest scoring class. Ties go to the earliest label.
func (r Result) Top() (Score, bool) {
	if len(r.Scores) == 0 {
		return Score{}, false
	}
	vals := make([]float64, len(r.Scores))
	for i, s := range r.Scores {
		vals[i] = float64(s.Value)
	}
	return r.Scores[floats.MaxIdx(vals)], true
}

// Classifier runs the gesture model over a feature window.
type Classifier interface {
	// InputLen is the exact number of floats the model consumes.
	InputLen() int
	Classify(sig Signal) (*Result, error)
}

// Invoke runs c over w. The window length must equal c.InputLen(). Any
// failure comes back as an *InvocationError.
func Invoke(c Classifier, w *Window) (*Result, error) {
	if w.Len() != c.InputLen() {
		return nil, &InvocationError{
			Status: StatusShapeMismatch,
			Err:    fmt.Errorf("window has %d values, model expects %d", w.Len(), c.InputLen()),
		}
	}

	res, err := c.Classify(w.Signal())
	if err != nil {
		var ie *InvocationError
		if errors.As(err, &ie) {
			return nil, err
		}
		return nil, &InvocationError{Status: StatusInferenceFailed, Err: err}
	}
	if res == nil {
		return nil, &InvocationError{Status: StatusInferenceFailed, Err: errors.New("no result")}
	}
	return res, nil
}
