package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/relabs-tech/proximity_gesture/internal/gesture"
)

// inferenceRequest is what we POST to the inference endpoint.
type inferenceRequest struct {
	Features     []float32 `json:"features"`
	SampleRateHz int       `json:"sample_rate_hz"`
	Axes         []string  `json:"axes"`
}

// inferenceResponse is what the endpoint sends back.
type inferenceResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Timing  struct {
		DSPMs            int64 `json:"dsp_ms"`
		ClassificationMs int64 `json:"classification_ms"`
		AnomalyMs        int64 `json:"anomaly_ms"`
	} `json:"timing"`
	Classification []gesture.Score `json:"classification"`
}

// Remote runs inference on an HTTP endpoint next to the device.
type Remote struct {
	URL    string
	Len    int
	Chunk  int
	Labels []string // expected label order; empty accepts whatever the endpoint returns
	Client *http.Client
}

// NewRemote creates a client for url expecting windows of n floats.
func NewRemote(url string, n, chunk int) *Remote {
	return &Remote{
		URL:    url,
		Len:    n,
		Chunk:  chunk,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (r *Remote) InputLen() int { return r.Len }

func (r *Remote) Classify(sig gesture.Signal) (*gesture.Result, error) {
	if sig.Len() != r.Len {
		return nil, &gesture.InvocationError{
			Status: gesture.StatusShapeMismatch,
			Err:    fmt.Errorf("got %d features, endpoint expects %d", sig.Len(), r.Len),
		}
	}
	features, err := pull(sig, r.Chunk)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(inferenceRequest{
		Features:     features,
		SampleRateHz: gesture.SamplingFreqHz,
		Axes:         []string{"proximity", "ambient_light"},
	})
	if err != nil {
		return nil, &gesture.InvocationError{Status: gesture.StatusDSPFailed, Err: err}
	}

	resp, err := r.Client.Post(r.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, &gesture.InvocationError{Status: gesture.StatusUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		status := gesture.StatusInferenceFailed
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity {
			status = gesture.StatusShapeMismatch
		}
		return nil, &gesture.InvocationError{
			Status: status,
			Err:    fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(msg)),
		}
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &gesture.InvocationError{Status: gesture.StatusInferenceFailed, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !out.Success {
		return nil, &gesture.InvocationError{Status: gesture.StatusInferenceFailed, Err: fmt.Errorf("endpoint: %s", out.Error)}
	}
	if err := r.checkLabels(out.Classification); err != nil {
		return nil, &gesture.InvocationError{Status: gesture.StatusInferenceFailed, Err: err}
	}

	return &gesture.Result{
		Timing: gesture.Timing{
			DSP:            time.Duration(out.Timing.DSPMs) * time.Millisecond,
			Classification: time.Duration(out.Timing.ClassificationMs) * time.Millisecond,
			Anomaly:        time.Duration(out.Timing.AnomalyMs) * time.Millisecond,
		},
		Scores: out.Classification,
	}, nil
}

func (r *Remote) checkLabels(scores []gesture.Score) error {
	if len(scores) == 0 {
		return fmt.Errorf("endpoint returned no classes")
	}
	if len(r.Labels) == 0 {
		return nil
	}
	if len(scores) != len(r.Labels) {
		return fmt.Errorf("endpoint returned %d classes, want %d", len(scores), len(r.Labels))
	}
	for i, s := range scores {
		if s.Label != r.Labels[i] {
			return fmt.Errorf("class %d is %q, want %q", i, s.Label, r.Labels[i])
		}
	}
	return nil
}
