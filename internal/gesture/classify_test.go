package gesture

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

func fullWindow(t *testing.T, samples int, s proximity.Sample) *Window {
	t.Helper()
	w := NewWindow(samples)
	for i := 0; i < samples; i++ {
		require.NoError(t, w.Append(s))
	}
	return w
}

func TestInvoke_ShapeMismatch(t *testing.T) {
	c := &stubClassifier{inputLen: WindowLen}
	_, err := Invoke(c, fullWindow(t, 10, proximity.Sample{}))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrClassifierInvocationFailed))
	var ie *InvocationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, StatusShapeMismatch, ie.Status)
	assert.Equal(t, 0, c.calls)
}

func TestInvoke_PullsWholeWindowInChunks(t *testing.T) {
	w := fullWindow(t, NumSamples, proximity.Sample{Proximity: 0.25, AmbientLight: 0.75})
	c := &stubClassifier{
		inputLen: WindowLen,
		chunk:    64,
		result:   Result{Scores: []Score{{"idle", 1}}},
	}

	res, err := Invoke(c, w)
	require.NoError(t, err)
	assert.Equal(t, "idle", res.Scores[0].Label)
	require.Len(t, c.seen, WindowLen)
	assert.Equal(t, float32(0.25), c.seen[WindowLen-2])
	assert.Equal(t, float32(0.75), c.seen[WindowLen-1])
}

func TestInvoke_WrapsPlainErrors(t *testing.T) {
	c := &stubClassifier{inputLen: 2, err: errors.New("tensor arena too small")}
	_, err := Invoke(c, fullWindow(t, 1, proximity.Sample{}))

	var ie *InvocationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, StatusInferenceFailed, ie.Status)
	assert.Contains(t, err.Error(), "tensor arena too small")
}

func TestInvoke_KeepsTypedStatus(t *testing.T) {
	c := &stubClassifier{inputLen: 2, err: &InvocationError{Status: StatusDSPFailed}}
	_, err := Invoke(c, fullWindow(t, 1, proximity.Sample{}))

	var ie *InvocationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, StatusDSPFailed, ie.Status)
}

func TestResult_Top(t *testing.T) {
	_, ok := Result{}.Top()
	assert.False(t, ok)

	r := Result{Scores: []Score{{"idle", 0.1}, {"swipe", 0.7}, {"tap", 0.7}, {"hover", 0.2}}}
	top, ok := r.Top()
	require.True(t, ok)
	assert.Equal(t, Score{"swipe", 0.7}, top)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "shape mismatch", StatusShapeMismatch.String())
	assert.Equal(t, "status(42)", Status(42).String())
}
