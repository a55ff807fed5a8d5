package gesture

import (
	"fmt"

	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

// Signal is the read-only view a classifier pulls features through. The
// classifier asks for slices instead of receiving the whole buffer.
type Signal interface {
	Len() int
	Read(offset, count int) ([]float32, error)
}

// Window is a fixed-capacity buffer of interleaved normalized samples:
// prox0, light0, prox1, light1, ...
// The backing array is allocated once and reused by every capture cycle.
type Window struct {
	buf []float32
	n   int // floats written
}

// NewWindow allocates a window holding samples ticks.
func NewWindow(samples int) *Window {
	return &Window{buf: make([]float32, samples*Channels)}
}

// Reset discards the contents and keeps the arena.
func (w *Window) Reset() {
	w.n = 0
}

// Cap returns the number of floats the window holds when full.
func (w *Window) Cap() int { return len(w.buf) }

// Len returns the number of floats written so far.
func (w *Window) Len() int { return w.n }

// Full reports whether every slot has been written.
func (w *Window) Full() bool { return w.n == len(w.buf) }

// Append writes one tick in (proximity, ambient light) order.
func (w *Window) Append(s proximity.Sample) error {
	if w.n+Channels > len(w.buf) {
		return fmt.Errorf("feature window full (%d values)", len(w.buf))
	}
	w.buf[w.n] = s.Proximity
	w.buf[w.n+1] = s.AmbientLight
	w.n += Channels
	return nil
}

// Read copies count floats starting at offset.
func (w *Window) Read(offset, count int) ([]float32, error) {
	if offset < 0 || count < 0 || offset+count > w.n {
		return nil, fmt.Errorf("feature window read [%d:%d] out of range (len %d)", offset, offset+count, w.n)
	}
	out := make([]float32, count)
	copy(out, w.buf[offset:offset+count])
	return out, nil
}

// Signal returns a read-only view over the window.
func (w *Window) Signal() Signal {
	return signal{w}
}

// signal hides the mutating methods of Window from classifiers.
type signal struct {
	w *Window
}

func (s signal) Len() int { return s.w.Len() }

func (s signal) Read(offset, count int) ([]float32, error) {
	return s.w.Read(offset, count)
}
