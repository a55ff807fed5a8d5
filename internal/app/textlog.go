package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/proximity_gesture/internal/gesture"
	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

// TextLog writes the human-readable console log. Lines end in CRLF so a
// serial terminal shows them the same as stdout.
type TextLog struct {
	mu sync.Mutex
	w  io.Writer
	// Readings prints a line per monitor iteration when set.
	Readings bool
}

func NewTextLog(w io.Writer) *TextLog {
	return &TextLog{w: w}
}

// OpenSerialLog opens a UART and logs to it.
func OpenSerialLog(port string, baud int) (*TextLog, io.Closer, error) {
	opts := serial.OpenOptions{
		PortName:        port,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}
	rwc, err := serial.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open serial console %s: %w", port, err)
	}
	log.Infof("console: serial port opened on %s at %d baud", port, baud)
	return NewTextLog(rwc), rwc, nil
}

func (t *TextLog) printf(format string, args ...interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, format, args...)
	return err
}

func (t *TextLog) ShowReading(s proximity.Sample, last *gesture.Result) error {
	if !t.Readings {
		return nil
	}
	label := "-"
	if last != nil {
		if top, ok := last.Top(); ok {
			label = top.Label
		}
	}
	return t.printf("Norm Prox: %.2f  Norm Light: %.2f  last: %s\r\n", s.Proximity, s.AmbientLight, label)
}

func (t *TextLog) ShowResult(r gesture.Result) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "run_classifier returned: %d\r\n", int(gesture.StatusOK))
	fmt.Fprintf(&b, "Timing: DSP %d ms, inference %d ms, anomaly %d ms\r\n",
		r.Timing.DSP.Milliseconds(),
		r.Timing.Classification.Milliseconds(),
		r.Timing.Anomaly.Milliseconds())
	b.WriteString("Predictions:\r\n")
	for _, s := range r.Scores {
		fmt.Fprintf(&b, "  %s: %.5f\r\n", s.Label, s.Value)
	}

	// One write keeps the block together on the wire.
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.w.Write(b.Bytes())
	return err
}

func (t *TextLog) ShowFailure(err error) error {
	code := int(gesture.StatusInferenceFailed)
	var ie *gesture.InvocationError
	if errors.As(err, &ie) {
		code = int(ie.Status)
	}
	return t.printf("ERR: Failed to run classifier (%d)\r\n", code)
}
