package app

import (
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/proximity_gesture/internal/config"
	"github.com/relabs-tech/proximity_gesture/internal/gesture"
	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

// lineHeight is the basicfont 7x13 advance; 64 pixels fit four lines.
const (
	lineHeight = 13
	maxLines   = 4
)

// panel is the part of *ssd1306.Dev the display uses.
type panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// Display renders readings and results on a 128x64 OLED.
type Display struct {
	dev panel
	img *image1bit.VerticalLSB
}

func NewDisplay(dev panel) *Display {
	return &Display{dev: dev, img: image1bit.NewVerticalLSB(dev.Bounds())}
}

// OpenDisplay initializes the SSD1306 on the configured bus.
func OpenDisplay(cfg *config.Config) (*Display, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open I2C bus %q: %w", cfg.DisplayI2CBus, err)
	}
	opts := ssd1306.DefaultOpts
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Infof("display: initialized on bus %q", cfg.DisplayI2CBus)

	d := NewDisplay(dev)
	if err := d.splash(); err != nil {
		log.Warnf("display: error showing splash: %v", err)
	}
	closer := func() error {
		if err := dev.Halt(); err != nil {
			log.Warnf("display: halt: %v", err)
		}
		return bus.Close()
	}
	return d, closer, nil
}

func (d *Display) render(lines ...string) error {
	for i := range d.img.Pix {
		d.img.Pix[i] = 0
	}
	drawer := &font.Drawer{
		Dst:  d.img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, l := range lines {
		y := (i + 1) * lineHeight
		if y > d.img.Rect.Dy() {
			break
		}
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(l)
	}
	return d.dev.Draw(d.dev.Bounds(), d.img, image.Point{})
}

func (d *Display) splash() error {
	return d.render("Gesture Pi", "Press to capture")
}

// scoreLines formats scores into at most room lines. When there are more
// classes than lines, two scores share a line with labels cut to 3 chars.
func scoreLines(scores []gesture.Score, room int) []string {
	if len(scores) <= room {
		lines := make([]string, len(scores))
		for i, sc := range scores {
			lines[i] = fmt.Sprintf("%s: %.2f", sc.Label, sc.Value)
		}
		return lines
	}
	var lines []string
	for i := 0; i < len(scores) && len(lines) < room; i += 2 {
		l := fmt.Sprintf("%.3s:%.2f", scores[i].Label, scores[i].Value)
		if i+1 < len(scores) {
			l += fmt.Sprintf(" %.3s:%.2f", scores[i+1].Label, scores[i+1].Value)
		}
		lines = append(lines, l)
	}
	return lines
}

// readingLines lays out a monitor frame: both normalized channels on the
// first line, then the scores of the last result if there is one.
func readingLines(s proximity.Sample, last *gesture.Result) []string {
	lines := []string{fmt.Sprintf("Prox %.2f Lgt %.2f", s.Proximity, s.AmbientLight)}
	if last == nil {
		return append(lines, "------")
	}
	return append(lines, scoreLines(last.Scores, maxLines-1)...)
}

func (d *Display) ShowReading(s proximity.Sample, last *gesture.Result) error {
	return d.render(readingLines(s, last)...)
}

func resultLines(r gesture.Result) []string {
	var lines []string
	if top, ok := r.Top(); ok {
		lines = append(lines, "> "+top.Label)
	}
	return append(lines, scoreLines(r.Scores, maxLines-len(lines))...)
}

func (d *Display) ShowResult(r gesture.Result) error {
	return d.render(resultLines(r)...)
}

func (d *Display) ShowFailure(err error) error {
	return d.render("Classifier", "failed")
}
